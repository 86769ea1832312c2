package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/apascualco/microscope/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Publisher is the part of the Redis client the sink needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Redis publishes the JSON encoded event on a channel.
type Redis struct {
	client  Publisher
	channel string
}

func NewRedis(client Publisher, channel string) *Redis {
	return &Redis{client: client, channel: channel}
}

func (r *Redis) Notify(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", r.channel, err)
	}
	return nil
}
