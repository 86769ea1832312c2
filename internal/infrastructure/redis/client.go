package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Client is the Redis connection shared by the notification sink and the API
// rate limiter.
type Client struct {
	*redis.Client
}

// NewClient connects to url and pings the server before returning.
// URL format: redis://[:password@]host:port[/db]
func NewClient(ctx context.Context, url string) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{Client: client}, nil
}

// Healthy pings the server. It backs the readiness endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
