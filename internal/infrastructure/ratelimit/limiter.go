// Package ratelimit throttles writes to the dashboard API per caller.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultWindow = time.Minute
	keyPrefix     = "microscope:ratelimit:"
)

// Result contains the rate limit check result.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int) (*Result, error)
}

// Limiter is a sliding window over a Redis sorted set, shared by every replica.
type Limiter struct {
	client *redis.Client
	window time.Duration
	now    func() time.Time
}

func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{
		client: client,
		window: defaultWindow,
		now:    time.Now,
	}
}

func (l *Limiter) Allow(ctx context.Context, key string, limit int) (*Result, error) {
	now := l.now()
	windowStart := now.Add(-l.window)
	key = keyPrefix + key

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, key, l.window+time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis pipeline failed: %w", err)
	}

	count := int(countCmd.Val())
	result := newResult(count, limit, now.Add(l.window))
	if !result.Allowed {
		l.client.ZPopMax(ctx, key)
	}
	return result, nil
}

// InMemoryLimiter keeps the window per process. It is used when no Redis is
// configured.
type InMemoryLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	window   time.Duration
	now      func() time.Time
}

func NewInMemoryLimiter() *InMemoryLimiter {
	return &InMemoryLimiter{
		requests: make(map[string][]time.Time),
		window:   defaultWindow,
		now:      time.Now,
	}
}

func (l *InMemoryLimiter) Allow(_ context.Context, key string, limit int) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.window)

	var valid []time.Time
	for _, ts := range l.requests[key] {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}

	result := newResult(len(valid), limit, now.Add(l.window))
	if result.Allowed {
		valid = append(valid, now)
	}

	if len(valid) == 0 {
		delete(l.requests, key)
	} else {
		l.requests[key] = valid
	}
	return result, nil
}

func newResult(count, limit int, resetAt time.Time) *Result {
	allowed := count < limit
	remaining := limit - count - 1
	if remaining < 0 || !allowed {
		remaining = 0
	}
	return &Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
