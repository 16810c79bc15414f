// Package ratelimit guards the on-demand endpoint with a fixed-window counter
// kept in Redis, so every API process shares the same counts.
//
// Bursts across a window boundary can reach twice the nominal rate. That is
// fine for abuse deterrence; it is not a quota.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

type Limiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func New(client *redis.Client, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 20
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{client: client, limit: limit, window: window}
}

func (l *Limiter) Limit() int {
	return l.limit
}

func (l *Limiter) Window() time.Duration {
	return l.window
}

// Allow reports whether clientKey may make another request in the current
// window. A rejected call does not consume a slot.
func (l *Limiter) Allow(ctx context.Context, clientKey string) (bool, error) {
	key := keyPrefix + clientKey

	current, err := l.client.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("read rate counter: %w", err)
	}
	if err == nil {
		count, convErr := strconv.Atoi(current)
		if convErr == nil && count >= l.limit {
			return false, nil
		}
	}

	// EXPIRE NX starts the window on the first increment and repairs a key
	// that somehow lost its TTL, without extending a running window.
	pipe := l.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("increment rate counter: %w", err)
	}
	return true, nil
}
