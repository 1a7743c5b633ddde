package redis

import (
	"context"
	"strings"
	"time"
)

type counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
}

// RateLimiter is a fixed-window counter: the first hit in a window sets the TTL.
type RateLimiter struct {
	client counter
	prefix string
}

func NewRateLimiter(client counter, prefix string) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	// Keys are case-insensitive so "A@b.com" and "a@B.com" share a window.
	fullKey := r.prefix + ":" + strings.ToLower(strings.TrimSpace(key))
	count, err := r.client.Incr(ctx, fullKey)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, fullKey, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}
