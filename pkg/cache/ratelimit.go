package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter kept in Redis
type RateLimiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// NewRateLimiter allows limit hits per window for each key
func NewRateLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
	}
}

// Allow counts one hit for key and reports whether it is within the limit
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	bucket := time.Now().UnixNano() / int64(l.window)
	redisKey := fmt.Sprintf("ratelimit:%s:%s:%d", l.prefix, key, bucket)

	count, err := Incr(ctx, l.client, redisKey)
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := Expire(ctx, l.client, redisKey, l.window); err != nil {
			return false, err
		}
	}
	return count <= l.limit, nil
}
