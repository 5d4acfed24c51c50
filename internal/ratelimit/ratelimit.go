// Package ratelimit throttles ledger submissions per sender with a Redis-backed GCRA limiter.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "focusledger:submit:"

var (
	ErrRateLimited          = errors.New("rate limited")
	ErrInvalidLimiterConfig = errors.New("invalid limiter configuration")
)

// Limiter admits or rejects one event for key.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// LimitedError reports when the next event for a key will be admitted.
type LimitedError struct {
	Key        string
	RetryAfter time.Duration
}

func (limitedError *LimitedError) Error() string {
	return fmt.Sprintf("%s: %s retry after %s", ErrRateLimited, limitedError.Key, limitedError.RetryAfter)
}

func (limitedError *LimitedError) Unwrap() error {
	return ErrRateLimited
}

// RedisLimiter implements Limiter over redis_rate.
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
}

// NewRedis allows perMinute events per key and minute, with bursts up to burst.
func NewRedis(client redis.UniversalClient, perMinute int, burst int) (*RedisLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis client is nil", ErrInvalidLimiterConfig)
	}
	if perMinute <= 0 {
		return nil, fmt.Errorf("%w: per-minute rate must be positive", ErrInvalidLimiterConfig)
	}
	limit := redis_rate.PerMinute(perMinute)
	if burst > 0 {
		limit.Burst = burst
	}
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(client),
		limit:   limit,
		prefix:  defaultKeyPrefix,
	}, nil
}

// Allow consumes one event for key.
func (limiter *RedisLimiter) Allow(ctx context.Context, key string) error {
	normalizedKey := strings.TrimSpace(key)
	if normalizedKey == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidLimiterConfig)
	}
	result, err := limiter.limiter.Allow(ctx, limiter.prefix+normalizedKey, limiter.limit)
	if err != nil {
		return fmt.Errorf("rate limit %s: %w", normalizedKey, err)
	}
	if result.Allowed == 0 {
		return &LimitedError{Key: normalizedKey, RetryAfter: result.RetryAfter}
	}
	return nil
}

// Reset forgets the recorded events of key.
func (limiter *RedisLimiter) Reset(ctx context.Context, key string) error {
	return limiter.limiter.Reset(ctx, limiter.prefix+strings.TrimSpace(key))
}
