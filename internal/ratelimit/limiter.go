// Package ratelimit implements a fixed-window request counter backed by a
// shared Redis instance. The window is fixed because the key's TTL is set
// only by the increment that opens the window; later hits never extend it.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Limiter counts requests per (route, client address) pair. It fails open:
// if Redis is unreachable the request is allowed and a warning is logged,
// so a counter outage never becomes an outage of the protected endpoints.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
	logger *zap.Logger
}

func New(redisClient redis.UniversalClient, cfg Config, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
		logger: logger,
	}
}

// Allow atomically increments the counter for the pair and reports whether
// the request is within budget.
func (l *Limiter) Allow(ctx context.Context, route, addr string) bool {
	key := bucketKey(route, addr)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn("rate limiter unavailable, allowing request",
			zap.String("key", key), zap.Error(err))
		return true
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			l.logger.Warn("rate limiter failed to set window expiry",
				zap.String("key", key), zap.Error(err))
			return true
		}
	}

	return count <= int64(l.config.MaxRequests)
}

// Reset clears the counter for the pair, unblocking the client immediately.
// Returns false when the counter backend errors; it never propagates one.
func (l *Limiter) Reset(ctx context.Context, route, addr string) bool {
	key := bucketKey(route, addr)
	if err := l.redis.Del(ctx, key).Err(); err != nil {
		l.logger.Warn("rate limiter failed to reset counter",
			zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (l *Limiter) Limit() int {
	return l.config.MaxRequests
}

func (l *Limiter) Window() time.Duration {
	return l.config.Window
}

func bucketKey(route, addr string) string {
	return "rl:" + route + ":" + addr
}
