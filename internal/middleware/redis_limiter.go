package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLimiter is a fixed-window limiter shared by every instance pointed at
// the same Redis. When Redis is unreachable it allows the request.
type RedisLimiter struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

func NewRedisLimiter(client *redis.Client, logger *slog.Logger) *RedisLimiter {
	return &RedisLimiter{
		client:  client,
		prefix:  "kitchentory:ratelimit:",
		timeout: 250 * time.Millisecond,
		logger:  logger,
	}
}

func (l *RedisLimiter) Allow(key string, limit int, window time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	k := l.prefix + key
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		l.logger.Warn("rate limit store unavailable", "key", key, "error", err)
		return true
	}
	// The first hit in a window starts its clock.
	if n == 1 {
		if err := l.client.Expire(ctx, k, window).Err(); err != nil {
			l.logger.Warn("set rate limit window", "key", key, "error", err)
		}
	}
	return n <= int64(limit)
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
