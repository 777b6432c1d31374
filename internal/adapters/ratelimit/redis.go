package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vncsmyrnk/taskboard/internal/core/ports"
)

var _ ports.RateLimiter = (*RedisLimiter)(nil)

const defaultKeyPrefix = "rate_limit:"

// RedisLimiter keeps fixed-window counters in redis so that several API
// processes share one quota. The key expires one window after its first hit.
type RedisLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client redis.Cmdable, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: defaultKeyPrefix,
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (ports.RateDecision, error) {
	redisKey := l.prefix + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, l.window)
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return ports.RateDecision{}, fmt.Errorf("failed to count request in redis: %w", err)
	}

	remainingTTL := ttl.Val()
	if remainingTTL <= 0 {
		remainingTTL = l.window
	}

	count := int(incr.Val())
	decision := ports.RateDecision{
		Allowed: count <= l.limit,
		Limit:   l.limit,
		ResetAt: l.now().Add(remainingTTL),
	}
	if decision.Allowed {
		decision.Remaining = l.limit - count
	}
	return decision, nil
}
