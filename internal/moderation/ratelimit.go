// Package moderation gates inbound actions: ban enforcement, membership
// checks, rate limiting and action authority.
package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the action to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed denies the action if Redis is unavailable.
	FailClosed
)

// RateLimiter enforces a per-actor, per-action-group budget. The budget
// is a hard ceiling: concurrent in-flight requests for the same actor
// cannot overrun it.
type RateLimiter interface {
	Allow(ctx context.Context, group string, actorID uint) (bool, error)
}

// RedisRateLimiter counts actions in Redis with an atomic INCR per
// (group, actor) key that expires after the window. INCR's atomicity is
// what makes the budget a ceiling rather than advisory.
type RedisRateLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	policy FailPolicy
}

// NewRedisRateLimiter returns a limiter allowing `limit` actions per
// `window` per (group, actor).
func NewRedisRateLimiter(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy) *RedisRateLimiter {
	return &RedisRateLimiter{rdb: rdb, limit: limit, window: window, policy: policy}
}

// Allow records one action and reports whether it fits the budget. The
// window is fixed, not sliding: a burst straddling a key expiry can pass
// up to twice the budget before the ceiling reasserts.
func (l *RedisRateLimiter) Allow(ctx context.Context, group string, actorID uint) (bool, error) {
	if l.rdb == nil {
		if l.policy == FailClosed {
			return false, fmt.Errorf("redis client is nil")
		}
		return true, nil
	}

	key := fmt.Sprintf("rl:%s:user:%d", group, actorID)
	cnt, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		if l.policy == FailClosed {
			return false, err
		}
		return true, nil
	}
	if cnt == 1 {
		l.rdb.Expire(ctx, key, l.window)
	}
	return cnt <= int64(l.limit), nil
}
