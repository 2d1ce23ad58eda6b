// Package ratelimit throttles webhook traffic per contact and applies the
// configurable rejoin-cooldown policy. Both are best-effort guards in the
// messaging layer, not queue invariants: when Redis is unreachable the
// request is allowed through.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter throttles repeated actions from one contact.
type Limiter interface {
	// Allow reports whether the contact may perform the action now.
	Allow(ctx context.Context, action, contact string, limit int, window time.Duration) bool
	// StartCooldown blocks the contact from rejoining for the given window.
	StartCooldown(ctx context.Context, contact string, window time.Duration)
	// InCooldown reports whether the contact is still inside a cooldown.
	InCooldown(ctx context.Context, contact string) bool
}

// RedisLimiter counts actions with INCR/EXPIRE keys.
type RedisLimiter struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisLimiter wraps the client. logger may be nil.
func NewRedisLimiter(client *redis.Client, logger *zap.Logger) *RedisLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLimiter{client: client, logger: logger}
}

func (l *RedisLimiter) Allow(ctx context.Context, action, contact string, limit int, window time.Duration) bool {
	if l == nil || l.client == nil || limit <= 0 || contact == "" {
		return true
	}
	key := "rate_limit:" + action + ":" + contact
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Debug("rate limit check failed", zap.Error(err))
		return true
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, window).Err(); err != nil {
			l.logger.Debug("rate limit expire failed", zap.Error(err))
		}
	}
	return count <= int64(limit)
}

func (l *RedisLimiter) StartCooldown(ctx context.Context, contact string, window time.Duration) {
	if l == nil || l.client == nil || contact == "" || window <= 0 {
		return
	}
	if err := l.client.Set(ctx, "cooldown:"+contact, 1, window).Err(); err != nil {
		l.logger.Debug("cooldown write failed", zap.Error(err))
	}
}

func (l *RedisLimiter) InCooldown(ctx context.Context, contact string) bool {
	if l == nil || l.client == nil || contact == "" {
		return false
	}
	exists, err := l.client.Exists(ctx, "cooldown:"+contact).Result()
	if err != nil {
		return false
	}
	return exists > 0
}

// Unlimited never throttles. Used when Redis is not configured.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string, string, int, time.Duration) bool { return true }
func (Unlimited) StartCooldown(context.Context, string, time.Duration)           {}
func (Unlimited) InCooldown(context.Context, string) bool                        { return false }
