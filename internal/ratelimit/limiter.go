// Package ratelimit counts attempts per action and client in fixed Redis
// windows: INCR the key, set EXPIRE on the first hit, reject above the limit.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited = errors.New("rate limited")
	ErrUnavailable = errors.New("rate limiter unavailable")
)

type Rule struct {
	Max    int
	Window time.Duration
}

type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	rules  map[string]Rule
}

func New(client redis.UniversalClient, prefix string, rules map[string]Rule) *Limiter {
	if prefix == "" {
		prefix = "ss:rl"
	}
	return &Limiter{redis: client, prefix: prefix, rules: rules}
}

// Check records one attempt for (action, key). Actions without a rule, or
// with a non-positive limit, are never limited.
func (l *Limiter) Check(ctx context.Context, action, key string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	rule, ok := l.rules[action]
	if !ok || rule.Max <= 0 || rule.Window <= 0 {
		return nil
	}

	k := l.prefix + ":" + action + ":" + key
	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, k, rule.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if count > int64(rule.Max) {
		return ErrRateLimited
	}
	return nil
}
