package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionRevocationRepository stores ids of session tokens that were logged out
// before their own expiry.
type SessionRevocationRepository interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type redisSessionRevocationRepository struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisSessionRevocationRepository(client redis.UniversalClient, prefix string) SessionRevocationRepository {
	if prefix == "" {
		prefix = "ss:revoked"
	}
	return &redisSessionRevocationRepository{redis: client, prefix: prefix}
}

func (r *redisSessionRevocationRepository) key(tokenID string) string {
	return r.prefix + ":" + tokenID
}

// Revoke keeps the entry only as long as the token could still be presented.
func (r *redisSessionRevocationRepository) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	if err := r.redis.Set(ctx, r.key(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("session revoke: %w", err)
	}
	return nil
}

func (r *redisSessionRevocationRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	err := r.redis.Get(ctx, r.key(tokenID)).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("session revocation lookup: %w", err)
	}
}

type noopSessionRevocationRepository struct{}

// NewNoopSessionRevocationRepository is used when Redis isn't configured:
// logout then only clears the cookie.
func NewNoopSessionRevocationRepository() SessionRevocationRepository {
	return noopSessionRevocationRepository{}
}

func (noopSessionRevocationRepository) Revoke(context.Context, string, time.Duration) error {
	return nil
}

func (noopSessionRevocationRepository) IsRevoked(context.Context, string) (bool, error) {
	return false, nil
}
