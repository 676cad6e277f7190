// Package session provides the Redis-backed token deny-list.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"scholarly_library/internal/feature/auth/usecase"
)

// RevocationRedis implements usecase.RevocationStore using Redis keys that
// expire together with the token they revoke.
type RevocationRedis struct {
	client *redis.Client
	prefix string
}

var _ usecase.RevocationStore = (*RevocationRedis)(nil)

// NewRevocationRedis creates a new RevocationRedis instance.
func NewRevocationRedis(client *redis.Client, prefix string) *RevocationRedis {
	if prefix == "" {
		prefix = "revoked"
	}
	return &RevocationRedis{
		client: client,
		prefix: prefix,
	}
}

// tokenKey returns the Redis key for a revoked token.
func (r *RevocationRedis) tokenKey(id string) string {
	return fmt.Sprintf("%s:%s", r.prefix, id)
}

// Revoke stores the token ID until expiresAt. Tokens that already expired are
// ignored since their own expiry rejects them.
func (r *RevocationRedis) Revoke(ctx context.Context, tokenID string, userID uint, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	// 値はログアウトしたユーザーID（監査用）
	if err := r.client.Set(ctx, r.tokenKey(tokenID), userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID is on the deny-list.
func (r *RevocationRedis) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.client.Get(ctx, r.tokenKey(tokenID)).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}
