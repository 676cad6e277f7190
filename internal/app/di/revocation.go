// Package di provides dependency injection factories for creating application components.
package di

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	authadapters "scholarly_library/internal/feature/auth/adapters"
	"scholarly_library/internal/feature/auth/usecase"
	"scholarly_library/internal/platform/session"
)

// NewRevocationStore creates the token deny-list.
// If Redis is available, it returns a Redis-backed implementation.
// Otherwise, it falls back to the SQL database.
func NewRevocationStore(rdb *redis.Client, db *gorm.DB) usecase.RevocationStore {
	if rdb != nil {
		return session.NewRevocationRedis(rdb, "revoked")
	}
	return authadapters.NewRevocationGorm(db)
}
