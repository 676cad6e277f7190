package adapters

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scholarly_library/internal/feature/auth/usecase"
)

// revocationGorm is the SQL-backed token deny-list used when Redis is not configured.
type revocationGorm struct {
	db *gorm.DB
}

// Compile-time check to ensure revocationGorm implements RevocationStore.
var _ usecase.RevocationStore = (*revocationGorm)(nil)

// NewRevocationGorm creates a new instance of revocationGorm.
func NewRevocationGorm(db *gorm.DB) *revocationGorm {
	return &revocationGorm{db: db}
}

// Revoke inserts the token ID. Revoking the same token twice is a no-op.
func (r *revocationGorm) Revoke(ctx context.Context, tokenID string, userID uint, expiresAt time.Time) error {
	m := &RevokedTokenModel{
		ID:        tokenID,
		UserID:    userID,
		ExpiresAt: expiresAt,
		RevokedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m).Error
}

// IsRevoked reports whether an unexpired entry exists for tokenID.
func (r *revocationGorm) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&RevokedTokenModel{}).
		Where("id = ? AND expires_at > ?", tokenID, time.Now()).
		Count(&count).Error
	return count > 0, err
}

// DeleteExpired removes entries whose tokens have expired on their own.
func (r *revocationGorm) DeleteExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&RevokedTokenModel{})
	return result.RowsAffected, result.Error
}
