package adapters

import "time"

// RevokedTokenModel is the GORM model for the revoked_tokens table.
// A row only matters until ExpiresAt; after that the token is rejected by its own expiry.
type RevokedTokenModel struct {
	ID        string    `gorm:"primaryKey;size:64"` // token jti
	UserID    uint      `gorm:"index;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	RevokedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (RevokedTokenModel) TableName() string {
	return "revoked_tokens"
}
