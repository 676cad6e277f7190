package usecase

import (
	"context"
	"time"
)

// RevocationStore is the deny-list of logged-out token IDs.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type RevocationStore interface {
	// Revoke records tokenID as unusable until expiresAt.
	Revoke(ctx context.Context, tokenID string, userID uint, expiresAt time.Time) error

	// IsRevoked reports whether tokenID is on the deny-list.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
