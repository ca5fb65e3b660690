// Package refreshtokens declares the refresh token store contract and its
// PostgreSQL and in-memory implementations.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository persists issued refresh tokens keyed by their exact token string.
type Repository interface {
	// Create stores a new active record.
	Create(ctx context.Context, token string, userID string, expiresAt time.Time) error

	// Find returns the record for token, or (nil, nil) when absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Revoke marks an active record as revoked in one conditional write.
	// It reports true only for the call that performed the transition, so of
	// two concurrent revokes of the same token exactly one wins.
	Revoke(ctx context.Context, token string) (bool, error)

	// Delete removes the record. Deleting an absent token is not an error;
	// the result reports whether a row was removed.
	Delete(ctx context.Context, token string) (bool, error)

	// DeleteAllForUser removes every record owned by userID.
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)

	// PurgeExpiredOrRevoked removes revoked records and those expired at now.
	PurgeExpiredOrRevoked(ctx context.Context, now time.Time) (int64, error)
}
