package models

import "time"

// RefreshToken is the durable shadow of one issued refresh token.
type RefreshToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	IsRevoked bool
	CreatedAt time.Time
}

// Expired reports whether the record's expiry is at or before now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
