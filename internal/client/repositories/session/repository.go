// Package session persists the signed-in CLI session (email and current
// token pair) in the client's local sqlite database.
package session

import (
	"context"
	"time"
)

// Session is the locally cached sign-in state. At most one is stored.
type Session struct {
	Email        string
	AccessToken  string
	RefreshToken string
	UpdatedAt    time.Time
}

type Repository interface {
	// Save replaces the stored session.
	Save(ctx context.Context, s *Session) error
	// Load returns (nil, nil) when nobody is signed in.
	Load(ctx context.Context) (*Session, error)
	// UpdateTokens rewrites the token pair of the stored session, keeping the
	// email. It reports false when no session is stored.
	UpdateTokens(ctx context.Context, access, refresh string, at time.Time) (bool, error)
	Clear(ctx context.Context) error
}
