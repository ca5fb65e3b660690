// Package users declares the user store contract and its PostgreSQL and
// in-memory implementations.
package users

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Conflict messages reported by Create and UpdateByID.
const (
	MsgEmailInUse    = "Email already in use"
	MsgUsernameTaken = "Username already taken"
	MsgUserExists    = "User already exists"
)

// Repository persists user identity records.
//
// Lookups and updates on a missing user return (nil, nil); the caller
// decides what absence means. Uniqueness of email and (non-null) username
// is enforced at write time and surfaces as common.ErrorConflict.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)

	// UpdateByID applies the non-nil fields of upd and returns the updated record.
	UpdateByID(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error)

	// SetActive flips the activation flag. It reports false when no such user exists.
	SetActive(ctx context.Context, id string, active bool) (bool, error)

	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
}
