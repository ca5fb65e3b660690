package client

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/api"
)

// Client is the remote AuthKeeper API as seen by the CLI. Implementations
// keep the current token pair themselves.
type Client interface {
	Close() error
	Signup(ctx context.Context, req *api.SignupRequest) (*api.Profile, error)
	Login(ctx context.Context, email, password string) (*api.Profile, error)
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*api.Profile, error)
	UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.Profile, error)
	Ping(ctx context.Context) error

	Tokens() (access, refresh string)
	SetTokens(access, refresh string)
	OnRotate(fn func(access, refresh string))
}
