// Package services contains application services for the AuthKeeper CLI.
// AuthService ties the remote API client to the locally cached session so a
// sign-in survives restarts and rotated tokens are written back to disk.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/api"
	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/client/repositories/session"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

// AuthService defines the account operations offered by the CLI.
//
// Contract:
//   - Restore: load a cached session into the client, reporting the email.
//   - Signup / Login: authenticate and persist the session.
//   - Refresh: rotate the token pair and persist it.
//   - Logout: revoke remotely and always forget the local session.
//   - Profile / UpdateProfile: authenticated profile access.
//   - Status: the signed-in email, empty when signed out.
type AuthService interface {
	Restore(ctx context.Context) (string, error)
	Signup(ctx context.Context, req *api.SignupRequest) (*api.Profile, error)
	Login(ctx context.Context, email string, password []byte) (*api.Profile, error)
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*api.Profile, error)
	UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.Profile, error)
	Ping(ctx context.Context) error
	Status() string
	Close() error
}

type authService struct {
	client  client.Client
	session session.Repository
	logger  logging.Logger
	now     func() time.Time
	email   string
}

// NewAuthService constructs an AuthService bound to the given API client and
// session repository. Tokens rotated by the client are saved as they arrive.
func NewAuthService(c client.Client, repo session.Repository, logger logging.Logger) AuthService {
	a := &authService{client: c, session: repo, logger: logger.With("module", "client-auth"), now: time.Now}
	c.OnRotate(a.persistRotation)
	return a
}

func (a *authService) persistRotation(access, refresh string) {
	ctx := context.Background()
	if _, err := a.session.UpdateTokens(ctx, access, refresh, a.now()); err != nil {
		a.logger.Error(ctx, "failed to persist rotated tokens", "error", err)
	}
}

func (a *authService) Restore(ctx context.Context) (string, error) {
	s, err := a.session.Load(ctx)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", nil
	}
	a.client.SetTokens(s.AccessToken, s.RefreshToken)
	a.email = s.Email
	return s.Email, nil
}

func (a *authService) save(ctx context.Context, email string) error {
	access, refresh := a.client.Tokens()
	err := a.session.Save(ctx, &session.Session{
		Email:        email,
		AccessToken:  access,
		RefreshToken: refresh,
		UpdatedAt:    a.now(),
	})
	if err != nil {
		return fmt.Errorf("session saving error: %w", err)
	}
	a.email = email
	return nil
}

func (a *authService) Signup(ctx context.Context, req *api.SignupRequest) (*api.Profile, error) {
	u, err := a.client.Signup(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := a.save(ctx, u.Email); err != nil {
		return nil, err
	}
	return u, nil
}

func (a *authService) Login(ctx context.Context, email string, password []byte) (*api.Profile, error) {
	u, err := a.client.Login(ctx, email, string(password))
	if err != nil {
		return nil, err
	}
	if err := a.save(ctx, u.Email); err != nil {
		return nil, err
	}
	return u, nil
}

// Refresh rotates explicitly; persistence happens through the rotation
// callback.
func (a *authService) Refresh(ctx context.Context) error {
	return a.client.Refresh(ctx)
}

func (a *authService) Logout(ctx context.Context) error {
	remote := a.client.Logout(ctx)
	a.email = ""
	if err := a.session.Clear(ctx); err != nil {
		return errors.Join(remote, err)
	}
	return remote
}

func (a *authService) Profile(ctx context.Context) (*api.Profile, error) {
	if a.email == "" {
		return nil, client.ErrNotSignedIn
	}
	return a.client.Profile(ctx)
}

func (a *authService) UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.Profile, error) {
	if a.email == "" {
		return nil, client.ErrNotSignedIn
	}
	return a.client.UpdateProfile(ctx, req)
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

func (a *authService) Status() string {
	return a.email
}

func (a *authService) Close() error {
	return a.client.Close()
}
