// Package services contains server-side business logic. UserService owns
// signup, login, refresh token rotation, logout and profile management.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/audit"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

const (
	MsgInvalidCredentials  = "Invalid email or password"
	MsgAccountDeactivated  = "Account is deactivated"
	MsgInvalidRefreshToken = "Invalid refresh token"
	MsgRefreshTokenExpired = "Refresh token has expired"
	MsgUserInactive        = "User not found or inactive"
	MsgUserNotFound        = "User not found"
	MsgEmailInUse          = users.MsgEmailInUse
	MsgUsernameTaken       = users.MsgUsernameTaken
)

var tracer = otel.Tracer("github.com/dmitrijs2005/authkeeper/internal/server/services")

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// SignupInput carries already validated signup fields.
type SignupInput struct {
	Email    string
	Password string
	Username *string
	Name     *string
	Phone    *string
}

// AuthResult answers signup and login.
type AuthResult struct {
	User   *models.Profile
	Tokens *auth.TokenPair
}

type UserService struct {
	rm     repomanager.RepositoryManager
	codec  *auth.Codec
	hasher Hasher
	sink   audit.Sink
	logger logging.Logger
	now    func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

func NewUserService(rm repomanager.RepositoryManager, codec *auth.Codec, hasher Hasher, sink audit.Sink, logger logging.Logger) *UserService {
	if sink == nil {
		sink = audit.Multi{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &UserService{
		rm:     rm,
		codec:  codec,
		hasher: hasher,
		sink:   sink,
		logger: logger.With("module", "services"),
		now:    time.Now,
	}
}

// WithClock makes s read the current time from now when judging stored
// refresh token expiry.
func (s *UserService) WithClock(now func() time.Time) *UserService {
	s.now = now
	return s
}

func (s *UserService) Signup(ctx context.Context, in SignupInput) (_ *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "UserService.Signup")
	defer func() { endSpan(span, err) }()

	repo := s.rm.Users(s.rm.DB())

	exists, err := repo.EmailExists(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, common.Conflict(MsgEmailInUse)
	}
	if in.Username != nil {
		exists, err = repo.UsernameExists(ctx, *in.Username)
		if err != nil {
			return nil, fmt.Errorf("check username: %w", err)
		}
		if exists {
			return nil, common.Conflict(MsgUsernameTaken)
		}
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	// The user row and its first session commit together, so a failed
	// session write leaves the email free for a retry. A concurrent signup
	// can still win the unique index; the store reports that as a conflict.
	var (
		user *models.User
		pair *auth.TokenPair
	)
	err = s.rm.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.rm.Users(tx).Create(ctx, &models.User{
			Email:          in.Email,
			Username:       in.Username,
			Name:           in.Name,
			Phone:          in.Phone,
			PasswordDigest: digest,
			IsActive:       true,
		})
		if err != nil {
			if errors.Is(err, common.ErrorConflict) {
				return err
			}
			return fmt.Errorf("create user: %w", err)
		}
		issued, err := s.issueSession(ctx, tx, created)
		if err != nil {
			return err
		}
		user, pair = created, issued
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, &audit.Event{Type: audit.EventSignup, UserID: user.ID, Email: user.Email})
	return &AuthResult{User: user.Profile(), Tokens: pair}, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (_ *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "UserService.Login")
	defer func() { endSpan(span, err) }()

	user, err := s.rm.Users(s.rm.DB()).FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		// Burn the same bcrypt time as a real mismatch.
		s.hasher.Verify(password, s.dummy())
		s.record(ctx, &audit.Event{Type: audit.EventLoginFailure, Email: email, Reason: "unknown email"})
		return nil, common.Unauthorized(MsgInvalidCredentials)
	}
	if !user.IsActive {
		s.record(ctx, &audit.Event{Type: audit.EventLoginFailure, UserID: user.ID, Email: email, Reason: "deactivated"})
		return nil, common.Unauthorized(MsgAccountDeactivated)
	}
	if !s.hasher.Verify(password, user.PasswordDigest) {
		s.record(ctx, &audit.Event{Type: audit.EventLoginFailure, UserID: user.ID, Email: email, Reason: "wrong password"})
		return nil, common.Unauthorized(MsgInvalidCredentials)
	}

	pair, err := s.issueSession(ctx, s.rm.DB(), user)
	if err != nil {
		return nil, err
	}

	s.record(ctx, &audit.Event{Type: audit.EventLoginSuccess, UserID: user.ID, Email: user.Email})
	return &AuthResult{User: user.Profile(), Tokens: pair}, nil
}

// RefreshToken exchanges a refresh token for a new pair. Each refresh token
// succeeds at most once: the presented record is revoked with a conditional
// write in the same transaction that stores its successor.
func (s *UserService) RefreshToken(ctx context.Context, presented string) (_ *auth.TokenPair, err error) {
	ctx, span := tracer.Start(ctx, "UserService.RefreshToken")
	defer func() { endSpan(span, err) }()

	tokens := s.rm.RefreshTokens(s.rm.DB())

	claims, err := s.codec.VerifyRefreshToken(presented)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			if _, derr := tokens.Delete(ctx, presented); derr != nil {
				s.logger.Warn(ctx, "delete expired refresh token", "error", derr)
			}
			s.refreshFailed(ctx, "", "expired")
			return nil, common.Unauthorized(MsgRefreshTokenExpired)
		}
		s.refreshFailed(ctx, "", "invalid")
		return nil, common.UnauthorizedWrap(MsgInvalidRefreshToken, err)
	}

	rec, err := tokens.Find(ctx, presented)
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	if rec == nil || rec.IsRevoked || rec.UserID != claims.UserID {
		s.refreshFailed(ctx, claims.UserID, "unknown or revoked")
		return nil, common.Unauthorized(MsgInvalidRefreshToken)
	}
	if rec.Expired(s.now()) {
		if _, err := tokens.Delete(ctx, presented); err != nil {
			return nil, fmt.Errorf("delete expired refresh token: %w", err)
		}
		s.refreshFailed(ctx, claims.UserID, "expired")
		return nil, common.Unauthorized(MsgRefreshTokenExpired)
	}

	user, err := s.rm.Users(s.rm.DB()).FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil || !user.IsActive {
		s.refreshFailed(ctx, claims.UserID, "user inactive")
		return nil, common.Unauthorized(MsgUserInactive)
	}

	pair, expiresAt, err := s.mint(user)
	if err != nil {
		return nil, err
	}

	err = s.rm.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.RefreshTokens(tx)
		revoked, err := repo.Revoke(ctx, presented)
		if err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
		if !revoked {
			return common.Unauthorized(MsgInvalidRefreshToken)
		}
		if err := repo.Create(ctx, pair.RefreshToken, user.ID, expiresAt); err != nil {
			return fmt.Errorf("store refresh token: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			s.refreshFailed(ctx, user.ID, "lost rotation race")
		}
		return nil, err
	}

	s.record(ctx, &audit.Event{Type: audit.EventRefreshSuccess, UserID: user.ID})
	return pair, nil
}

// Logout deletes the stored record of refreshToken, if any. An unknown or
// already consumed token is not an error.
func (s *UserService) Logout(ctx context.Context, refreshToken string) (err error) {
	ctx, span := tracer.Start(ctx, "UserService.Logout")
	defer func() { endSpan(span, err) }()

	if refreshToken == "" {
		return nil
	}
	removed, err := s.rm.RefreshTokens(s.rm.DB()).Delete(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}

	e := &audit.Event{Type: audit.EventLogout, Details: map[string]any{"removed": removed}}
	if c := auth.DecodeUnsafe(refreshToken); c != nil && removed {
		e.UserID = c.UserID
	}
	s.record(ctx, e)
	return nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (_ *models.Profile, err error) {
	ctx, span := tracer.Start(ctx, "UserService.GetProfile")
	defer func() { endSpan(span, err) }()

	user, err := s.rm.Users(s.rm.DB()).FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, common.NotFound(MsgUserNotFound)
	}
	return user.Profile(), nil
}

// UpdateProfile applies the fields present in upd. Email and password are
// not reachable through this path.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (_ *models.Profile, err error) {
	ctx, span := tracer.Start(ctx, "UserService.UpdateProfile")
	defer func() { endSpan(span, err) }()

	repo := s.rm.Users(s.rm.DB())

	user, err := repo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, common.NotFound(MsgUserNotFound)
	}
	if upd.Empty() {
		return user.Profile(), nil
	}

	if upd.Username != nil && (user.Username == nil || *user.Username != *upd.Username) {
		taken, err := repo.UsernameExists(ctx, *upd.Username)
		if err != nil {
			return nil, fmt.Errorf("check username: %w", err)
		}
		if taken {
			return nil, common.Conflict(MsgUsernameTaken)
		}
	}

	updated, err := repo.UpdateByID(ctx, userID, upd)
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	if updated == nil {
		return nil, common.NotFound(MsgUserNotFound)
	}

	s.record(ctx, &audit.Event{Type: audit.EventProfileUpdated, UserID: userID, Details: changedFields(upd)})
	return updated.Profile(), nil
}

// Deactivate disables a user and drops every refresh token they hold.
func (s *UserService) Deactivate(ctx context.Context, userID string) (err error) {
	ctx, span := tracer.Start(ctx, "UserService.Deactivate")
	defer func() { endSpan(span, err) }()

	var removed int64
	err = s.rm.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		found, err := s.rm.Users(tx).SetActive(ctx, userID, false)
		if err != nil {
			return fmt.Errorf("deactivate user: %w", err)
		}
		if !found {
			return common.NotFound(MsgUserNotFound)
		}
		removed, err = s.rm.RefreshTokens(tx).DeleteAllForUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("delete refresh tokens: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.record(ctx, &audit.Event{Type: audit.EventUserDeactivated, UserID: userID, Details: map[string]any{"tokens_removed": removed}})
	return nil
}

// PurgeTokens removes revoked and expired refresh token records.
func (s *UserService) PurgeTokens(ctx context.Context) (_ int64, err error) {
	ctx, span := tracer.Start(ctx, "UserService.PurgeTokens")
	defer func() { endSpan(span, err) }()

	n, err := s.rm.RefreshTokens(s.rm.DB()).PurgeExpiredOrRevoked(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	span.SetAttributes(attribute.Int64("tokens.purged", n))
	if n > 0 {
		s.record(ctx, &audit.Event{Type: audit.EventTokensPurged, Details: map[string]any{"count": n}})
	}
	return n, nil
}

// --- helpers below ---

func payloadOf(u *models.User) auth.Payload {
	return auth.Payload{UserID: u.ID, Email: u.Email, Username: u.Username}
}

// mint issues a pair and reads the refresh token's own expiry back for
// persistence.
func (s *UserService) mint(u *models.User) (*auth.TokenPair, time.Time, error) {
	pair, err := s.codec.IssuePair(payloadOf(u))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("issue tokens: %w", err)
	}
	expiresAt, ok := auth.ExpiresAt(pair.RefreshToken)
	if !ok {
		return nil, time.Time{}, errors.New("issued refresh token has no expiry")
	}
	return pair, expiresAt, nil
}

func (s *UserService) issueSession(ctx context.Context, db dbx.DBTX, u *models.User) (*auth.TokenPair, error) {
	pair, expiresAt, err := s.mint(u)
	if err != nil {
		return nil, err
	}
	if err := s.rm.RefreshTokens(db).Create(ctx, pair.RefreshToken, u.ID, expiresAt); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return pair, nil
}

func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		d, err := s.hasher.Hash("authkeeper-timing-equalizer")
		if err != nil {
			s.logger.Warn(context.Background(), "dummy digest", "error", err)
		}
		s.dummyDigest = d
	})
	return s.dummyDigest
}

func (s *UserService) refreshFailed(ctx context.Context, userID, reason string) {
	s.record(ctx, &audit.Event{Type: audit.EventRefreshFailure, UserID: userID, Reason: reason})
}

// record never fails the calling operation.
func (s *UserService) record(ctx context.Context, e *audit.Event) {
	e.Stamp(s.now())
	if err := s.sink.Log(ctx, e); err != nil {
		s.logger.Error(ctx, "audit sink failed", "event", string(e.Type), "error", err)
	}
}

func changedFields(upd models.ProfileUpdate) map[string]any {
	var fields []string
	if upd.Username != nil {
		fields = append(fields, "username")
	}
	if upd.Name != nil {
		fields = append(fields, "name")
	}
	if upd.Phone != nil {
		fields = append(fields, "phone")
	}
	return map[string]any{"fields": fields}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, common.Message(err))
	}
	span.End()
}
