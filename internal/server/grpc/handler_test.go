package grpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/authkeeper/internal/api"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

// ---- fakes ----

type fakeUser struct {
	signupIn  services.SignupInput
	signupRes *services.AuthResult
	signupErr error

	loginRes *services.AuthResult
	loginErr error

	refreshIn   string
	refreshResp *auth.TokenPair
	refreshErr  error

	logoutIn  string
	logoutErr error

	profileID  string
	profile    *models.Profile
	profileErr error

	update models.ProfileUpdate
}

func (f *fakeUser) Signup(_ context.Context, in services.SignupInput) (*services.AuthResult, error) {
	f.signupIn = in
	return f.signupRes, f.signupErr
}
func (f *fakeUser) Login(context.Context, string, string) (*services.AuthResult, error) {
	return f.loginRes, f.loginErr
}
func (f *fakeUser) RefreshToken(_ context.Context, t string) (*auth.TokenPair, error) {
	f.refreshIn = t
	return f.refreshResp, f.refreshErr
}
func (f *fakeUser) Logout(_ context.Context, t string) error {
	f.logoutIn = t
	return f.logoutErr
}
func (f *fakeUser) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	f.profileID = id
	return f.profile, f.profileErr
}
func (f *fakeUser) UpdateProfile(_ context.Context, id string, upd models.ProfileUpdate) (*models.Profile, error) {
	f.profileID = id
	f.update = upd
	return f.profile, f.profileErr
}

// ---- helpers ----

func newServer(u userSvc) *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", logging.Nop(), u, newCodec())
}

func newCodec() *auth.Codec {
	return auth.NewCodec(auth.CodecConfig{
		AccessSecret:  []byte("access-secret-access-secret-access-secret"),
		RefreshSecret: []byte("refresh-secret-refresh-secret-refresh-secret"),
		Issuer:        "authkeeper",
		Audience:      "authkeeper-clients",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    time.Hour,
	})
}

func strptr(s string) *string { return &s }

func authResult() *services.AuthResult {
	return &services.AuthResult{
		User:   &models.Profile{ID: "u1", Email: "a@example.com", IsActive: true},
		Tokens: &auth.TokenPair{AccessToken: "A", RefreshToken: "R"},
	}
}

func assertCode(t *testing.T, err error, code codes.Code, msg string) {
	t.Helper()
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok, "not a status error: %v", err)
	assert.Equal(t, code, st.Code())
	if msg != "" {
		assert.Equal(t, msg, st.Message())
	}
}

// ---- tests ----

func TestPing_OK(t *testing.T) {
	s := newServer(&fakeUser{})
	resp, err := s.Ping(context.Background(), &api.PingRequest{})
	require.NoError(t, err)
	assert.Equal(t, "OK", resp.Status)
}

func TestSignup_OK(t *testing.T) {
	u := &fakeUser{signupRes: authResult()}
	s := newServer(u)

	resp, err := s.Signup(context.Background(), &api.SignupRequest{
		Email: "a@example.com", Password: "Str0ng!Pass", Username: strptr("alice"),
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.User.ID)
	assert.Equal(t, "A", resp.AccessToken)
	assert.Equal(t, "R", resp.RefreshToken)
	assert.Equal(t, "alice", *u.signupIn.Username)
}

func TestSignup_ValidationRejectedBeforeService(t *testing.T) {
	u := &fakeUser{signupErr: errors.New("must not be called")}
	s := newServer(u)

	_, err := s.Signup(context.Background(), &api.SignupRequest{Email: "bad", Password: "Str0ng!Pass"})
	assertCode(t, err, codes.InvalidArgument, "Invalid email format")
	assert.Empty(t, u.signupIn.Email)
}

func TestSignup_Conflict(t *testing.T) {
	s := newServer(&fakeUser{signupErr: common.Conflict("Email already in use")})
	_, err := s.Signup(context.Background(), &api.SignupRequest{Email: "a@example.com", Password: "Str0ng!Pass"})
	assertCode(t, err, codes.AlreadyExists, "Email already in use")
}

func TestLogin_UnauthorizedAndInternal(t *testing.T) {
	s := newServer(&fakeUser{loginErr: common.Unauthorized("Invalid email or password")})
	_, err := s.Login(context.Background(), &api.LoginRequest{Email: "a@example.com", Password: "x"})
	assertCode(t, err, codes.Unauthenticated, "Invalid email or password")

	s2 := newServer(&fakeUser{loginErr: errors.New("pq: connection refused")})
	_, err = s2.Login(context.Background(), &api.LoginRequest{Email: "a@example.com", Password: "x"})
	assertCode(t, err, codes.Internal, "internal error")
}

func TestRefreshToken_OK(t *testing.T) {
	u := &fakeUser{refreshResp: &auth.TokenPair{AccessToken: "a", RefreshToken: "r"}}
	s := newServer(u)

	resp, err := s.RefreshToken(context.Background(), &api.RefreshTokenRequest{RefreshToken: "r0"})
	require.NoError(t, err)
	assert.Equal(t, "a", resp.AccessToken)
	assert.Equal(t, "r", resp.RefreshToken)
	assert.Equal(t, "r0", u.refreshIn)
}

func TestRefreshToken_Errors(t *testing.T) {
	s := newServer(&fakeUser{refreshErr: common.Unauthorized("Refresh token has expired")})
	_, err := s.RefreshToken(context.Background(), &api.RefreshTokenRequest{RefreshToken: "r0"})
	assertCode(t, err, codes.Unauthenticated, "Refresh token has expired")

	_, err = s.RefreshToken(context.Background(), &api.RefreshTokenRequest{})
	assertCode(t, err, codes.InvalidArgument, "Refresh token is required")
}

func TestLogout_AlwaysMessage(t *testing.T) {
	u := &fakeUser{}
	s := newServer(u)

	resp, err := s.Logout(context.Background(), &api.LogoutRequest{RefreshToken: "r"})
	require.NoError(t, err)
	assert.Equal(t, "Logged out successfully", resp.Message)
	assert.Equal(t, "r", u.logoutIn)

	resp, err = s.Logout(context.Background(), &api.LogoutRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Logged out successfully", resp.Message)
}

func TestGetProfile_UsesClaims(t *testing.T) {
	u := &fakeUser{profile: &models.Profile{ID: "u9"}}
	s := newServer(u)

	ctx := auth.WithClaims(context.Background(), &auth.Claims{UserID: "u9"})
	resp, err := s.GetProfile(ctx, &api.GetProfileRequest{})
	require.NoError(t, err)
	assert.Equal(t, "u9", resp.User.ID)
	assert.Equal(t, "u9", u.profileID)

	_, err = s.GetProfile(context.Background(), &api.GetProfileRequest{})
	assertCode(t, err, codes.Unauthenticated, "")
}

func TestGetProfile_NotFound(t *testing.T) {
	s := newServer(&fakeUser{profileErr: common.NotFound("User not found")})
	ctx := auth.WithClaims(context.Background(), &auth.Claims{UserID: "gone"})
	_, err := s.GetProfile(ctx, &api.GetProfileRequest{})
	assertCode(t, err, codes.NotFound, "User not found")
}

func TestUpdateProfile(t *testing.T) {
	u := &fakeUser{profile: &models.Profile{ID: "u1", Name: strptr("Alice")}}
	s := newServer(u)
	ctx := auth.WithClaims(context.Background(), &auth.Claims{UserID: "u1"})

	resp, err := s.UpdateProfile(ctx, &api.UpdateProfileRequest{Name: strptr("Alice")})
	require.NoError(t, err)
	assert.Equal(t, "Alice", *resp.User.Name)
	assert.Equal(t, "Alice", *u.update.Name)
	assert.Nil(t, u.update.Username)

	_, err = s.UpdateProfile(ctx, &api.UpdateProfileRequest{})
	assertCode(t, err, codes.InvalidArgument, "At least one field must be provided")
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
		msg  string
	}{
		{common.Conflict("x"), codes.AlreadyExists, "x"},
		{common.Unauthorized("y"), codes.Unauthenticated, "y"},
		{common.NotFound("z"), codes.NotFound, "z"},
		{common.Validation("v"), codes.InvalidArgument, "v"},
		{errors.New("secret detail"), codes.Internal, "internal error"},
	}
	for _, tt := range tests {
		st := status.Convert(toStatus(tt.err))
		assert.Equal(t, tt.code, st.Code())
		assert.Equal(t, tt.msg, st.Message())
	}
	assert.NoError(t, toStatus(nil))
}
