package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodecConfig() CodecConfig {
	return CodecConfig{
		AccessSecret:  []byte("access-secret-access-secret-0123"),
		RefreshSecret: []byte("refresh-secret-refresh-secret-01"),
		Issuer:        "authkeeper",
		Audience:      "authkeeper-clients",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}
}

func strptr(s string) *string { return &s }

var alice = Payload{UserID: "u1", Email: "a@x.com", Username: strptr("alice")}

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	t.Parallel()
	c := NewCodec(testCodecConfig())

	pair, err := c.IssuePair(alice)
	require.NoError(t, err)

	ac, err := c.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, ac.UserID)
	assert.Equal(t, alice.Email, ac.Email)
	assert.Equal(t, "alice", *ac.Username)
	assert.Equal(t, TypeAccess, ac.Type)
	assert.Empty(t, ac.TokenID)
	assert.Equal(t, "u1", ac.Subject)

	rc, err := c.VerifyRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, alice, rc.Payload())
	assert.NotEmpty(t, rc.TokenID)
	assert.Equal(t, rc.TokenID, rc.ID)
}

func TestIssueRefreshToken_SameInstantDiffers(t *testing.T) {
	t.Parallel()
	fixed := time.Now()
	c := NewCodec(testCodecConfig()).WithClock(func() time.Time { return fixed })

	a, err := c.IssueRefreshToken(alice)
	require.NoError(t, err)
	b, err := c.IssueRefreshToken(alice)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVerify_SecretIsolation(t *testing.T) {
	t.Parallel()
	c := NewCodec(testCodecConfig())
	pair, err := c.IssuePair(alice)
	require.NoError(t, err)

	_, err = c.VerifyRefreshToken(pair.AccessToken)
	require.True(t, errors.Is(err, common.ErrorUnauthorized))
	assert.True(t, errors.Is(err, common.ErrInvalidToken))

	_, err = c.VerifyAccessToken(pair.RefreshToken)
	require.True(t, errors.Is(err, common.ErrorUnauthorized))
	assert.True(t, errors.Is(err, common.ErrInvalidToken))
}

func TestVerify_TypeCheckedEvenWithSharedSecret(t *testing.T) {
	t.Parallel()
	cfg := testCodecConfig()
	cfg.RefreshSecret = cfg.AccessSecret
	c := NewCodec(cfg)

	refresh, err := c.IssueRefreshToken(alice)
	require.NoError(t, err)

	_, err = c.VerifyAccessToken(refresh)
	assert.True(t, errors.Is(err, common.ErrInvalidToken))
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()
	past := time.Now().Add(-8 * 24 * time.Hour)
	issuer := NewCodec(testCodecConfig()).WithClock(func() time.Time { return past })
	c := NewCodec(testCodecConfig())

	pair, err := issuer.IssuePair(alice)
	require.NoError(t, err)

	_, err = c.VerifyRefreshToken(pair.RefreshToken)
	require.True(t, errors.Is(err, common.ErrorUnauthorized))
	assert.True(t, errors.Is(err, common.ErrTokenExpired))
	assert.Equal(t, "Token has expired", err.Error())

	_, err = c.VerifyAccessToken(pair.AccessToken)
	assert.True(t, errors.Is(err, common.ErrTokenExpired))
}

func TestVerify_ExpiredForgeryIsInvalid(t *testing.T) {
	t.Parallel()
	past := time.Now().Add(-8 * 24 * time.Hour)
	forgedCfg := testCodecConfig()
	forgedCfg.RefreshSecret = []byte("attacker-secret-attacker-secret!")
	forger := NewCodec(forgedCfg).WithClock(func() time.Time { return past })

	tok, err := forger.IssueRefreshToken(alice)
	require.NoError(t, err)

	_, err = NewCodec(testCodecConfig()).VerifyRefreshToken(tok)
	require.True(t, errors.Is(err, common.ErrInvalidToken))
	assert.False(t, errors.Is(err, common.ErrTokenExpired))
}

func TestVerify_IssuerAndAudience(t *testing.T) {
	t.Parallel()

	other := testCodecConfig()
	other.Issuer = "someone-else"
	tok, err := NewCodec(other).IssueAccessToken(alice)
	require.NoError(t, err)
	_, err = NewCodec(testCodecConfig()).VerifyAccessToken(tok)
	assert.True(t, errors.Is(err, common.ErrInvalidToken), "issuer mismatch")

	other = testCodecConfig()
	other.Audience = "other-app"
	tok, err = NewCodec(other).IssueAccessToken(alice)
	require.NoError(t, err)
	_, err = NewCodec(testCodecConfig()).VerifyAccessToken(tok)
	assert.True(t, errors.Is(err, common.ErrInvalidToken), "audience mismatch")
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()
	cfg := testCodecConfig()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "u1",
		Type:   TypeAccess,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(cfg.AccessSecret)
	require.NoError(t, err)

	_, err = NewCodec(cfg).VerifyAccessToken(tok)
	assert.True(t, errors.Is(err, common.ErrInvalidToken))
}

func TestVerify_Garbage(t *testing.T) {
	t.Parallel()
	c := NewCodec(testCodecConfig())
	for _, tok := range []string{"", "abc", "a.b.c", strings.Repeat("x", 300)} {
		_, err := c.VerifyRefreshToken(tok)
		assert.True(t, errors.Is(err, common.ErrorUnauthorized), "token %q", tok)
		assert.Equal(t, "Invalid token", err.Error())
	}
}

func TestDecodeUnsafe(t *testing.T) {
	t.Parallel()
	past := time.Now().Add(-8 * 24 * time.Hour).Truncate(time.Second)
	c := NewCodec(testCodecConfig()).WithClock(func() time.Time { return past })

	tok, err := c.IssueRefreshToken(alice)
	require.NoError(t, err)

	claims := DecodeUnsafe(tok)
	require.NotNil(t, claims, "expired tokens still decode")
	assert.Equal(t, "u1", claims.UserID)

	exp, ok := ExpiresAt(tok)
	require.True(t, ok)
	assert.True(t, exp.Equal(past.Add(7*24*time.Hour)))

	assert.Nil(t, DecodeUnsafe("not-a-jwt"))
	_, ok = ExpiresAt("not-a-jwt")
	assert.False(t, ok)
}
