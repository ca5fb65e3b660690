package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Payload is the identity carried by both token classes.
type Payload struct {
	UserID   string
	Email    string
	Username *string
}

// Claims is the JWT body. TokenID is set on refresh tokens only and mirrored
// into the registered jti claim.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string  `json:"userId"`
	Email    string  `json:"email"`
	Username *string `json:"username,omitempty"`
	Type     string  `json:"typ"`
	TokenID  string  `json:"tokenId,omitempty"`
}

// Payload extracts the identity from c.
func (c *Claims) Payload() Payload {
	return Payload{UserID: c.UserID, Email: c.Email, Username: c.Username}
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// CodecConfig configures a Codec. The two secrets must differ.
type CodecConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Codec issues and verifies access and refresh tokens.
type Codec struct {
	cfg   CodecConfig
	now   func() time.Time
	newID func() string
}

func NewCodec(cfg CodecConfig) *Codec {
	return &Codec{cfg: cfg, now: time.Now, newID: uuid.NewString}
}

// WithClock returns a copy of c reading time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

func (c *Codec) sign(p Payload, typ string, ttl time.Duration, secret []byte, tokenID string) (string, error) {
	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			Subject:   p.UserID,
			Audience:  jwt.ClaimStrings{c.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        tokenID,
		},
		UserID:   p.UserID,
		Email:    p.Email,
		Username: p.Username,
		Type:     typ,
		TokenID:  tokenID,
	}

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return s, nil
}

func (c *Codec) IssueAccessToken(p Payload) (string, error) {
	return c.sign(p, TypeAccess, c.cfg.AccessTTL, c.cfg.AccessSecret, "")
}

// IssueRefreshToken embeds a fresh tokenId so two tokens minted in the same
// second for the same user never collide.
func (c *Codec) IssueRefreshToken(p Payload) (string, error) {
	return c.sign(p, TypeRefresh, c.cfg.RefreshTTL, c.cfg.RefreshSecret, c.newID())
}

func (c *Codec) IssuePair(p Payload) (*TokenPair, error) {
	access, err := c.IssueAccessToken(p)
	if err != nil {
		return nil, err
	}
	refresh, err := c.IssueRefreshToken(p)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (c *Codec) VerifyAccessToken(token string) (*Claims, error) {
	return c.verify(token, TypeAccess, c.cfg.AccessSecret)
}

func (c *Codec) VerifyRefreshToken(token string) (*Claims, error) {
	return c.verify(token, TypeRefresh, c.cfg.RefreshSecret)
}

func invalidToken(cause error) error {
	return common.UnauthorizedWrap("Invalid token", errors.Join(common.ErrInvalidToken, cause))
}

func expiredToken() error {
	return common.UnauthorizedWrap("Token has expired", common.ErrTokenExpired)
}

func (c *Codec) keyFunc(secret []byte) jwt.Keyfunc {
	return func(*jwt.Token) (any, error) { return secret, nil }
}

// verify fails with "Token has expired" only when the token is authentic
// (signature, issuer, audience, type) and nothing but its expiry is wrong.
func (c *Codec) verify(token, typ string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, c.keyFunc(secret),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithAudience(c.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && c.authentic(token, typ, secret) {
			return nil, expiredToken()
		}
		return nil, invalidToken(err)
	}
	if claims.Type != typ || claims.UserID == "" {
		return nil, invalidToken(fmt.Errorf("unexpected token type %q", claims.Type))
	}
	return claims, nil
}

// authentic re-checks an expired token with time-based validation off.
func (c *Codec) authentic(token, typ string, secret []byte) bool {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, c.keyFunc(secret),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || claims.Type != typ || claims.Issuer != c.cfg.Issuer {
		return false
	}
	for _, aud := range claims.Audience {
		if aud == c.cfg.Audience {
			return true
		}
	}
	return false
}

// DecodeUnsafe parses claims without verifying the signature or expiry. It
// is for bookkeeping only (reading the expiry to persist) and returns nil on
// unparseable input.
func DecodeUnsafe(token string) *Claims {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

// ExpiresAt returns the embedded expiry of token, if any.
func ExpiresAt(token string) (time.Time, bool) {
	claims := DecodeUnsafe(token)
	if claims == nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
