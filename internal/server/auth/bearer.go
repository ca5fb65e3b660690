package auth

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// ParseBearer extracts the token from an "Authorization: Bearer <token>"
// header value.
func ParseBearer(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", common.Unauthorized("Authorization header is required")
	}
	if !strings.HasPrefix(header, common.BearerPrefix) {
		return "", common.Unauthorized("Bearer token is required")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, common.BearerPrefix))
	if token == "" {
		return "", common.Unauthorized("Bearer token is required")
	}
	return token, nil
}

type claimsKey struct{}

// WithClaims stores verified access-token claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the claims stored by WithClaims.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}
