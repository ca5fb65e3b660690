package common

// AuthorizationHeaderName is the gRPC metadata / HTTP header key carrying
// the bearer access token.
const AuthorizationHeaderName = "authorization"

// BearerPrefix is the scheme prefix expected in AuthorizationHeaderName.
const BearerPrefix = "Bearer "
