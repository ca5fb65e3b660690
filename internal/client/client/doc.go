// Package client contains the client-side building blocks of AuthKeeper.
//
// GRPCClient speaks the AuthService API. Its unary interceptor attaches the
// current access token as "authorization: Bearer <token>" and, when a call is
// rejected with Unauthenticated "Token has expired", rotates the token pair
// once through RefreshToken and retries the original call. Rotated pairs are
// reported to an optional callback so callers can persist them.
//
// InitDatabase opens the local sqlite session database and applies the
// embedded goose migrations.
//
// gRPC status codes are mapped onto common error kinds (see mapError) so
// callers can match them with errors.Is and show common.Message(err).
package client
