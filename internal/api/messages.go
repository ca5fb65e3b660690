// Package api declares the AuthKeeper wire contract shared by server and
// client: request/response messages, the gRPC service descriptor and a JSON
// codec the service is spoken over.
package api

import "time"

// Profile is the sanitized user representation returned to callers.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  *string   `json:"username,omitempty"`
	Name      *string   `json:"name,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type SignupRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Username *string `json:"username,omitempty"`
	Name     *string `json:"name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse answers signup and login.
type AuthResponse struct {
	User         *Profile `json:"user"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type TokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

type LogoutResponse struct {
	Message string `json:"message"`
}

type GetProfileRequest struct{}

type UpdateProfileRequest struct {
	Username *string `json:"username,omitempty"`
	Name     *string `json:"name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

type ProfileResponse struct {
	User *Profile `json:"user"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the HTTP failure body.
type ErrorResponse struct {
	Error string `json:"error"`
}
