// Package models holds the server-side persistent entities.
package models

import "time"

// User is an identity record. PasswordDigest never leaves the server; use
// Profile to build the outward projection.
type User struct {
	ID             string
	Email          string
	Username       *string
	Name           *string
	Phone          *string
	PasswordDigest string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Profile is the sanitized projection of a User.
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

// Profile returns the sanitized copy of u. Pointer fields are cloned so the
// result does not alias the record.
func (u *User) Profile() *Profile {
	if u == nil {
		return nil
	}
	return &Profile{
		ID:        u.ID,
		Email:     u.Email,
		Username:  cloneString(u.Username),
		Name:      cloneString(u.Name),
		Phone:     cloneString(u.Phone),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// ProfileUpdate is a partial profile change. Nil fields are left untouched.
type ProfileUpdate struct {
	Username *string `json:"username,omitempty"`
	Name     *string `json:"name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Username == nil && p.Name == nil && p.Phone == nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
