// Package validate checks transport requests before they reach the user
// service. Every failure is a common.Validation error whose message is shown
// to the caller as is.
package validate

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/authkeeper/internal/api"
	"github.com/dmitrijs2005/authkeeper/internal/common"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	MaxPasswordBytes = 72
	MaxNameLength    = 100
	MaxEmailLength   = 254
)

var (
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)
	phoneRe    = regexp.MustCompile(`^\+?[1-9]\d{7,14}$`)
)

func Email(email string) error {
	if strings.TrimSpace(email) == "" {
		return common.Validation("Email is required")
	}
	if len(email) > MaxEmailLength || !emailRe.MatchString(email) {
		return common.Validation("Invalid email format")
	}
	return nil
}

// Password enforces the signup complexity policy.
func Password(password string) error {
	if password == "" {
		return common.Validation("Password is required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return common.Validation("Password must be at least 8 characters long")
	}
	if len(password) > MaxPasswordBytes {
		return common.Validation("Password must be at most 72 bytes long")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return common.Validation("Password must contain uppercase, lowercase, number and special character")
	}
	return nil
}

func Username(username string) error {
	if !usernameRe.MatchString(username) {
		return common.Validation("Username must be 3-30 characters of letters, numbers and underscores")
	}
	return nil
}

func Name(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n == 0 || utf8.RuneCountInString(name) > MaxNameLength {
		return common.Validation("Name must be between 1 and 100 characters")
	}
	return nil
}

func Phone(phone string) error {
	if !phoneRe.MatchString(phone) {
		return common.Validation("Invalid phone number format")
	}
	return nil
}

func optional(v *string, check func(string) error) error {
	if v == nil {
		return nil
	}
	return check(*v)
}

func Signup(req *api.SignupRequest) error {
	if req == nil {
		return common.Validation("Request body is required")
	}
	if err := Email(req.Email); err != nil {
		return err
	}
	if err := Password(req.Password); err != nil {
		return err
	}
	return profileFields(req.Username, req.Name, req.Phone)
}

// Login only checks presence; the password policy applies at signup.
func Login(req *api.LoginRequest) error {
	if req == nil {
		return common.Validation("Request body is required")
	}
	if err := Email(req.Email); err != nil {
		return err
	}
	if req.Password == "" {
		return common.Validation("Password is required")
	}
	return nil
}

func Refresh(req *api.RefreshTokenRequest) error {
	if req == nil || strings.TrimSpace(req.RefreshToken) == "" {
		return common.Validation("Refresh token is required")
	}
	return nil
}

func UpdateProfile(req *api.UpdateProfileRequest) error {
	if req == nil {
		return common.Validation("Request body is required")
	}
	if req.Username == nil && req.Name == nil && req.Phone == nil {
		return common.Validation("At least one field must be provided")
	}
	return profileFields(req.Username, req.Name, req.Phone)
}

func profileFields(username, name, phone *string) error {
	if err := optional(username, Username); err != nil {
		return err
	}
	if err := optional(name, Name); err != nil {
		return err
	}
	return optional(phone, Phone)
}
