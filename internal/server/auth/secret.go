package auth

import (
	"errors"
	"fmt"
)

// MinSecretLength is the shortest signing secret accepted outside development.
const MinSecretLength = 32

var knownWeakSecrets = []string{
	"secret",
	"secretKey",
	"changeme",
	"your-secret-key",
	"dev-access-secret-change-me-in-production",
	"dev-refresh-secret-change-me-in-production",
}

// ErrWeakSecret is returned for empty, default, or short signing secrets.
var ErrWeakSecret = errors.New("weak signing secret")

// ValidateSecret rejects empty secrets always, and known defaults or short
// secrets unless dev is set.
func ValidateSecret(name, secret string, dev bool) error {
	if secret == "" {
		return fmt.Errorf("%w: %s is required", ErrWeakSecret, name)
	}
	if dev {
		return nil
	}
	for _, weak := range knownWeakSecrets {
		if secret == weak {
			return fmt.Errorf("%w: %s uses a default value", ErrWeakSecret, name)
		}
	}
	if len(secret) < MinSecretLength {
		return fmt.Errorf("%w: %s must be at least %d characters (got %d)", ErrWeakSecret, name, MinSecretLength, len(secret))
	}
	return nil
}
