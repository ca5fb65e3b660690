package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// Use it to drop passwords from memory after use. Nil is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Fingerprint returns a short, non-reversible tag for a secret such as a
// token string, suitable for log correlation.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:4])
}
