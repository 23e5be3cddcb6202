// Package password wraps bcrypt behind a minimal hash/verify contract.
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrEmptySecret = errors.New("secret must not be empty")

// Hash returns a salted bcrypt hash of the secret. Each call produces a
// different hash for the same input.
func Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether secret matches the stored hash. A malformed hash
// counts as a mismatch rather than an error.
func Verify(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
