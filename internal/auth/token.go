package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

// TokenSource is where the admin token lives when not set in the environment.
type TokenSource interface {
	Token() (string, error)
}

// Resolve picks the admin token: the environment value wins, then the store.
// An empty result with a nil error means admin endpoints are disabled.
func Resolve(envToken string, src TokenSource) (string, error) {
	if envToken != "" {
		return envToken, nil
	}
	if src == nil {
		return "", nil
	}
	tok, err := src.Token()
	if errors.Is(err, ErrNoToken) {
		return "", nil
	}
	return tok, err
}

// GenerateToken returns 32 random bytes hex encoded.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Matches compares a presented token with the expected one in constant time.
// An empty expected token never matches.
func Matches(expected, presented string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}
