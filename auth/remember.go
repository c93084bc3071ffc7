package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	// selectorBytes is the entropy of the public selector half.
	selectorBytes = 12
	// validatorBytes is the entropy of the secret validator half.
	validatorBytes = 20

	activateTokenBytes = 16
	resetTokenBytes    = 16
)

// RememberToken is one persisted remember-me credential.  A user has one
// row per remembered device; the selector is unique across all rows.
type RememberToken struct {
	ID     int64
	UserID int64

	// Selector is the public lookup key carried in the cookie.
	Selector string

	// ValidatorHash is sha256(validator) in hex.  The plain validator is
	// only ever present in the client's cookie.
	ValidatorHash string

	ExpiresAt time.Time
}

// IsExpired reports whether the token has passed its expiry time.
func (t *RememberToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// HashValidator returns the SHA-256 hex digest of a validator secret.
// This is the only form in which validators are stored server-side.
// Validators are high-entropy random values, so a fast digest (rather
// than the slow password hash) is sufficient here.
func HashValidator(validator string) string {
	sum := sha256.Sum256([]byte(validator))
	return hex.EncodeToString(sum[:])
}

// generateRememberPair returns a fresh hex selector and validator.
func generateRememberPair() (selector, validator string, err error) {
	if selector, err = randomHex(selectorBytes); err != nil {
		return "", "", err
	}
	if validator, err = randomHex(validatorBytes); err != nil {
		return "", "", err
	}
	return selector, validator, nil
}

// rememberCookieValue formats the cookie payload.
func rememberCookieValue(selector, validator string) string {
	return selector + ":" + validator
}

// splitRememberCookie parses a "selector:validator" cookie value.
// Returns ok=false for anything malformed.
func splitRememberCookie(value string) (selector, validator string, ok bool) {
	selector, validator, ok = strings.Cut(value, ":")
	if !ok || selector == "" || validator == "" {
		return "", "", false
	}
	return selector, validator, true
}

// randomHex returns n cryptographically random bytes hex-encoded.
func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("auth: failed to generate random token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
