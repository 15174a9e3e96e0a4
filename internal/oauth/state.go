package oauth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// stateBytes is the number of random bytes in a CSRF state (256 bits).
const stateBytes = 32

// RedactedToken wraps a sensitive value (CSRF state, authorization code,
// access token) so that it prints as [REDACTED] in logs and errors.
type RedactedToken struct {
	value string
}

// NewRedactedToken wraps value.
func NewRedactedToken(value string) RedactedToken {
	return RedactedToken{value: value}
}

// Value returns the wrapped value. Never log the result.
func (t RedactedToken) Value() string {
	return t.value
}

// String implements fmt.Stringer.
func (t RedactedToken) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer.
func (t RedactedToken) GoString() string {
	return "oauth.RedactedToken{[REDACTED]}"
}

// IsEmpty reports whether the wrapped value is empty.
func (t RedactedToken) IsEmpty() bool {
	return t.value == ""
}

// MarshalJSON keeps the value out of serialized output.
func (t RedactedToken) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// GenerateState returns a fresh base64url-encoded random CSRF state.
func GenerateState() (RedactedToken, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return RedactedToken{}, fmt.Errorf("failed to generate state: %w", err)
	}
	return NewRedactedToken(base64.RawURLEncoding.EncodeToString(b)), nil
}

// Matches compares the state against a received value in constant time.
// An empty state never matches.
func (t RedactedToken) Matches(received string) bool {
	if t.value == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(t.value), []byte(received)) == 1
}
