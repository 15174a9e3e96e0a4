package oauth

import (
	"errors"
	"fmt"
)

// ErrSignInIncomplete matches every error returned by Flow.Run.
var ErrSignInIncomplete = errors.New("sign-in did not complete")

var (
	// ErrListenerUnavailable means the loopback callback address could not be bound.
	ErrListenerUnavailable = errors.New("callback listener unavailable")

	// ErrFlowInProgress is returned when a flow is started while another is running.
	ErrFlowInProgress = errors.New("an authorization flow is already in progress")

	// ErrStateMismatch is a CSRF violation: the callback state did not match.
	ErrStateMismatch = errors.New("invalid state parameter")

	// ErrNoCode means the callback carried neither an error nor a code.
	ErrNoCode = errors.New("no authorization code received")

	// ErrFlowTimeout means no callback arrived before the flow deadline.
	ErrFlowTimeout = errors.New("authorization timed out")

	// ErrFlowCancelled means the caller cancelled the flow before a callback arrived.
	ErrFlowCancelled = errors.New("authorization cancelled")

	// ErrMissingCredential means no OAuth client credential is configured.
	ErrMissingCredential = errors.New("OAuth client credential not configured")
)

// ProviderError is an error reported by the identity provider on the callback.
type ProviderError struct {
	Code        string
	Description string
}

// Error implements error.
func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization failed: %s - %s", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization failed: %s", e.Code)
}

// TokenExchangeError reports a failed authorization code exchange.
type TokenExchangeError struct {
	// StatusCode is the HTTP status of the token endpoint response, 0 if no response.
	StatusCode int
	// Reason is the provider's error code or a local description.
	Reason string
	// Err is the underlying transport error, if any.
	Err error
}

// Error implements error.
func (e *TokenExchangeError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("token exchange failed: %v", e.Err)
	case e.StatusCode != 0 && e.Reason != "":
		return fmt.Sprintf("token exchange failed with status %d: %s", e.StatusCode, e.Reason)
	case e.StatusCode != 0:
		return fmt.Sprintf("token exchange failed with status %d", e.StatusCode)
	default:
		return fmt.Sprintf("token exchange failed: %s", e.Reason)
	}
}

// Unwrap returns the underlying transport error.
func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}

// incomplete wraps cause so that it matches both ErrSignInIncomplete and cause.
func incomplete(cause error) error {
	return fmt.Errorf("%w: %w", ErrSignInIncomplete, cause)
}
