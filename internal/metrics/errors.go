package metrics

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuery is returned before any network call for a blank expression.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrTimeout marks an attempt that exceeded the per-request timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrMalformedResponse means the body was not a valid response envelope.
	ErrMalformedResponse = errors.New("malformed response envelope")
)

// BackendError is an error reported by the backend in the response envelope.
type BackendError struct {
	ErrorType string
	Message   string
}

// Error implements error.
func (e *BackendError) Error() string {
	return fmt.Sprintf("Prometheus API error: %s", e.Message)
}

// HTTPStatusError is a non-2xx response without a usable envelope.
type HTTPStatusError struct {
	StatusCode int
	Status     string
}

// Error implements error.
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Status)
}

// Retryable reports whether the status is worth another attempt.
func (e *HTTPStatusError) Retryable() bool {
	return e.StatusCode >= 500
}

// NetworkError is returned when every attempt failed with a transient error.
// It wraps the last cause.
type NetworkError struct {
	Attempts int
	Err      error
}

// Error implements error.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last cause.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the last attempt timed out.
func (e *NetworkError) Timeout() bool {
	return errors.Is(e.Err, ErrTimeout)
}
