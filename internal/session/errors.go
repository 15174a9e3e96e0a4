package session

import "errors"

var (
	// ErrNotSignedIn means no access token is stored.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrProfileUnavailable means the profile could not be fetched with the
	// stored token. Callers treat the session as dead.
	ErrProfileUnavailable = errors.New("user profile unavailable")
)
