// Package session owns the signed-in state: the access token kept in the
// secret store, the cached profile of the signed-in user and the flag that
// records whether the user ever passed the sign-in gate.
//
// A Session is an explicit object; nothing is cached in package state.
// The profile cache moves Empty -> Fetching -> Cached and drops back to
// Empty on SignOut, Invalidate or any failed profile fetch.
package session
