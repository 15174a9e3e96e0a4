// Package oauth runs the authorization code leg of an OAuth sign-in entirely on
// the local machine.
//
// A Flow generates a single-use CSRF state, binds a CallbackServer on a fixed
// loopback address, opens the provider's authorize URL in the system browser
// and waits for the provider to redirect back to /callback. The callback is
// validated against the bound state before any token exchange is attempted;
// the code is then exchanged for an access token with a direct POST to the
// provider's token endpoint.
//
// # Lifecycle
//
// A CallbackServer is an explicit state machine:
//
//	Idle -> AwaitingCallback -> Handling -> Resolved
//	                 \___________________/
//	                   timeout / cancel
//
// The timeout and the callback compete for the transition out of
// AwaitingCallback; only the first one wins. Whatever wins, the listener is
// closed before Wait returns, so the port can be bound again immediately.
//
// Only one Flow may be running at a time; a second Run returns
// ErrFlowInProgress instead of racing for the port.
//
// # Errors
//
// Every failure is reported as an error that matches ErrSignInIncomplete, with
// a more specific cause alongside it (ErrStateMismatch, ErrFlowTimeout,
// *ProviderError, *TokenExchangeError, ...). No error path returns a token.
package oauth
