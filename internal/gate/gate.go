// Package gate decides whether a protected operation may run. It validates
// the stored session and, when that fails, walks the user through an
// interactive sign-in driven by a Prompter.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"vitals/internal/session"
	"vitals/internal/vault"
	"vitals/pkg/logging"
)

// WelcomeChoice is the answer to the sign-in prompt.
type WelcomeChoice int

const (
	ChoiceDecline WelcomeChoice = iota
	ChoiceSignIn
	ChoiceLearnMore
)

// FailureChoice is the answer to the prompt shown after a failed sign-in.
type FailureChoice int

const (
	FailureAbort FailureChoice = iota
	FailureRetry
	FailureConfigure
)

// Messages shown through Prompter.Notify.
const (
	DeclinedMessage = "Vitals requires GitHub authentication to continue. You can sign in anytime with: vitals auth login"
	SignedInMessage = "Successfully signed in as %s! You can now use Vitals."
)

// Prompter asks the user for decisions. Every prompt blocks until the user
// answers or ctx is done.
type Prompter interface {
	Welcome(ctx context.Context) (WelcomeChoice, error)
	SignInFailed(ctx context.Context, cause error) (FailureChoice, error)
	// ConfigureCredentials asks for a client credential. ok is false when
	// the user cancelled.
	ConfigureCredentials(ctx context.Context) (cred vault.Credential, ok bool, err error)
	OpenLearnMore(url string) error
	Notify(message string)
}

// Session is the part of session.Session the gate relies on.
type Session interface {
	IsSignedIn(ctx context.Context) (bool, error)
	ValidateToken(ctx context.Context) (*session.UserProfile, error)
	SignIn(ctx context.Context) (*session.UserProfile, error)
	SignOut(ctx context.Context) error
	AuthCompleted(ctx context.Context) (bool, error)
	MarkAuthCompleted(ctx context.Context) error
}

// CredentialStore persists a credential entered at the gate.
type CredentialStore interface {
	Store(ctx context.Context, cred vault.Credential) error
}

// Gate enforces sign-in before protected operations.
type Gate struct {
	session      Session
	credentials  CredentialStore
	prompter     Prompter
	learnMoreURL string

	mu sync.Mutex
}

// New creates a Gate.
func New(s Session, credentials CredentialStore, prompter Prompter, learnMoreURL string) *Gate {
	return &Gate{
		session:      s,
		credentials:  credentials,
		prompter:     prompter,
		learnMoreURL: learnMoreURL,
	}
}

// IsAuthenticated reports whether a token is stored and a fresh profile fetch
// succeeds with it. A token that fails the fetch is cleaned up silently.
func (g *Gate) IsAuthenticated(ctx context.Context) (bool, error) {
	signedIn, err := g.session.IsSignedIn(ctx)
	if err != nil {
		return false, err
	}
	if !signedIn {
		return false, nil
	}

	if _, err := g.session.ValidateToken(ctx); err != nil {
		if !errors.Is(err, session.ErrProfileUnavailable) && !errors.Is(err, session.ErrNotSignedIn) {
			return false, err
		}
		logging.Info("Gate", "Stored session is no longer valid, signing out")
		if err := g.session.SignOut(ctx); err != nil {
			return false, fmt.Errorf("failed to clean up dead session: %w", err)
		}
		return false, nil
	}
	return true, nil
}

// Enforce returns true when the caller may run a protected operation. When
// the session is not valid the user is prompted. Declining or aborting
// returns false with a nil error.
func (g *Gate) Enforce(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		ok, err := g.IsAuthenticated(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			g.healCompletionFlag(ctx)
			return true, nil
		}

		choice, err := g.prompter.Welcome(ctx)
		if err != nil {
			return false, err
		}

		switch choice {
		case ChoiceLearnMore:
			if err := g.prompter.OpenLearnMore(g.learnMoreURL); err != nil {
				logging.Warn("Gate", "Failed to open %s: %v", g.learnMoreURL, err)
			}
			continue
		case ChoiceSignIn:
			return g.signIn(ctx)
		default:
			g.prompter.Notify(DeclinedMessage)
			logging.Audit(logging.AuditEvent{Action: "gate", Outcome: "declined"})
			return false, nil
		}
	}
}

// signIn runs sign-in attempts until one succeeds or the user gives up.
// Each retry needs an explicit user choice.
func (g *Gate) signIn(ctx context.Context) (bool, error) {
	for {
		user, err := g.session.SignIn(ctx)
		if err == nil {
			g.prompter.Notify(fmt.Sprintf(SignedInMessage, user.DisplayName()))
			return true, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		logging.Warn("Gate", "Sign-in failed: %v", err)

		again, err := g.afterFailure(ctx, err)
		if err != nil || !again {
			return false, err
		}
	}
}

// afterFailure shows the failure menu until the user asks for another attempt
// or gives up. A cancelled or rejected credential prompt shows the menu
// again rather than starting a new flow.
func (g *Gate) afterFailure(ctx context.Context, cause error) (bool, error) {
	for {
		choice, err := g.prompter.SignInFailed(ctx, cause)
		if err != nil {
			return false, err
		}

		switch choice {
		case FailureRetry:
			return true, nil
		case FailureConfigure:
			saved, err := g.configure(ctx)
			if err != nil {
				return false, err
			}
			if saved {
				return true, nil
			}
		default:
			logging.Audit(logging.AuditEvent{Action: "gate", Outcome: "aborted"})
			return false, nil
		}
	}
}

// configure reports whether a credential was saved.
func (g *Gate) configure(ctx context.Context) (bool, error) {
	cred, ok, err := g.prompter.ConfigureCredentials(ctx)
	if err != nil || !ok {
		return false, err
	}
	if err := g.credentials.Store(ctx, cred); err != nil {
		if errors.Is(err, vault.ErrInvalidCredential) {
			g.prompter.Notify(err.Error())
			return false, nil
		}
		return false, err
	}
	g.prompter.Notify("GitHub OAuth credentials saved.")
	return true, nil
}

// healCompletionFlag sets the flag for sessions created before it existed.
func (g *Gate) healCompletionFlag(ctx context.Context) {
	done, err := g.session.AuthCompleted(ctx)
	if err != nil {
		logging.Warn("Gate", "Failed to read completion flag: %v", err)
		return
	}
	if done {
		return
	}
	if err := g.session.MarkAuthCompleted(ctx); err != nil {
		logging.Warn("Gate", "Failed to set completion flag: %v", err)
	}
}
