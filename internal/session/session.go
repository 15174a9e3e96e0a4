package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"vitals/internal/oauth"
	"vitals/internal/vault"
	"vitals/pkg/logging"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Storage keys.
const (
	AccessTokenKey   = "vitals.github.accessToken"
	UserProfileKey   = "vitals.github.user"
	AuthCompletedKey = "vitals.authWall.completed"
)

// EventUserSignedIn is logged to the event sink after a successful sign-in.
const EventUserSignedIn = "user_signed_in"

// SignInFlow runs one interactive authorization attempt.
type SignInFlow interface {
	Run(ctx context.Context, cred vault.Credential) (*oauth2.Token, error)
}

// CredentialSource supplies the OAuth client credential.
type CredentialSource interface {
	Get(ctx context.Context) (vault.Credential, bool, error)
}

// EventSink receives sign-in notifications. Implementations are
// fire-and-forget and never report failure to the session.
type EventSink interface {
	SyncUser(ctx context.Context, githubID, username, email string)
	LogEvent(ctx context.Context, subjectID, eventName string, properties map[string]any)
}

// Status is a silent snapshot of the session.
type Status struct {
	SignedIn      bool         `json:"signedIn"`
	AuthCompleted bool         `json:"authCompleted"`
	User          *UserProfile `json:"user,omitempty"`
}

// Options configures a Session.
type Options struct {
	// Secrets holds the access token.
	Secrets vault.Store
	// State holds the cached profile and the completion flag.
	State vault.Store

	Credentials CredentialSource
	Flow        SignInFlow
	Profiles    ProfileFetcher
	// Events is optional.
	Events EventSink

	// Now defaults to time.Now.
	Now func() time.Time
}

// Session owns the access token, the profile cache and the completion flag.
type Session struct {
	secrets     vault.Store
	state       vault.Store
	credentials CredentialSource
	flow        SignInFlow
	profiles    ProfileFetcher
	events      EventSink
	now         func() time.Time

	fetches singleflight.Group

	mu        sync.Mutex
	user      *UserProfile
	createdAt time.Time
}

// New creates a Session.
func New(opts Options) *Session {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		secrets:     opts.Secrets,
		state:       opts.State,
		credentials: opts.Credentials,
		flow:        opts.Flow,
		profiles:    opts.Profiles,
		events:      opts.Events,
		now:         now,
	}
}

// IsSignedIn reports whether an access token is stored. It makes no network
// call and does not prove the token is still valid.
func (s *Session) IsSignedIn(ctx context.Context) (bool, error) {
	_, ok, err := s.AccessToken(ctx)
	return ok, err
}

// AccessToken returns the stored access token.
func (s *Session) AccessToken(ctx context.Context) (string, bool, error) {
	token, ok, err := s.secrets.Get(ctx, AccessTokenKey)
	if err != nil {
		return "", false, fmt.Errorf("failed to read access token: %w", err)
	}
	return token, ok && token != "", nil
}

// CurrentUser returns the cached profile, then the persisted one, and only
// then fetches with the stored token. A failed fetch clears the cache and
// returns ErrProfileUnavailable.
func (s *Session) CurrentUser(ctx context.Context) (*UserProfile, error) {
	signedIn, err := s.IsSignedIn(ctx)
	if err != nil {
		return nil, err
	}
	if !signedIn {
		s.Invalidate()
		return nil, ErrNotSignedIn
	}

	s.mu.Lock()
	cached := s.user
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	if persisted, err := s.loadProfile(ctx); err != nil {
		logging.Warn("Session", "Ignoring unreadable cached profile: %v", err)
	} else if persisted != nil {
		s.cache(persisted)
		return persisted, nil
	}

	return s.ValidateToken(ctx)
}

// ValidateToken fetches the profile with the stored token, bypassing the
// cache. On success the profile is cached and persisted. Concurrent callers
// share one fetch.
func (s *Session) ValidateToken(ctx context.Context) (*UserProfile, error) {
	token, ok, err := s.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.Invalidate()
		return nil, ErrNotSignedIn
	}

	v, err, _ := s.fetches.Do(AccessTokenKey, func() (interface{}, error) {
		return s.profiles.FetchProfile(ctx, token)
	})
	if err != nil {
		s.Invalidate()
		if derr := s.state.Delete(ctx, UserProfileKey); derr != nil {
			logging.Warn("Session", "Failed to drop persisted profile: %v", derr)
		}
		logging.Debug("Session", "Profile fetch failed: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrProfileUnavailable, err)
	}

	profile := v.(*UserProfile)
	s.cache(profile)
	if err := s.saveProfile(ctx, profile); err != nil {
		logging.Warn("Session", "Failed to persist profile: %v", err)
	}
	return profile, nil
}

// SignIn runs the authorization flow, stores the token, confirms it with a
// profile fetch and only then sets the completion flag. A token whose
// profile cannot be fetched is removed again. Every error matches
// oauth.ErrSignInIncomplete.
func (s *Session) SignIn(ctx context.Context) (*UserProfile, error) {
	cred, found, err := s.credentials.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", oauth.ErrSignInIncomplete, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %w", oauth.ErrSignInIncomplete, oauth.ErrMissingCredential)
	}

	token, err := s.flow.Run(ctx, cred)
	if err != nil {
		return nil, err
	}

	if err := s.secrets.Set(ctx, AccessTokenKey, token.AccessToken); err != nil {
		return nil, fmt.Errorf("%w: failed to store access token: %w", oauth.ErrSignInIncomplete, err)
	}
	s.Invalidate()

	profile, err := s.ValidateToken(ctx)
	if err != nil {
		if delErr := s.secrets.Delete(ctx, AccessTokenKey); delErr != nil {
			logging.Error("Session", delErr, "Failed to remove unverified access token")
		}
		return nil, fmt.Errorf("%w: %w", oauth.ErrSignInIncomplete, err)
	}

	if err := s.MarkAuthCompleted(ctx); err != nil {
		logging.Warn("Session", "Failed to record completed sign-in: %v", err)
	}

	s.mu.Lock()
	s.createdAt = s.now()
	s.mu.Unlock()

	logging.Audit(logging.AuditEvent{
		Action:  "sign_in",
		Outcome: "success",
		Subject: profile.Login,
	})
	s.notifySignedIn(ctx, profile)
	return profile, nil
}

func (s *Session) notifySignedIn(ctx context.Context, profile *UserProfile) {
	if s.events == nil {
		return
	}
	githubID := strconv.FormatInt(profile.ID, 10)
	s.events.SyncUser(ctx, githubID, profile.Login, profile.Email)
	s.events.LogEvent(ctx, githubID, EventUserSignedIn, map[string]any{
		"login": profile.Login,
	})
}

// SignOut deletes the token and the cached profile and clears the
// completion flag. Signing out twice is not an error.
func (s *Session) SignOut(ctx context.Context) error {
	s.Invalidate()
	s.mu.Lock()
	s.createdAt = time.Time{}
	s.mu.Unlock()

	err := errors.Join(
		s.secrets.Delete(ctx, AccessTokenKey),
		s.state.Delete(ctx, UserProfileKey),
		s.state.Delete(ctx, AuthCompletedKey),
	)
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	logging.Audit(logging.AuditEvent{Action: "sign_out", Outcome: "success"})
	return nil
}

// Reset clears the completion flag and signs out, so the next protected
// action starts from the welcome prompt.
func (s *Session) Reset(ctx context.Context) error {
	return s.SignOut(ctx)
}

// AuthCompleted reports whether the user has passed the gate before.
func (s *Session) AuthCompleted(ctx context.Context) (bool, error) {
	v, ok, err := s.state.Get(ctx, AuthCompletedKey)
	if err != nil {
		return false, fmt.Errorf("failed to read completion flag: %w", err)
	}
	if !ok {
		return false, nil
	}
	done, err := strconv.ParseBool(v)
	if err != nil {
		return false, nil
	}
	return done, nil
}

// MarkAuthCompleted sets the completion flag. Callers must have confirmed
// the token with a profile fetch first.
func (s *Session) MarkAuthCompleted(ctx context.Context) error {
	return s.state.Set(ctx, AuthCompletedKey, strconv.FormatBool(true))
}

// CheckStatus reports the session state without prompting. The user is
// taken from the cache when possible.
func (s *Session) CheckStatus(ctx context.Context) (Status, error) {
	var st Status
	var err error

	if st.SignedIn, err = s.IsSignedIn(ctx); err != nil {
		return st, err
	}
	if st.AuthCompleted, err = s.AuthCompleted(ctx); err != nil {
		return st, err
	}
	if st.SignedIn {
		if user, err := s.CurrentUser(ctx); err == nil {
			st.User = user
		}
	}
	return st, nil
}

// CreatedAt returns when the current process signed in, or zero.
func (s *Session) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createdAt
}

// Invalidate drops the in-memory profile cache.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
}

func (s *Session) cache(profile *UserProfile) {
	s.mu.Lock()
	s.user = profile
	s.mu.Unlock()
}

func (s *Session) loadProfile(ctx context.Context) (*UserProfile, error) {
	raw, ok, err := s.state.Get(ctx, UserProfileKey)
	if err != nil || !ok {
		return nil, err
	}
	var profile UserProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, err
	}
	if profile.Login == "" {
		return nil, nil
	}
	return &profile, nil
}

func (s *Session) saveProfile(ctx context.Context, profile *UserProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return s.state.Set(ctx, UserProfileKey, string(raw))
}
