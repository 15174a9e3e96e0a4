package oauth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"vitals/internal/vault"
	"vitals/pkg/logging"

	"golang.org/x/oauth2"
)

// Config configures a sign-in Flow.
type Config struct {
	AuthorizeURL string
	TokenURL     string
	Scopes       []string

	CallbackHost string
	CallbackPort int

	// Timeout is the flow deadline measured from listener start.
	Timeout time.Duration

	// HTTPClient is used for the token exchange. Nil uses a client with
	// DefaultHTTPTimeout.
	HTTPClient *http.Client

	// OpenBrowser opens the authorization URL. Nil uses the system browser.
	OpenBrowser func(url string) error

	// OnAuthURL, if set, receives the authorization URL before the browser
	// is opened, so the caller can print it as a fallback.
	OnAuthURL func(url string)

	// NewExchanger overrides the code exchanger. Nil uses CodeExchanger.
	NewExchanger func(cred vault.Credential) Exchanger
}

// Flow runs the browser-based authorization code flow. At most one Run is
// active at a time.
type Flow struct {
	cfg  Config
	busy sync.Mutex
}

// MaxFlowTimeout is the ceiling for one authorization attempt.
const MaxFlowTimeout = 5 * time.Minute

// NewFlow creates a Flow. A Timeout outside (0, MaxFlowTimeout] is replaced
// by MaxFlowTimeout.
func NewFlow(cfg Config) *Flow {
	if cfg.OpenBrowser == nil {
		cfg.OpenBrowser = OpenBrowser
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if cfg.Timeout <= 0 || cfg.Timeout > MaxFlowTimeout {
		cfg.Timeout = MaxFlowTimeout
	}
	return &Flow{cfg: cfg}
}

// AuthCodeURL builds the authorization URL for cred and state.
func (f *Flow) AuthCodeURL(cred vault.Credential, state RedactedToken) string {
	conf := oauth2.Config{
		ClientID: cred.ClientID,
		Scopes:   f.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  f.cfg.AuthorizeURL,
			TokenURL: f.cfg.TokenURL,
		},
	}
	// redirect_uri is left to the provider's registered callback URL.
	return conf.AuthCodeURL(state.Value(), oauth2.SetAuthURLParam("allow_signup", "true"))
}

// Run performs one sign-in attempt and returns the access token. Every
// error matches ErrSignInIncomplete together with its specific cause.
func (f *Flow) Run(ctx context.Context, cred vault.Credential) (*oauth2.Token, error) {
	if !f.busy.TryLock() {
		return nil, incomplete(ErrFlowInProgress)
	}
	defer f.busy.Unlock()

	if cred.ClientID == "" || cred.ClientSecret == "" {
		return nil, incomplete(ErrMissingCredential)
	}

	state, err := GenerateState()
	if err != nil {
		return nil, incomplete(err)
	}

	var exchanger Exchanger
	if f.cfg.NewExchanger != nil {
		exchanger = f.cfg.NewExchanger(cred)
	} else {
		exchanger = NewCodeExchanger(f.cfg.TokenURL, cred, f.cfg.HTTPClient)
	}

	server := NewCallbackServer(f.cfg.CallbackHost, f.cfg.CallbackPort, state, exchanger, f.cfg.Timeout)
	if _, err := server.Start(ctx); err != nil {
		return nil, incomplete(err)
	}
	defer server.Stop()

	authURL := f.AuthCodeURL(cred, state)
	if f.cfg.OnAuthURL != nil {
		f.cfg.OnAuthURL(authURL)
	}
	if err := f.cfg.OpenBrowser(authURL); err != nil {
		logging.Warn("OAuth", "Failed to open browser: %v", err)
	}

	logging.Info("OAuth", "Waiting for authorization callback on %s", server.RedirectURI())
	token, err := server.Wait(ctx)
	if err != nil {
		return nil, incomplete(err)
	}

	logging.Audit(logging.AuditEvent{
		Action:  "oauth_sign_in",
		Outcome: "success",
		Details: "authorization code exchanged",
	})
	return token, nil
}
