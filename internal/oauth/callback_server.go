package oauth

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"vitals/pkg/logging"

	"golang.org/x/oauth2"
)

// CallbackPath is the only path served by the callback listener.
const CallbackPath = "/callback"

// shutdownGrace bounds how long Wait waits for an in-flight response to finish.
const shutdownGrace = 5 * time.Second

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

var (
	successTemplate = template.Must(template.New("success").Parse(callbackSuccessHTML))
	errorTemplate   = template.Must(template.New("error").Parse(callbackErrorHTML))
)

// Phase is the lifecycle position of a CallbackServer.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseAwaitingCallback
	PhaseHandling
	PhaseResolved
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingCallback:
		return "awaiting_callback"
	case PhaseHandling:
		return "handling"
	case PhaseResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// CallbackServer is a one-shot loopback HTTP listener bound to one CSRF state.
type CallbackServer struct {
	host      string
	port      int
	state     RedactedToken
	exchanger Exchanger
	timeout   time.Duration

	mu       sync.Mutex
	phase    Phase
	listener net.Listener
	server   *http.Server
	timer    *time.Timer
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	token    *oauth2.Token
	err      error
	stopOnce sync.Once
}

// NewCallbackServer creates a server for one authorization attempt. Port 0
// binds an ephemeral port.
func NewCallbackServer(host string, port int, state RedactedToken, exchanger Exchanger, timeout time.Duration) *CallbackServer {
	return &CallbackServer{
		host:      host,
		port:      port,
		state:     state,
		exchanger: exchanger,
		timeout:   timeout,
		done:      make(chan struct{}),
	}
}

// Start binds the listener and starts serving. It returns the redirect URI.
// The flow deadline starts now. A bind failure wraps ErrListenerUnavailable.
func (s *CallbackServer) Start(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseIdle {
		return "", fmt.Errorf("callback server already started (phase %s)", s.phase)
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("%w on %s: %w", ErrListenerUnavailable, addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.ctx, s.cancel = context.WithCancel(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, s.handleCallback)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.phase = PhaseAwaitingCallback

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.resolveFrom(PhaseAwaitingCallback, nil, fmt.Errorf("%w: %w", ErrListenerUnavailable, err))
		}
	}()

	s.timer = time.AfterFunc(s.timeout, func() {
		if s.resolveFrom(PhaseAwaitingCallback, nil, ErrFlowTimeout) {
			logging.Warn("OAuth", "No callback received within %s", s.timeout)
		}
	})

	go func() {
		select {
		case <-s.ctx.Done():
			s.resolveFrom(PhaseAwaitingCallback, nil, ErrFlowCancelled)
		case <-s.done:
		}
	}()

	logging.Debug("OAuth", "Callback server listening on %s", listener.Addr())
	return s.RedirectURI(), nil
}

// Wait blocks until the server resolves, then shuts the listener down before
// returning. Cancelling ctx cancels the attempt.
func (s *CallbackServer) Wait(ctx context.Context) (*oauth2.Token, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		s.Cancel()
		<-s.done
	}
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.err
}

// Cancel resolves a server still awaiting its callback with ErrFlowCancelled
// and aborts an in-flight token exchange.
func (s *CallbackServer) Cancel() {
	s.resolveFrom(PhaseAwaitingCallback, nil, ErrFlowCancelled)
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Stop closes the listener and waits briefly for an in-flight response.
// It is safe to call more than once.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		server, timer, cancel := s.server, s.timer, s.cancel
		s.mu.Unlock()

		if timer != nil {
			timer.Stop()
		}
		if server != nil {
			ctx, done := context.WithTimeout(context.Background(), shutdownGrace)
			defer done()
			if err := server.Shutdown(ctx); err != nil {
				_ = server.Close()
			}
		}
		if cancel != nil {
			cancel()
		}
	})
}

// Phase returns the current lifecycle phase.
func (s *CallbackServer) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Port returns the bound port (after Start).
func (s *CallbackServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// RedirectURI returns the callback URL served by this server.
func (s *CallbackServer) RedirectURI() string {
	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(s.host, strconv.Itoa(s.port)),
		Path:   CallbackPath,
	}
	return u.String()
}

// resolveFrom moves the server from phase `from` to PhaseResolved, recording
// the outcome. It reports whether this call won the transition.
func (s *CallbackServer) resolveFrom(from Phase, token *oauth2.Token, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != from {
		return false
	}
	s.phase = PhaseResolved
	s.token = token
	s.err = err
	close(s.done)
	return true
}

// claim moves AwaitingCallback to Handling. Only one request can win.
func (s *CallbackServer) claim() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseAwaitingCallback {
		return false
	}
	s.phase = PhaseHandling
	if s.timer != nil {
		s.timer.Stop()
	}
	return true
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	setSecurityHeaders(w)

	if !s.claim() {
		writeErrorPage(w, http.StatusGone, "This sign-in request has already been completed.", "")
		return
	}

	query := r.URL.Query()
	token, status, err := s.process(query)

	if err != nil {
		title, detail := describeFailure(err)
		writeErrorPage(w, status, title, detail)
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_ = successTemplate.Execute(w, nil)
	}

	s.resolveFrom(PhaseHandling, token, err)
}

// process applies the callback rules in order: provider error, CSRF state,
// missing code, then the code exchange.
func (s *CallbackServer) process(query url.Values) (*oauth2.Token, int, error) {
	if providerErr := query.Get("error"); providerErr != "" {
		logging.Warn("OAuth", "Provider reported authorization error: %s", providerErr)
		return nil, http.StatusOK, &ProviderError{
			Code:        providerErr,
			Description: query.Get("error_description"),
		}
	}

	if !s.state.Matches(query.Get("state")) {
		logging.Audit(logging.AuditEvent{
			Action:  "oauth_callback",
			Outcome: "rejected",
			Details: fmt.Sprintf("state mismatch (received %d bytes)", len(query.Get("state"))),
		})
		return nil, http.StatusBadRequest, ErrStateMismatch
	}

	code := query.Get("code")
	if code == "" {
		return nil, http.StatusBadRequest, ErrNoCode
	}

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	token, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		logging.Warn("OAuth", "Authorization code exchange failed: %v", err)
		return nil, http.StatusBadGateway, err
	}
	return token, http.StatusOK, nil
}

func describeFailure(err error) (title, detail string) {
	var providerErr *ProviderError
	var exchangeErr *TokenExchangeError
	switch {
	case errors.As(err, &providerErr):
		return "The identity provider reported an error.", providerErr.Error()
	case errors.Is(err, ErrStateMismatch):
		return "Invalid state parameter.", ""
	case errors.Is(err, ErrNoCode):
		return "No authorization code received.", ""
	case errors.As(err, &exchangeErr):
		return "Token exchange failed.", exchangeErr.Error()
	default:
		return "Sign-in did not complete.", err.Error()
	}
}

func writeErrorPage(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = errorTemplate.Execute(w, map[string]string{
		"Title":  title,
		"Detail": detail,
	})
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
}
