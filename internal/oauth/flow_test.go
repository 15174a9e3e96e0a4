package oauth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"vitals/internal/vault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

var testCred = vault.Credential{ClientID: "Iv1.client", ClientSecret: "shh"}

// freePort reserves and releases a loopback port for the flow under test.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

// browserThatCallsBack simulates the provider redirecting the browser back to
// the callback with the given params. The state from the auth URL is echoed
// unless overridden.
func browserThatCallsBack(port int, override url.Values) func(string) error {
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		params := url.Values{"state": {u.Query().Get("state")}, "code": {"the-code"}}
		for k, v := range override {
			params[k] = v
		}
		go func() {
			resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + CallbackPath + "?" + params.Encode())
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}
}

func newTestFlow(port int, openBrowser func(string) error, ex Exchanger) *Flow {
	return NewFlow(Config{
		AuthorizeURL: "https://github.com/login/oauth/authorize",
		TokenURL:     "https://github.com/login/oauth/access_token",
		Scopes:       []string{"user:email", "read:user"},
		CallbackHost: "127.0.0.1",
		CallbackPort: port,
		Timeout:      5 * time.Second,
		OpenBrowser:  openBrowser,
		NewExchanger: func(vault.Credential) Exchanger { return ex },
	})
}

func TestFlow_Run_Success(t *testing.T) {
	port := freePort(t)
	ex := &countingExchanger{token: &oauth2.Token{AccessToken: "gho_ok"}}
	flow := newTestFlow(port, browserThatCallsBack(port, nil), ex)

	token, err := flow.Run(context.Background(), testCred)
	require.NoError(t, err)
	assert.Equal(t, "gho_ok", token.AccessToken)
}

func TestFlow_Run_StateMismatch(t *testing.T) {
	port := freePort(t)
	ex := &countingExchanger{token: &oauth2.Token{AccessToken: "gho_ok"}}
	flow := newTestFlow(port, browserThatCallsBack(port, url.Values{"state": {"attacker"}}), ex)

	_, err := flow.Run(context.Background(), testCred)
	assert.ErrorIs(t, err, ErrSignInIncomplete)
	assert.ErrorIs(t, err, ErrStateMismatch)
	assert.Equal(t, int32(0), ex.calls.Load())
}

func TestFlow_Run_MissingCredential(t *testing.T) {
	flow := newTestFlow(freePort(t), func(string) error { return nil }, &countingExchanger{})

	_, err := flow.Run(context.Background(), vault.Credential{ClientID: "only-id"})
	assert.ErrorIs(t, err, ErrSignInIncomplete)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestFlow_Run_BrowserFailureStillWaits(t *testing.T) {
	port := freePort(t)
	ex := &countingExchanger{token: &oauth2.Token{AccessToken: "gho_ok"}}
	callBack := browserThatCallsBack(port, nil)

	var printed string
	flow := newTestFlow(port, func(u string) error {
		_ = callBack(u)
		return errors.New("no display")
	}, ex)
	flow.cfg.OnAuthURL = func(u string) { printed = u }

	token, err := flow.Run(context.Background(), testCred)
	require.NoError(t, err)
	assert.Equal(t, "gho_ok", token.AccessToken)
	assert.Contains(t, printed, "client_id=Iv1.client")
}

func TestFlow_Run_SingleFlight(t *testing.T) {
	port := freePort(t)
	opened := make(chan struct{})
	release := make(chan struct{})
	callBack := browserThatCallsBack(port, nil)

	ex := &countingExchanger{token: &oauth2.Token{AccessToken: "gho_ok"}}
	flow := newTestFlow(port, func(u string) error {
		close(opened)
		go func() {
			<-release
			_ = callBack(u)
		}()
		return nil
	}, ex)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = flow.Run(context.Background(), testCred)
	}()

	<-opened
	_, err := flow.Run(context.Background(), testCred)
	assert.ErrorIs(t, err, ErrFlowInProgress)
	assert.ErrorIs(t, err, ErrSignInIncomplete)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, int32(1), ex.calls.Load())
}

func TestFlow_Run_TimeoutAllowsRetryOnSamePort(t *testing.T) {
	port := freePort(t)
	flow := newTestFlow(port, func(string) error { return nil }, &countingExchanger{})
	flow.cfg.Timeout = 50 * time.Millisecond

	_, err := flow.Run(context.Background(), testCred)
	assert.ErrorIs(t, err, ErrFlowTimeout)

	_, err = flow.Run(context.Background(), testCred)
	assert.ErrorIs(t, err, ErrFlowTimeout, "second attempt must be able to bind the same port")
}

func TestFlow_AuthCodeURL(t *testing.T) {
	flow := newTestFlow(3000, nil, nil)
	state := NewRedactedToken("abc123")

	u, err := url.Parse(flow.AuthCodeURL(testCred, state))
	require.NoError(t, err)
	q := u.Query()

	assert.Equal(t, "github.com", u.Host)
	assert.Equal(t, "/login/oauth/authorize", u.Path)
	assert.Equal(t, "Iv1.client", q.Get("client_id"))
	assert.Equal(t, "user:email read:user", q.Get("scope"))
	assert.Equal(t, "abc123", q.Get("state"))
	assert.Equal(t, "true", q.Get("allow_signup"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.NotContains(t, u.RawQuery, "shh", "client secret must never appear in the authorization URL")
}

func TestNewFlow_TimeoutCeiling(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"unset", 0, MaxFlowTimeout},
		{"within ceiling", time.Minute, time.Minute},
		{"above ceiling", time.Hour, MaxFlowTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFlow(Config{Timeout: tt.in})
			assert.Equal(t, tt.want, f.cfg.Timeout)
		})
	}
}
