package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vitals/internal/cli"
	"vitals/internal/gate"
	"vitals/internal/metrics"
	"vitals/internal/session"
	"vitals/internal/vault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLineReader struct {
	lines     []string
	passwords []string
}

func (r *stubLineReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	l := r.lines[0]
	r.lines = r.lines[1:]
	return l, nil
}

func (r *stubLineReader) ReadPassword(string) ([]byte, error) {
	if len(r.passwords) == 0 {
		return nil, io.EOF
	}
	p := r.passwords[0]
	r.passwords = r.passwords[1:]
	return []byte(p), nil
}

func (r *stubLineReader) SetPrompt(string) {}

func resetFlags() {
	configPath = ""
	debug = false
	quiet = false
	noInput = false
	outputFormat = "table"
	loginForce = false
	statusValidate = false
	credClientID = ""
	credSecretStdin = false
	serveAddr = defaultServeAddr
}

// executeCommand runs the root command with args against a fresh flag state.
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	var out, errOut bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func withTerminal(t *testing.T, reader *stubLineReader) {
	t.Helper()
	original := newTerminalPrompter
	newTerminalPrompter = func(out io.Writer) (gate.Prompter, func() error, error) {
		return cli.NewPrompter(reader, out, func(string) error { return nil }), func() error { return nil }, nil
	}
	t.Cleanup(func() { newTerminalPrompter = original })
}

// seedToken stores an access token directly, as a completed sign-in would.
func seedToken(t *testing.T, dir, token string) {
	t.Helper()
	stores, err := vault.OpenStores(filepath.Join(dir, "data"), filepath.Join(dir, "secret.key"))
	require.NoError(t, err)
	require.NoError(t, stores.Secrets.Set(context.Background(), session.AccessTokenKey, token))
	require.NoError(t, stores.Close())
}

func githubAPI(t *testing.T, token string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message": "Bad credentials"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": 7, "login": "octocat", "name": "The Octocat", "email": "octo@example.com"}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCredentials_SetShowClear(t *testing.T) {
	dir := t.TempDir()

	out, err := executeCommand(t, "s3cret\n", "credentials", "set", "-q", "--config-path", dir, "--client-id", "Iv1.abc", "--client-secret-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "credentials saved")

	out, err = executeCommand(t, "", "credentials", "show", "-q", "--config-path", dir, "-o", "json")
	require.NoError(t, err)
	var shown credentialsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, credentialsOutput{ClientID: "Iv1.abc", ClientSecretSet: true}, shown)
	assert.NotContains(t, out, "s3cret")

	out, err = executeCommand(t, "", "credentials", "show", "-q", "--config-path", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Iv1.abc")
	assert.NotContains(t, out, "s3cret")

	_, err = executeCommand(t, "", "credentials", "clear", "-q", "--config-path", dir)
	require.NoError(t, err)

	_, err = executeCommand(t, "", "credentials", "show", "-q", "--config-path", dir)
	assert.Equal(t, ExitCodeConfigurationRequired, getExitCode(err))
}

func TestCredentials_SetInteractive(t *testing.T) {
	dir := t.TempDir()
	withTerminal(t, &stubLineReader{lines: []string{"Iv1.xyz"}, passwords: []string{"hunter2"}})

	_, err := executeCommand(t, "", "credentials", "set", "-q", "--config-path", dir)
	require.NoError(t, err)

	out, err := executeCommand(t, "", "credentials", "show", "-q", "--config-path", dir, "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "clientId: Iv1.xyz")
}

func TestCredentials_SetWithoutInputFails(t *testing.T) {
	_, err := executeCommand(t, "", "credentials", "set", "-q", "--no-input", "--config-path", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--client-id")
}

func TestAuthLogin_MissingCredentials(t *testing.T) {
	_, err := executeCommand(t, "", "auth", "login", "-q", "--no-input", "--config-path", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCodeConfigurationRequired, getExitCode(err))
}

func TestAuthLogin_AlreadySignedIn(t *testing.T) {
	dir := t.TempDir()
	seedToken(t, dir, "gho_valid")
	t.Setenv("VITALS_OAUTH_API_URL", githubAPI(t, "gho_valid").URL)

	out, err := executeCommand(t, "", "auth", "login", "-q", "--no-input", "--config-path", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Already signed in as The Octocat")
}

func TestAuthStatus(t *testing.T) {
	dir := t.TempDir()

	out, err := executeCommand(t, "", "auth", "status", "-q", "--config-path", dir, "-o", "json")
	require.NoError(t, err)
	var st authStatusOutput
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.False(t, st.SignedIn)
	assert.False(t, st.CredentialsConfigured)

	seedToken(t, dir, "gho_valid")
	t.Setenv("VITALS_OAUTH_API_URL", githubAPI(t, "gho_valid").URL)

	out, err = executeCommand(t, "", "auth", "status", "-q", "--validate", "--config-path", dir, "-o", "json")
	require.NoError(t, err)
	st = authStatusOutput{}
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.True(t, st.SignedIn)
	require.NotNil(t, st.User)
	assert.Equal(t, "octocat", st.User.Login)
	require.NotNil(t, st.TokenValid)
	assert.True(t, *st.TokenValid)
}

func TestAuthLogout(t *testing.T) {
	dir := t.TempDir()
	seedToken(t, dir, "gho_valid")

	out, err := executeCommand(t, "", "auth", "logout", "-q", "--config-path", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")

	out, err = executeCommand(t, "", "auth", "status", "-q", "--config-path", dir, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"signedIn": false`)
}

func TestQuery_RequiresSignIn(t *testing.T) {
	_, err := executeCommand(t, "", "query", "up", "-q", "--no-input", "--config-path", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCodeAuthRequired, getExitCode(err))
}

func TestQuery_SignedIn(t *testing.T) {
	dir := t.TempDir()
	seedToken(t, dir, "gho_valid")
	t.Setenv("VITALS_OAUTH_API_URL", githubAPI(t, "gho_valid").URL)

	var gotQuery string
	prom := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"success","data":{"resultType":"vector","result":[{"metric":{"job":"api"},"value":[1700000000,"1"]}]}}`)
	}))
	defer prom.Close()
	t.Setenv("VITALS_PROMETHEUS_URL", prom.URL)

	out, err := executeCommand(t, "", "query", "up", `{job="api"}`, "-q", "--no-input", "--config-path", dir, "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, `up {job="api"}`, gotQuery)
	assert.Contains(t, out, `"status": "success"`)
}

func TestQuery_EmptyExpressionSkipsSignIn(t *testing.T) {
	_, err := executeCommand(t, "", "query", "  ", "-q", "--no-input", "--config-path", t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, metrics.ErrEmptyQuery)
	assert.Equal(t, ExitCodeError, getExitCode(err))
}

func TestQuery_UntrustedCertificateIsExplained(t *testing.T) {
	dir := t.TempDir()
	seedToken(t, dir, "gho_valid")
	t.Setenv("VITALS_OAUTH_API_URL", githubAPI(t, "gho_valid").URL)

	prom := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not pass the TLS handshake")
	}))
	defer prom.Close()
	t.Setenv("VITALS_PROMETHEUS_URL", prom.URL)

	_, err := executeCommand(t, "", "query", "up", "-q", "--no-input", "--config-path", dir)
	require.Error(t, err)

	var connErr *cli.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, cli.ConnectionErrorTLS, connErr.Type)
	assert.Contains(t, err.Error(), "certificate is trusted")
}

func TestAlerts_SignedIn(t *testing.T) {
	dir := t.TempDir()
	seedToken(t, dir, "gho_valid")
	t.Setenv("VITALS_OAUTH_API_URL", githubAPI(t, "gho_valid").URL)

	prom := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"success","data":{"alerts":[{"labels":{"alertname":"HighErrorRate","severity":"critical"},"annotations":{"summary":"5xx above 5%"},"state":"firing","value":"7"}]}}`)
	}))
	defer prom.Close()
	t.Setenv("VITALS_PROMETHEUS_URL", prom.URL)

	out, err := executeCommand(t, "", "alerts", "-q", "--no-input", "--config-path", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "HighErrorRate")
	assert.Contains(t, out, "critical")
}

func TestServe_RequiresSignIn(t *testing.T) {
	_, err := executeCommand(t, "", "serve", "-q", "--no-input", "--addr", "127.0.0.1:0", "--config-path", t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, &cli.AuthRequiredError{}))
}

func TestInvalidOutputFormat(t *testing.T) {
	_, err := executeCommand(t, "", "auth", "status", "-q", "--config-path", t.TempDir(), "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestInvalidConfigurationIsReported(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("prometheus:\n  url: ftp://metrics\n"), 0o600))

	_, err := executeCommand(t, "", "auth", "status", "-q", "--config-path", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Detailed Configuration Error Report")
	assert.Contains(t, err.Error(), "prometheus.url")
	assert.Contains(t, err.Error(), "VITALS_PROMETHEUS_URL")
}
