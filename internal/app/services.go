package app

import (
	"context"
	"fmt"
	"strconv"

	"vitals/internal/config"
	"vitals/internal/dashboard"
	"vitals/internal/gate"
	"vitals/internal/metrics"
	"vitals/internal/oauth"
	"vitals/internal/session"
	"vitals/internal/telemetry"
	"vitals/internal/vault"
	"vitals/pkg/logging"
)

// Services holds all initialized components used by the commands.
//
// They are initialized in dependency order:
//  1. Stores and the credential vault
//  2. Telemetry client (optional sink for sign-in and usage events)
//  3. Sign-in flow, profile fetcher and session
//  4. Auth gate
//  5. Metrics client and the dashboard dispatcher
type Services struct {
	Stores    *vault.Stores
	Vault     *vault.Vault
	Telemetry *telemetry.Client
	Flow      *oauth.Flow
	Session   *session.Session
	Gate      *gate.Gate
	Metrics   *metrics.Client
	Dashboard *dashboard.Dispatcher
}

// InitializeServices creates every component from cfg.Settings. The
// returned Services own the stores and must be closed.
func InitializeServices(cfg *Config) (*Services, error) {
	settings := cfg.Settings

	stores, err := vault.OpenStores(settings.Storage.DataDir, settings.Storage.SecretKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open stores: %w", err)
	}
	s := &Services{Stores: stores}
	ok := false
	defer func() {
		if !ok {
			_ = stores.Close()
		}
	}()

	s.Vault = vault.New(stores.State, stores.Secrets)

	s.Telemetry, err = telemetry.New(settings.Telemetry.URL, settings.Telemetry.Timeout, nil)
	if err != nil {
		return nil, err
	}
	if !s.Telemetry.Enabled() {
		logging.Debug("Bootstrap", "Telemetry disabled")
	}

	s.Flow = oauth.NewFlow(oauth.Config{
		AuthorizeURL: settings.OAuth.AuthorizeURL,
		TokenURL:     settings.OAuth.TokenURL,
		Scopes:       settings.OAuth.Scopes,
		CallbackHost: settings.OAuth.CallbackHost,
		CallbackPort: settings.OAuth.CallbackPort,
		Timeout:      settings.OAuth.FlowTimeout,
		OnAuthURL: func(url string) {
			fmt.Fprintf(cfg.Out, "Opening your browser to sign in with GitHub.\nIf it does not open, visit:\n  %s\n", url)
		},
	})

	profiles, err := session.NewGitHubProfiles(settings.OAuth.APIURL, nil)
	if err != nil {
		return nil, err
	}
	s.Session = session.New(session.Options{
		Secrets:     stores.Secrets,
		State:       stores.State,
		Credentials: s.Vault,
		Flow:        s.Flow,
		Profiles:    profiles,
		Events:      s.Telemetry,
	})

	s.Gate = gate.New(s.Session, s.Vault, cfg.Prompter, settings.OAuth.LearnMoreURL)

	s.Metrics, err = metrics.New(settings.Prometheus.URL,
		metrics.WithTimeout(settings.Prometheus.Timeout),
		metrics.WithMaxAttempts(settings.Prometheus.MaxAttempts),
		metrics.WithBaseDelay(settings.Prometheus.BaseDelay),
	)
	if err != nil {
		return nil, err
	}

	s.Dashboard = dashboard.NewDispatcher(dashboard.Options{
		Gate:       s.Gate,
		Metrics:    s.Metrics,
		DefaultURL: config.DefaultPrometheusURL,
		Threshold:  settings.Prometheus.ErrorRateThreshold,
		Usage:      s.Telemetry,
		Subject:    s.subject,
	})

	ok = true
	return s, nil
}

// subject identifies the signed-in user for usage events.
func (s *Services) subject(ctx context.Context) string {
	user, err := s.Session.CurrentUser(ctx)
	if err != nil {
		return ""
	}
	return strconv.FormatInt(user.ID, 10)
}

// Close flushes telemetry and closes the stores.
func (s *Services) Close(ctx context.Context) error {
	s.Telemetry.Flush(ctx)
	return s.Stores.Close()
}
