package config

import "time"

const (
	// DefaultPrometheusURL is the demo backend; dashboards flag it as demo mode.
	DefaultPrometheusURL = "http://localhost:9090"

	DefaultAuthorizeURL = "https://github.com/login/oauth/authorize"
	DefaultTokenURL     = "https://github.com/login/oauth/access_token"
	DefaultAPIURL       = "https://api.github.com/"
	DefaultLearnMoreURL = "https://github.com/theaniketraj/vitals#readme"

	DefaultCallbackHost = "127.0.0.1"
	DefaultCallbackPort = 3000

	DefaultFlowTimeout    = 5 * time.Minute
	DefaultRequestTimeout = 5 * time.Second
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = 500 * time.Millisecond

	DefaultErrorRateThreshold = 5.0
	DefaultTelemetryTimeout   = 5 * time.Second
)

// DefaultScopes are the fixed scopes requested from the identity provider:
// read the user's email addresses and read the user's profile.
var DefaultScopes = []string{"user:email", "read:user"}

// GetDefaultConfig returns the built-in configuration. Storage paths are left
// empty and resolved relative to the user's config directory by LoadConfig.
func GetDefaultConfig() Config {
	return Config{
		Prometheus: PrometheusConfig{
			URL:                DefaultPrometheusURL,
			Timeout:            DefaultRequestTimeout,
			MaxAttempts:        DefaultMaxAttempts,
			BaseDelay:          DefaultBaseDelay,
			ErrorRateThreshold: DefaultErrorRateThreshold,
		},
		OAuth: OAuthConfig{
			AuthorizeURL: DefaultAuthorizeURL,
			TokenURL:     DefaultTokenURL,
			APIURL:       DefaultAPIURL,
			Scopes:       append([]string(nil), DefaultScopes...),
			CallbackHost: DefaultCallbackHost,
			CallbackPort: DefaultCallbackPort,
			FlowTimeout:  DefaultFlowTimeout,
			LearnMoreURL: DefaultLearnMoreURL,
		},
		Telemetry: TelemetryConfig{
			Timeout: DefaultTelemetryTimeout,
		},
		LogLevel: "info",
	}
}
