package config

import "time"

// Config is the top-level vitals configuration.
type Config struct {
	Prometheus PrometheusConfig `yaml:"prometheus" envPrefix:"PROMETHEUS_"`
	OAuth      OAuthConfig      `yaml:"oauth" envPrefix:"OAUTH_"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envPrefix:"TELEMETRY_"`
	Storage    StorageConfig    `yaml:"storage" envPrefix:"STORAGE_"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel" env:"LOG_LEVEL"`
}

// PrometheusConfig configures the monitoring backend client.
type PrometheusConfig struct {
	// URL is the base URL of the Prometheus-compatible backend.
	URL string `yaml:"url" env:"URL"`

	// Timeout bounds every individual HTTP attempt.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`

	// MaxAttempts is the total number of attempts per call, including the first.
	MaxAttempts int `yaml:"maxAttempts" env:"MAX_ATTEMPTS"`

	// BaseDelay is the backoff before the second attempt; it doubles afterwards.
	BaseDelay time.Duration `yaml:"baseDelay" env:"BASE_DELAY"`

	// ErrorRateThreshold triggers an alert notice when the first sample of a
	// query result exceeds it.
	ErrorRateThreshold float64 `yaml:"errorRateThreshold" env:"ERROR_RATE_THRESHOLD"`
}

// OAuthConfig configures the identity provider and the loopback callback listener.
type OAuthConfig struct {
	AuthorizeURL string `yaml:"authorizeURL" env:"AUTHORIZE_URL"`
	TokenURL     string `yaml:"tokenURL" env:"TOKEN_URL"`

	// APIURL is the identity provider's REST API base (profile and emails).
	APIURL string `yaml:"apiURL" env:"API_URL"`

	Scopes []string `yaml:"scopes" env:"SCOPES" envSeparator:" "`

	CallbackHost string `yaml:"callbackHost" env:"CALLBACK_HOST"`
	CallbackPort int    `yaml:"callbackPort" env:"CALLBACK_PORT"`

	// FlowTimeout is the hard ceiling for one authorization attempt.
	FlowTimeout time.Duration `yaml:"flowTimeout" env:"FLOW_TIMEOUT"`

	// LearnMoreURL is opened when the user picks "Learn more" at the gate.
	LearnMoreURL string `yaml:"learnMoreURL" env:"LEARN_MORE_URL"`
}

// TelemetryConfig configures the backend event sink. An empty URL disables it.
type TelemetryConfig struct {
	URL     string        `yaml:"url" env:"URL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// StorageConfig configures where session state and secrets are persisted.
type StorageConfig struct {
	// DataDir holds the state and secrets databases.
	DataDir string `yaml:"dataDir" env:"DATA_DIR"`

	// SecretKeyFile holds the at-rest encryption key for the secret store.
	// It is created with 0600 permissions on first use.
	SecretKeyFile string `yaml:"secretKeyFile" env:"SECRET_KEY_FILE"`
}
