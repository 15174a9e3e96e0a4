package app

import (
	"io"

	"vitals/internal/config"
	"vitals/internal/gate"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of the configured level.
	Debug bool

	// Silent discards log output.
	Silent bool

	// ConfigPath overrides the configuration directory (~/.config/vitals).
	ConfigPath string

	// Prompter answers the auth gate's questions.
	Prompter gate.Prompter

	// Out receives user-facing notices such as the authorization URL.
	Out io.Writer

	// Settings is loaded by NewApplication unless already set.
	Settings *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug, silent bool, configPath string, prompter gate.Prompter, out io.Writer) *Config {
	return &Config{
		Debug:      debug,
		Silent:     silent,
		ConfigPath: configPath,
		Prompter:   prompter,
		Out:        out,
	}
}
