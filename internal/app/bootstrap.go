package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"vitals/internal/config"
	"vitals/internal/gate"
	"vitals/pkg/logging"
)

// ErrNotAdmitted is returned by Serve when the user declined to sign in.
var ErrNotAdmitted = errors.New("sign-in declined")

// closeTimeout bounds the telemetry flush on Close.
const closeTimeout = 5 * time.Second

// Application represents a bootstrapped vitals process.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration, configures logging and initializes
// all services.
func NewApplication(cfg *Config) (*Application, error) {
	var logOutput io.Writer = os.Stderr
	if cfg.Silent {
		logOutput = io.Discard
	}
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, logOutput)

	if cfg.Settings == nil {
		settings, err := config.LoadConfig(cfg.ConfigPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load vitals configuration")
			return nil, fmt.Errorf("failed to load vitals configuration: %w", err)
		}
		cfg.Settings = &settings
	}
	if !cfg.Debug {
		logging.InitForCLI(logging.ParseLevel(cfg.Settings.LogLevel), logOutput)
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Services returns the initialized components.
func (a *Application) Services() *Services {
	return a.services
}

// Prompter returns the prompter the gate uses.
func (a *Application) Prompter() gate.Prompter {
	return a.config.Prompter
}

// Settings returns the effective configuration.
func (a *Application) Settings() config.Config {
	return *a.config.Settings
}

// Serve admits the activation through the gate and then runs the dashboard
// bridge on addr until ctx is done or the process is interrupted.
func (a *Application) Serve(ctx context.Context, addr string) error {
	ok, err := a.services.Dashboard.Admit(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAdmitted
	}
	defer a.services.Dashboard.Revoke()
	return runDashboard(ctx, addr, a.services)
}

// Close flushes telemetry and releases the stores.
func (a *Application) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return a.services.Close(ctx)
}
