package cmd

import (
	"errors"
	"os"

	"vitals/internal/cli"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates sign-in is required but was declined or is unavailable.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
	// ExitCodeConfigurationRequired indicates the OAuth client credential is missing.
	ExitCodeConfigurationRequired = 4
)

// Global flags shared by every subcommand.
var (
	configPath   string
	debug        bool
	quiet        bool
	noInput      bool
	outputFormat string
)

// rootCmd represents the base command for the vitals application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "vitals",
	Short: "Sign in with GitHub and watch your Prometheus vitals",
	Long: `vitals signs you in with your GitHub account and queries a
Prometheus-compatible backend for metrics and alerts, from the terminal or
through the local dashboard bridge.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "vitals version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var authRequired *cli.AuthRequiredError
	if errors.As(err, &authRequired) {
		return ExitCodeAuthRequired
	}

	var authFailed *cli.AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	var configRequired *cli.ConfigurationRequiredError
	if errors.As(err, &configRequired) {
		return ExitCodeConfigurationRequired
	}

	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "", "Configuration directory (default is $HOME/.config/vitals)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress log output and progress indicators")
	rootCmd.PersistentFlags().BoolVar(&noInput, "no-input", false, "Never prompt; fail with exit code 2 when sign-in is needed")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json or yaml")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newCredentialsCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newAlertsCmd())
	rootCmd.AddCommand(newServeCmd())
}
