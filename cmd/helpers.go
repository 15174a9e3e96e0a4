package cmd

import (
	"errors"
	"io"

	"vitals/internal/app"
	"vitals/internal/cli"
	"vitals/internal/config"
	"vitals/internal/gate"
	"vitals/internal/oauth"

	"github.com/spf13/cobra"
)

// newTerminalPrompter is a variable so tests can avoid opening a terminal.
var newTerminalPrompter = func(out io.Writer) (gate.Prompter, func() error, error) {
	return cli.NewTerminalPrompter(out)
}

// openApplication bootstraps the application for one command. Commands that
// may ask questions pass interactive; --no-input overrides it. The returned
// close function must be deferred.
func openApplication(cmd *cobra.Command, interactive bool) (*app.Application, func(), error) {
	out := cmd.OutOrStdout()

	var prompter gate.Prompter = cli.NewDeclinePrompter(cmd.ErrOrStderr())
	closePrompter := func() error { return nil }
	if interactive && !noInput {
		p, closeFn, err := newTerminalPrompter(out)
		if err != nil {
			return nil, nil, err
		}
		prompter, closePrompter = p, closeFn
	}

	application, err := app.NewApplication(app.NewConfig(debug, quiet, configPath, prompter, out))
	if err != nil {
		_ = closePrompter()
		return nil, nil, configReport(err)
	}
	return application, func() {
		_ = application.Close()
		_ = closePrompter()
	}, nil
}

// configReport expands configuration errors into their detailed report.
func configReport(err error) error {
	var collection config.ConfigurationErrorCollection
	if errors.As(err, &collection) {
		return errors.New(collection.GetDetailedReport())
	}
	var single config.ConfigurationError
	if errors.As(err, &single) {
		return errors.New(single.DetailedError())
	}
	return err
}

// selectedOutput parses the --output flag.
func selectedOutput() (cli.OutputFormat, error) {
	return cli.ParseOutputFormat(outputFormat)
}

// signInError maps a sign-in failure onto the CLI's exit-code errors.
func signInError(err error) error {
	if errors.Is(err, oauth.ErrMissingCredential) {
		return &cli.ConfigurationRequiredError{}
	}
	return &cli.AuthFailedError{Reason: err}
}

// requireAdmission runs the auth gate and converts a refusal into
// AuthRequiredError.
func requireAdmission(cmd *cobra.Command, g *gate.Gate) error {
	ok, err := g.Enforce(cmd.Context())
	if err != nil {
		if errors.Is(err, cli.ErrPromptClosed) {
			return &cli.AuthRequiredError{}
		}
		return err
	}
	if !ok {
		return &cli.AuthRequiredError{}
	}
	return nil
}
