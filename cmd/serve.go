package cmd

import (
	"errors"

	"vitals/internal/app"
	"vitals/internal/cli"

	"github.com/spf13/cobra"
)

const defaultServeAddr = "127.0.0.1:7878"

var serveAddr string

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local dashboard bridge",
		Long: `Run the dashboard bridge: an HTTP endpoint that answers dashboard
messages with Prometheus metrics, alerts and logs.

The bridge asks you to sign in with GitHub before it starts. Clients POST a
JSON message such as {"command": "fetchMetrics", "query": "up"} to
/messages and receive an array of replies.

Supported messages:
  getPrometheusUrl   Backend URL and whether it is the built-in demo
  fetchMetrics       Instant query; may also trigger an error-rate alert
  fetchAlerts        Pending and firing alerts
  fetchLogs          Recent log lines`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	serveCmd.Flags().StringVar(&serveAddr, "addr", defaultServeAddr, "Listen address for the dashboard bridge")
	return serveCmd
}

func runServe(cmd *cobra.Command, args []string) error {
	application, closeApp, err := openApplication(cmd, true)
	if err != nil {
		return err
	}
	defer closeApp()

	err = application.Serve(cmd.Context(), serveAddr)
	if errors.Is(err, app.ErrNotAdmitted) || errors.Is(err, cli.ErrPromptClosed) {
		return &cli.AuthRequiredError{}
	}
	return err
}
