package cmd

import (
	"vitals/internal/cli"
	"vitals/internal/metrics"

	"github.com/spf13/cobra"
)

// newAlertsCmd creates the alerts command.
func newAlertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "List pending and firing alerts",
		Long: `List the alerts currently known to the configured Prometheus backend.
Requires a GitHub sign-in; you are prompted when none is active.`,
		Args: cobra.NoArgs,
		RunE: runAlerts,
	}
}

func runAlerts(cmd *cobra.Command, args []string) error {
	format, err := selectedOutput()
	if err != nil {
		return err
	}

	application, closeApp, err := openApplication(cmd, true)
	if err != nil {
		return err
	}
	defer closeApp()

	s := application.Services()
	if err := requireAdmission(cmd, s.Gate); err != nil {
		return err
	}

	var alerts []metrics.Alert
	err = cli.Spin(cmd.ErrOrStderr(), quiet || format != cli.OutputFormatTable, "Fetching alerts...", func() error {
		result, err := s.Metrics.Alerts(cmd.Context())
		if err != nil {
			return err
		}
		alerts, err = result.Alerts()
		return err
	})
	if err != nil {
		return backendError(err, s.Metrics.BaseURL())
	}

	out := cmd.OutOrStdout()
	if format != cli.OutputFormatTable {
		if alerts == nil {
			alerts = []metrics.Alert{}
		}
		return cli.WriteStructured(out, format, alerts)
	}
	cli.RenderAlerts(out, alerts)
	return nil
}
