package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"vitals/internal/cli"
	"vitals/internal/metrics"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// newQueryCmd creates the query command.
func newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <promql>",
		Short: "Run an instant PromQL query",
		Long: `Run an instant query against the configured Prometheus backend.
Requires a GitHub sign-in; you are prompted when none is active.

Examples:
  vitals query up
  vitals query 'sum(rate(http_requests_total{status=~"5.."}[5m]))'
  vitals query up -o json`,
		Args: cobra.ArbitraryArgs,
		RunE: runQuery,
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	format, err := selectedOutput()
	if err != nil {
		return err
	}
	expr := strings.Join(args, " ")
	if strings.TrimSpace(expr) == "" {
		return metrics.ErrEmptyQuery
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

	var result *metrics.QueryResult
	err = cli.Spin(cmd.ErrOrStderr(), quiet || format != cli.OutputFormatTable, "Querying Prometheus...", func() error {
		var qerr error
		result, qerr = s.Metrics.Query(cmd.Context(), expr)
		return qerr
	})
	if err != nil {
		return backendError(err, s.Metrics.BaseURL())
	}

	out := cmd.OutOrStdout()
	if format != cli.OutputFormatTable {
		return cli.WriteStructured(out, format, result)
	}
	if err := cli.RenderQueryResult(out, result); err != nil {
		return err
	}
	if alert, fired := metrics.ErrorRateAlert(result, application.Settings().Prometheus.ErrorRateThreshold); fired {
		fmt.Fprintln(out, text.FgRed.Sprint(alert.Message))
	}
	return nil
}

// backendError adds connection hints to transport failures, both those that
// exhausted the retry budget and permanent ones such as an untrusted
// certificate.
func backendError(err error, endpoint string) error {
	var netErr *metrics.NetworkError
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return cli.ClassifyConnectionError(err, endpoint)
	}
	return err
}
