// Package dashboard is the message boundary between a dashboard front end
// and the core. Requests and responses are closed sets of variant types;
// the JSON form tags each message with a "command" field.
package dashboard

import (
	"errors"

	"vitals/internal/metrics"
)

// ErrUnknownCommand is returned for a message whose command is not in the set.
var ErrUnknownCommand = errors.New("unknown command")

// Command tags.
const (
	CmdGetPrometheusURL = "getPrometheusUrl"
	CmdFetchMetrics     = "fetchMetrics"
	CmdFetchAlerts      = "fetchAlerts"
	CmdFetchLogs        = "fetchLogs"

	CmdPrometheusURL = "prometheusUrl"
	CmdUpdateMetrics = "updateMetrics"
	CmdMetricsError  = "error"
	CmdUpdateAlerts  = "updateAlerts"
	CmdAlertsError   = "alertError"
	CmdUpdateLogs    = "updateLogs"
	CmdTriggerAlert  = "triggerAlert"
	CmdAuthRequired  = "authRequired"
)

// Request is a message from the front end. Only types in this package
// implement it.
type Request interface {
	Command() string
	request()
}

// Response is a message to the front end. Only types in this package
// implement it.
type Response interface {
	Command() string
	response()
}

type GetPrometheusURL struct{}

type FetchMetrics struct {
	Query string `json:"query"`
}

type FetchAlerts struct{}

type FetchLogs struct{}

func (GetPrometheusURL) Command() string { return CmdGetPrometheusURL }
func (FetchMetrics) Command() string     { return CmdFetchMetrics }
func (FetchAlerts) Command() string      { return CmdFetchAlerts }
func (FetchLogs) Command() string        { return CmdFetchLogs }

func (GetPrometheusURL) request() {}
func (FetchMetrics) request()     {}
func (FetchAlerts) request()      {}
func (FetchLogs) request()        {}

// PrometheusURL reports the configured backend. IsDemoMode is set when the
// URL is the built-in default.
type PrometheusURL struct {
	URL        string `json:"url"`
	IsDemoMode bool   `json:"isDemoMode"`
}

type MetricsUpdated struct {
	Data *metrics.QueryResult `json:"data"`
}

type MetricsError struct {
	Message string `json:"message"`
}

type AlertsUpdated struct {
	Data *metrics.QueryResult `json:"data"`
}

type AlertsError struct {
	Message string `json:"message"`
}

type LogsUpdated struct {
	Data []string `json:"data"`
}

// TriggerAlert is sent alongside MetricsUpdated when a result crosses the
// error rate threshold.
type TriggerAlert struct {
	Data metrics.ThresholdAlert `json:"data"`
}

// AuthRequired replaces the reply to a protected request when the gate
// did not admit the session.
type AuthRequired struct {
	Message string `json:"message"`
}

func (PrometheusURL) Command() string  { return CmdPrometheusURL }
func (MetricsUpdated) Command() string { return CmdUpdateMetrics }
func (MetricsError) Command() string   { return CmdMetricsError }
func (AlertsUpdated) Command() string  { return CmdUpdateAlerts }
func (AlertsError) Command() string    { return CmdAlertsError }
func (LogsUpdated) Command() string    { return CmdUpdateLogs }
func (TriggerAlert) Command() string   { return CmdTriggerAlert }
func (AuthRequired) Command() string   { return CmdAuthRequired }

func (PrometheusURL) response()  {}
func (MetricsUpdated) response() {}
func (MetricsError) response()   {}
func (AlertsUpdated) response()  {}
func (AlertsError) response()    {}
func (LogsUpdated) response()    {}
func (TriggerAlert) response()   {}
func (AuthRequired) response()   {}
