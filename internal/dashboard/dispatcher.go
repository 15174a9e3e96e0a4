package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vitals/internal/metrics"
	"vitals/pkg/logging"
)

// AuthRequiredMessage is the text of AuthRequired replies.
const AuthRequiredMessage = "Sign in with GitHub to load dashboard data."

// Gate admits protected operations.
type Gate interface {
	Enforce(ctx context.Context) (bool, error)
}

// MetricsSource is the backend behind the dashboard.
type MetricsSource interface {
	Query(ctx context.Context, expr string) (*metrics.QueryResult, error)
	Alerts(ctx context.Context) (*metrics.QueryResult, error)
	BaseURL() string
}

// UsageSink records feature usage.
type UsageSink interface {
	LogEvent(ctx context.Context, subjectID, eventName string, properties map[string]any)
}

// Options configures a Dispatcher.
type Options struct {
	Gate    Gate
	Metrics MetricsSource

	// DefaultURL is the built-in backend URL; matching it means demo mode.
	DefaultURL string
	// Threshold for ErrorRateAlert.
	Threshold float64

	// Usage and Subject are optional.
	Usage   UsageSink
	Subject func(ctx context.Context) string

	Now func() time.Time
}

// Dispatcher answers dashboard requests. Protected requests reach the
// metrics source only after the gate admitted the current activation.
type Dispatcher struct {
	opts Options

	mu       sync.Mutex
	admitted bool
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{opts: opts}
}

// Admit runs the gate for this activation. Later protected requests skip
// the gate while the admission holds.
func (d *Dispatcher) Admit(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.admitted {
		return true, nil
	}
	ok, err := d.opts.Gate.Enforce(ctx)
	if err != nil {
		return false, err
	}
	d.admitted = ok
	return ok, nil
}

// Revoke ends the current activation; the next protected request runs the
// gate again.
func (d *Dispatcher) Revoke() {
	d.mu.Lock()
	d.admitted = false
	d.mu.Unlock()
}

// Handle answers one request. Backend failures become error replies; the
// returned error is reserved for gate failures.
func (d *Dispatcher) Handle(ctx context.Context, req Request) ([]Response, error) {
	switch r := req.(type) {
	case GetPrometheusURL:
		url := d.opts.Metrics.BaseURL()
		return []Response{PrometheusURL{URL: url, IsDemoMode: url == d.opts.DefaultURL}}, nil

	case FetchMetrics:
		if ok, err := d.Admit(ctx); !ok {
			return d.denied(err)
		}
		d.trackFeature(ctx, "metrics")
		result, err := d.opts.Metrics.Query(ctx, r.Query)
		if err != nil {
			logging.Warn("Dashboard", "Metrics fetch failed: %v", err)
			d.trackError(ctx, "prometheus_metrics_fetch_failed")
			return []Response{MetricsError{Message: err.Error()}}, nil
		}
		out := []Response{MetricsUpdated{Data: result}}
		if alert, fired := metrics.ErrorRateAlert(result, d.opts.Threshold); fired {
			out = append(out, TriggerAlert{Data: *alert})
		}
		return out, nil

	case FetchAlerts:
		if ok, err := d.Admit(ctx); !ok {
			return d.denied(err)
		}
		d.trackFeature(ctx, "alerts")
		result, err := d.opts.Metrics.Alerts(ctx)
		if err != nil {
			logging.Warn("Dashboard", "Alerts fetch failed: %v", err)
			d.trackError(ctx, "prometheus_alerts_fetch_failed")
			return []Response{AlertsError{Message: err.Error()}}, nil
		}
		return []Response{AlertsUpdated{Data: result}}, nil

	case FetchLogs:
		d.trackFeature(ctx, "logs")
		return []Response{LogsUpdated{Data: sampleLogs(d.opts.Now())}}, nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, req)
	}
}

func (d *Dispatcher) denied(err error) ([]Response, error) {
	if err != nil {
		return nil, err
	}
	return []Response{AuthRequired{Message: AuthRequiredMessage}}, nil
}

func (d *Dispatcher) subject(ctx context.Context) string {
	if d.opts.Subject == nil {
		return ""
	}
	return d.opts.Subject(ctx)
}

func (d *Dispatcher) trackFeature(ctx context.Context, feature string) {
	if d.opts.Usage == nil {
		return
	}
	d.opts.Usage.LogEvent(ctx, d.subject(ctx), "feature_used", map[string]any{"feature": feature})
}

func (d *Dispatcher) trackError(ctx context.Context, kind string) {
	if d.opts.Usage == nil {
		return
	}
	d.opts.Usage.LogEvent(ctx, d.subject(ctx), "error_occurred", map[string]any{"error": kind})
}

// sampleLogs stands in for a log source; the metrics backend has none.
func sampleLogs(now time.Time) []string {
	return []string{
		fmt.Sprintf("[INFO] Application started at %s", now.UTC().Format(time.RFC3339)),
		"[INFO] Connected to database",
		"[WARN] High memory usage detected",
		"[INFO] Request processed in 45ms",
	}
}
