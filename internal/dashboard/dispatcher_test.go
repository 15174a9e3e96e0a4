package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vitals/internal/metrics"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGate struct {
	allow bool
	err   error
	calls int
}

func (g *fakeGate) Enforce(context.Context) (bool, error) {
	g.calls++
	return g.allow, g.err
}

type fakeMetrics struct {
	result  *metrics.QueryResult
	err     error
	queries []string
	alerts  int
}

func (m *fakeMetrics) Query(_ context.Context, expr string) (*metrics.QueryResult, error) {
	m.queries = append(m.queries, expr)
	return m.result, m.err
}

func (m *fakeMetrics) Alerts(context.Context) (*metrics.QueryResult, error) {
	m.alerts++
	return m.result, m.err
}

func (m *fakeMetrics) BaseURL() string { return "http://localhost:9090" }

type usageRecorder struct {
	names []string
}

func (u *usageRecorder) LogEvent(_ context.Context, _ string, name string, _ map[string]any) {
	u.names = append(u.names, name)
}

func vectorResult(value string) *metrics.QueryResult {
	return &metrics.QueryResult{
		Status: metrics.StatusSuccess,
		Data:   json.RawMessage(`{"resultType":"vector","result":[{"metric":{},"value":[1,"` + value + `"]}]}`),
	}
}

func TestDispatcher_GateRunsOncePerActivation(t *testing.T) {
	g := &fakeGate{allow: true}
	m := &fakeMetrics{result: vectorResult("1")}
	d := NewDispatcher(Options{Gate: g, Metrics: m, Threshold: 5})

	for i := 0; i < 3; i++ {
		out, err := d.Handle(context.Background(), FetchMetrics{Query: "up"})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.IsType(t, MetricsUpdated{}, out[0])
	}
	assert.Equal(t, 1, g.calls)

	d.Revoke()
	_, err := d.Handle(context.Background(), FetchAlerts{})
	require.NoError(t, err)
	assert.Equal(t, 2, g.calls)
}

func TestDispatcher_DeniedNeverReachesBackend(t *testing.T) {
	g := &fakeGate{allow: false}
	m := &fakeMetrics{result: vectorResult("1")}
	d := NewDispatcher(Options{Gate: g, Metrics: m})

	out, err := d.Handle(context.Background(), FetchMetrics{Query: "up"})
	require.NoError(t, err)
	assert.Equal(t, []Response{AuthRequired{Message: AuthRequiredMessage}}, out)

	_, err = d.Handle(context.Background(), FetchAlerts{})
	require.NoError(t, err)

	assert.Empty(t, m.queries)
	assert.Equal(t, 0, m.alerts)
	assert.Equal(t, 2, g.calls)
}

func TestDispatcher_GateErrorPropagates(t *testing.T) {
	d := NewDispatcher(Options{Gate: &fakeGate{err: errors.New("prompt closed")}, Metrics: &fakeMetrics{}})

	_, err := d.Handle(context.Background(), FetchAlerts{})
	assert.EqualError(t, err, "prompt closed")
}

func TestDispatcher_UnprotectedRequests(t *testing.T) {
	g := &fakeGate{}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d := NewDispatcher(Options{Gate: g, Metrics: &fakeMetrics{}, DefaultURL: "http://localhost:9090", Now: func() time.Time { return now }})

	out, err := d.Handle(context.Background(), GetPrometheusURL{})
	require.NoError(t, err)
	assert.Equal(t, []Response{PrometheusURL{URL: "http://localhost:9090", IsDemoMode: true}}, out)

	out, err = d.Handle(context.Background(), FetchLogs{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	logs := out[0].(LogsUpdated)
	assert.Contains(t, logs.Data[0], "2024-05-01T12:00:00Z")
	assert.Equal(t, 0, g.calls)
}

func TestDispatcher_ErrorsBecomeReplies(t *testing.T) {
	u := &usageRecorder{}
	m := &fakeMetrics{err: &metrics.BackendError{Message: "invalid query"}}
	d := NewDispatcher(Options{Gate: &fakeGate{allow: true}, Metrics: m, Usage: u})

	out, err := d.Handle(context.Background(), FetchMetrics{Query: "bad("})
	require.NoError(t, err)
	assert.Equal(t, []Response{MetricsError{Message: "Prometheus API error: invalid query"}}, out)

	out, err = d.Handle(context.Background(), FetchAlerts{})
	require.NoError(t, err)
	assert.IsType(t, AlertsError{}, out[0])

	assert.Equal(t, []string{"feature_used", "error_occurred", "feature_used", "error_occurred"}, u.names)
}

func TestDispatcher_ThresholdAlert(t *testing.T) {
	d := NewDispatcher(Options{Gate: &fakeGate{allow: true}, Metrics: &fakeMetrics{result: vectorResult("9")}, Threshold: 5})

	out, err := d.Handle(context.Background(), FetchMetrics{Query: "rate(errors[5m])"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	alert, ok := out[1].(TriggerAlert)
	require.True(t, ok)
	assert.InDelta(t, 9.0, alert.Data.Value, 1e-9)
}

func TestCodec(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"command":"fetchMetrics","query":"up"}`))
	require.NoError(t, err)
	assert.Equal(t, FetchMetrics{Query: "up"}, req)

	_, err = DecodeRequest([]byte(`{"command":"deleteEverything"}`))
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = DecodeRequest([]byte(`not json`))
	assert.Error(t, err)

	b, err := EncodeResponse(PrometheusURL{URL: "http://x", IsDemoMode: false})
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"prometheusUrl","url":"http://x","isDemoMode":false}`, string(b))
}

func TestHandler(t *testing.T) {
	d := NewDispatcher(Options{Gate: &fakeGate{allow: true}, Metrics: &fakeMetrics{result: vectorResult("1")}})
	srv := httptest.NewServer(NewHandler(d))
	defer srv.Close()

	resp, err := http.Post(srv.URL+MessagesPath, "application/json", bytes.NewBufferString(`{"command":"fetchMetrics","query":"up"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, err = uuid.Parse(resp.Header.Get(RequestIDHeader))
	assert.NoError(t, err)

	var replies []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&replies))
	require.Len(t, replies, 1)
	assert.Equal(t, CmdUpdateMetrics, replies[0]["command"])

	bad, err := http.Post(srv.URL+MessagesPath, "application/json", bytes.NewBufferString(`{"command":"nope"}`))
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	get, err := http.Get(srv.URL + MessagesPath)
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+MessagesPath, bytes.NewBufferString(`{"command":"fetchLogs"}`))
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "req-123")
	echoed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	echoed.Body.Close()
	assert.Equal(t, "req-123", echoed.Header.Get(RequestIDHeader))
}
