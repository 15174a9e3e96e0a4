package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"vitals/internal/metrics"
	"vitals/internal/session"

	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderQueryResult_Vector(t *testing.T) {
	result := &metrics.QueryResult{
		Status: metrics.StatusSuccess,
		Data:   json.RawMessage(`{"resultType":"vector","result":[{"metric":{"__name__":"up","job":"api"},"value":[1700000000,"1"]}]}`),
	}
	var out bytes.Buffer
	require.NoError(t, RenderQueryResult(&out, result))
	assert.Contains(t, out.String(), `up{job="api"}`)
	assert.Contains(t, out.String(), "2023-11-14T22:13:20Z")
}

func TestRenderQueryResult_Empty(t *testing.T) {
	result := &metrics.QueryResult{
		Status: metrics.StatusSuccess,
		Data:   json.RawMessage(`{"resultType":"vector","result":[]}`),
	}
	var out bytes.Buffer
	require.NoError(t, RenderQueryResult(&out, result))
	assert.Contains(t, out.String(), "No series matched")
}

func TestRenderAlerts_FiringFirst(t *testing.T) {
	alerts := []metrics.Alert{
		{Labels: model.LabelSet{"alertname": "DiskLow"}, State: "pending"},
		{Labels: model.LabelSet{"alertname": "HighLatency", "severity": "page"}, State: "firing"},
	}
	var out bytes.Buffer
	RenderAlerts(&out, alerts)

	s := out.String()
	assert.Less(t, strings.Index(s, "HighLatency"), strings.Index(s, "DiskLow"))
}

func TestRenderAlerts_None(t *testing.T) {
	var out bytes.Buffer
	RenderAlerts(&out, nil)
	assert.Contains(t, out.String(), "No active alerts")
}

func TestRenderStatus(t *testing.T) {
	var out bytes.Buffer
	RenderStatus(&out, session.Status{
		SignedIn:      true,
		AuthCompleted: true,
		User:          &session.UserProfile{Login: "octocat", Email: "octo@example.com"},
	})
	assert.Contains(t, out.String(), "octocat")
	assert.Contains(t, out.String(), "octo@example.com")
}

func TestWriteStructured(t *testing.T) {
	v := map[string]any{"status": "success", "data": json.RawMessage(`{"alerts":[]}`)}

	var js bytes.Buffer
	require.NoError(t, WriteStructured(&js, OutputFormatJSON, v))
	assert.JSONEq(t, `{"status":"success","data":{"alerts":[]}}`, js.String())

	var y bytes.Buffer
	require.NoError(t, WriteStructured(&y, OutputFormatYAML, v))
	assert.Contains(t, y.String(), "status: success")
	assert.Contains(t, y.String(), "alerts: []")

	_, err := ParseOutputFormat("xml")
	assert.Error(t, err)
	f, err := ParseOutputFormat("")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatTable, f)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string truncated", "hello world this is a long string", 15, "hello world ..."},
		{"newlines collapsed", "hello\r\n\n world", 20, "hello world"},
		{"unicode kept whole", "héllo wörld", 8, "héllo..."},
		{"tiny limit clamped", "abcdef", 1, "a..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, truncate(tt.input, tt.maxLen))
		})
	}
}
