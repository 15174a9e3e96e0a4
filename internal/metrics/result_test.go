package metrics

import (
	"encoding/json"
	"testing"

	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, body string) *QueryResult {
	t.Helper()
	var r QueryResult
	require.NoError(t, json.Unmarshal([]byte(body), &r))
	return &r
}

func TestQueryData_Shapes(t *testing.T) {
	vec := decode(t, successBody)
	data, err := vec.QueryData()
	require.NoError(t, err)
	assert.Equal(t, model.ValVector, data.ResultType)
	v, ok := data.Result.(model.Vector)
	require.True(t, ok)
	require.Len(t, v, 1)
	assert.Equal(t, model.LabelValue("api"), v[0].Metric["job"])

	mat := decode(t, `{"status":"success","data":{"resultType":"matrix","result":[{"metric":{"job":"api"},"values":[[1,"1"],[2,"2"]]}]}}`)
	data, err = mat.QueryData()
	require.NoError(t, err)
	m, ok := data.Result.(model.Matrix)
	require.True(t, ok)
	assert.Len(t, m[0].Values, 2)

	sc := decode(t, `{"status":"success","data":{"resultType":"scalar","result":[1,"7.5"]}}`)
	data, err = sc.QueryData()
	require.NoError(t, err)
	s, ok := data.Result.(*model.Scalar)
	require.True(t, ok)
	assert.Equal(t, model.SampleValue(7.5), s.Value)
}

func TestQueryData_Malformed(t *testing.T) {
	r := decode(t, `{"status":"success","data":{"resultType":"vector","result":"nope"}}`)
	_, err := r.QueryData()
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestErrorRateAlert(t *testing.T) {
	high := decode(t, `{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1,"7.2"]}]}}`)
	alert, ok := ErrorRateAlert(high, 5)
	require.True(t, ok)
	assert.Equal(t, HighErrorRateMessage, alert.Message)
	assert.InDelta(t, 7.2, alert.Value, 1e-9)

	low := decode(t, `{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1,"5"]}]}}`)
	_, ok = ErrorRateAlert(low, 5)
	assert.False(t, ok, "threshold is exclusive")

	empty := decode(t, `{"status":"success","data":{"resultType":"vector","result":[]}}`)
	_, ok = ErrorRateAlert(empty, 5)
	assert.False(t, ok)

	_, ok = ErrorRateAlert(nil, 5)
	assert.False(t, ok)
}
