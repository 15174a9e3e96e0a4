package metrics

import "github.com/prometheus/common/model"

// ThresholdAlert describes a query result that crossed a threshold.
type ThresholdAlert struct {
	Message string  `json:"message"`
	Value   float64 `json:"value"`
}

// HighErrorRateMessage is the message carried by ErrorRateAlert.
const HighErrorRateMessage = "High error rate detected"

// ErrorRateAlert inspects the first sample of a vector or scalar result and
// returns an alert when it exceeds threshold. Other shapes never alert.
func ErrorRateAlert(result *QueryResult, threshold float64) (*ThresholdAlert, bool) {
	if result == nil || result.Status != StatusSuccess {
		return nil, false
	}
	data, err := result.QueryData()
	if err != nil {
		return nil, false
	}

	var value model.SampleValue
	switch v := data.Result.(type) {
	case model.Vector:
		if len(v) == 0 {
			return nil, false
		}
		value = v[0].Value
	case *model.Scalar:
		value = v.Value
	default:
		return nil, false
	}

	f := float64(value)
	if f > threshold {
		return &ThresholdAlert{Message: HighErrorRateMessage, Value: f}, true
	}
	return nil, false
}
