package metrics

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/common/model"
)

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// QueryResult is the response envelope returned by every endpoint.
type QueryResult struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data,omitempty"`
	ErrorType string          `json:"errorType,omitempty"`
	Error     string          `json:"error,omitempty"`
	Warnings  []string        `json:"warnings,omitempty"`
}

// QueryData is the decoded data section of an instant query.
type QueryData struct {
	ResultType model.ValueType
	Result     model.Value
}

// QueryData decodes the data section of a query response.
func (r *QueryResult) QueryData() (*QueryData, error) {
	var raw struct {
		ResultType model.ValueType `json:"resultType"`
		Result     json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(r.Data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	qd := &QueryData{ResultType: raw.ResultType}
	var target model.Value
	switch raw.ResultType {
	case model.ValVector:
		v := model.Vector{}
		if err := json.Unmarshal(raw.Result, &v); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		target = v
	case model.ValMatrix:
		m := model.Matrix{}
		if err := json.Unmarshal(raw.Result, &m); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		target = m
	case model.ValScalar:
		s := &model.Scalar{}
		if err := json.Unmarshal(raw.Result, s); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		target = s
	case model.ValString:
		s := &model.String{}
		if err := json.Unmarshal(raw.Result, s); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		target = s
	default:
		return nil, fmt.Errorf("%w: unknown result type %q", ErrMalformedResponse, raw.ResultType)
	}
	qd.Result = target
	return qd, nil
}

// Alert is one entry of the alerts endpoint.
type Alert struct {
	Labels      model.LabelSet `json:"labels"`
	Annotations model.LabelSet `json:"annotations"`
	State       string         `json:"state"`
	ActiveAt    *time.Time     `json:"activeAt,omitempty"`
	Value       string         `json:"value"`
}

// Name returns the alertname label.
func (a Alert) Name() string {
	return string(a.Labels[model.AlertNameLabel])
}

// Alerts decodes the data section of an alerts response.
func (r *QueryResult) Alerts() ([]Alert, error) {
	var data struct {
		Alerts []Alert `json:"alerts"`
	}
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return data.Alerts, nil
}
