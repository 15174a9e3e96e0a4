package dashboard

import (
	"encoding/json"
	"fmt"
)

type envelope struct {
	Command string `json:"command"`
}

// DecodeRequest parses a tagged JSON request.
func DecodeRequest(b []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	switch env.Command {
	case CmdGetPrometheusURL:
		return GetPrometheusURL{}, nil
	case CmdFetchMetrics:
		var req FetchMetrics
		if err := json.Unmarshal(b, &req); err != nil {
			return nil, fmt.Errorf("invalid %s message: %w", env.Command, err)
		}
		return req, nil
	case CmdFetchAlerts:
		return FetchAlerts{}, nil
	case CmdFetchLogs:
		return FetchLogs{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Command)
	}
}

// EncodeResponse renders a response as JSON with its command tag.
func EncodeResponse(r Response) (json.RawMessage, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	cmd, err := json.Marshal(r.Command())
	if err != nil {
		return nil, err
	}
	fields["command"] = cmd
	return json.Marshal(fields)
}
