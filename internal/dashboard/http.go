package dashboard

import (
	"encoding/json"
	"io"
	"net/http"

	"vitals/pkg/logging"

	"github.com/google/uuid"
)

// MessagesPath is where the bridge accepts requests.
const MessagesPath = "/messages"

// RequestIDHeader correlates a request with its log lines. A missing ID is
// generated and echoed back.
const RequestIDHeader = "X-Request-Id"

const maxMessageBytes = 1 << 20

// NewHandler exposes d over HTTP: POST a tagged request to /messages and
// receive a JSON array of tagged responses.
func NewHandler(d *Dispatcher) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(MessagesPath, func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "failed to read body")
			return
		}

		req, err := DecodeRequest(body)
		if err != nil {
			logging.Debug("Dashboard", "Rejected message %s: %v", requestID, err)
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		logging.Debug("Dashboard", "Handling %s (request %s)", req.Command(), requestID)
		replies, err := d.Handle(r.Context(), req)
		if err != nil {
			logging.Error("Dashboard", err, "Failed to handle %s (request %s)", req.Command(), requestID)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}

		encoded := make([]json.RawMessage, 0, len(replies))
		for _, reply := range replies {
			b, err := EncodeResponse(reply)
			if err != nil {
				logging.Error("Dashboard", err, "Failed to encode %s", reply.Command())
				writeJSONError(w, http.StatusInternalServerError, "internal error")
				return
			}
			encoded = append(encoded, b)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(encoded)
	})
	return mux
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
