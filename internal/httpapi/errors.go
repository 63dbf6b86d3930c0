package httpapi

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"

	"oxpilot/internal/manager"
	"oxpilot/internal/stream"
	"oxpilot/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusOf maps err to its HTTP status, 500 when it carries none.
func statusOf(err error) int {
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeError writes err as a JSON error body with its status code.
func writeError(w http.ResponseWriter, err error) {
	var ce manager.CapacityError
	if errors.As(err, &ce) {
		IncrementBackpressure(ce.Reason)
		w.Header().Set("Retry-After", "1")
	}
	writeErrorDetail(w, stream.ErrorDetail(err))
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	kind := "server_error"
	if status < http.StatusInternalServerError {
		kind = "invalid_request_error"
	}
	writeErrorDetail(w, types.ErrorDetail{Message: msg, Type: kind, Code: status})
}

func writeErrorDetail(w http.ResponseWriter, d types.ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(d.Code)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: d})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}
