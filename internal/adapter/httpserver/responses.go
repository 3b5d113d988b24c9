// Package httpserver contains HTTP handlers and middleware implementing
// the task submission and retrieval surface of spec.md §4.6.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/quantum-tasks/internal/domain"
)

// errorResponse is the wire shape spec.md §6 names for every non-2xx
// response: a short human-readable message, an optional field->reason
// details map for validation failures, and the request's correlation id.
type errorResponse struct {
	Error         string      `json:"error"`
	Details       interface{} `json:"details,omitempty"`
	CorrelationID string      `json:"correlation_id"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error to the HTTP status spec.md §7 assigns it:
// ErrInvalidArgument -> 400, ErrNotFound -> 404, ErrStorageUnavailable and
// ErrBrokerUnavailable -> 503, anything else -> 500.
func writeError(w http.ResponseWriter, _ *http.Request, err error, details interface{}, correlationID string) {
	code := http.StatusInternalServerError
	message := "Internal server error"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		code = http.StatusBadRequest
		message = "Validation failed"
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
		message = "Task not found"
	case errors.Is(err, domain.ErrStorageUnavailable):
		code = http.StatusServiceUnavailable
		message = "Storage unavailable"
	case errors.Is(err, domain.ErrBrokerUnavailable):
		code = http.StatusServiceUnavailable
		message = "Broker unavailable"
	}
	writeJSON(w, code, errorResponse{Error: message, Details: details, CorrelationID: correlationID})
}
