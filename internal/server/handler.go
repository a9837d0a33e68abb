package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"ChordDHT/internal/api"
	"ChordDHT/internal/domain"
)

// errUnavailable aliases the shared sentinel so the middleware can wrap
// it without importing domain at every call site.
var errUnavailable = domain.ErrUnavailable

// writeJSON encodes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a classified error onto its HTTP status and attaches
// the message as a JSON body. Unclassified errors surface as 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrResourceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotResponsible):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrUnreachable):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRingInconsistent):
		status = http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, api.Error{Error: err.Error()})
}

// decodeJSON parses the request body into v, classifying failures as
// invalid requests.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidRequest
	}
	return nil
}
