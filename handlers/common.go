package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"ember/emberr"
)

// ErrorResponse is the envelope for failed requests.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Kind    string `json:"kind"`
	Error   string `json:"error"`
}

// WriteJSON encodes v as the response body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// SendError maps an operation error onto an HTTP status via its kind and
// writes the error envelope.
func SendError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := emberr.KindOf(err)
	logger.Warn("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"kind", kind.String(),
		"error", err)

	WriteJSON(w, kind.HTTPStatus(), ErrorResponse{
		Kind:  kind.String(),
		Error: err.Error(),
	})
}

// DecodeJSON reads the request body into v.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return emberr.NewValidationFailure("handlers.decode", fmt.Errorf("invalid request body: %w", err))
	}
	return nil
}

// RequireField validates that a request field is present.
func RequireField(name, value string) error {
	if value == "" {
		return emberr.NewValidationFailure("handlers.validate", errors.New("missing required field "+name))
	}
	return nil
}
