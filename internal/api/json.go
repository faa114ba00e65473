package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/nodeql/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusFor maps the error taxonomy to HTTP status codes. ok is false for
// errors that are not the caller's fault.
func statusFor(err error) (status int, ok bool) {
	switch {
	case errors.Is(err, apperr.ErrUnknownType), errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, apperr.ErrUnknownFieldPath),
		errors.Is(err, apperr.ErrTypeMismatch),
		errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, true
	case errors.Is(err, apperr.ErrCancelled):
		return http.StatusGatewayTimeout, true
	case errors.Is(err, apperr.ErrNotReady):
		return http.StatusServiceUnavailable, true
	}
	return http.StatusInternalServerError, false
}

// writeError writes err with its mapped status. Unexpected errors are logged
// and hidden from the client.
func writeError(w http.ResponseWriter, op string, err error) {
	status, ok := statusFor(err)
	if !ok {
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, status, errorBody("internal error"))
		return
	}
	writeJSON(w, status, errorBody(err.Error()))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body: "+err.Error()))
		return false
	}
	return true
}
