package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/bistro-cache/internal/media"
	"github.com/Sternrassler/bistro-cache/internal/store"
	"github.com/Sternrassler/bistro-cache/pkg/coalesce"
	"github.com/Sternrassler/bistro-cache/pkg/imaging"
	"github.com/rs/zerolog/hlog"
)

// ErrBadRequest marks malformed request input.
var ErrBadRequest = errors.New("bad request")

var (
	errNotPositive = errors.New("must be a positive integer")
	errPageRange   = errors.New("is out of range")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps an error to the HTTP status it is reported with.
func statusFor(err error) int {
	switch {
	case errors.Is(err, coalesce.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, store.ErrNotFound), errors.Is(err, media.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, store.ErrInvalid),
		errors.Is(err, media.ErrInvalidName),
		errors.Is(err, imaging.ErrUnknownPreset):
		return http.StatusBadRequest
	case errors.Is(err, media.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.Canceled):
		return 499 // client closed request
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and reports it as a JSON error body. Internal errors
// are not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := hlog.FromRequest(r)

	msg := err.Error()
	switch {
	case status == http.StatusGatewayTimeout:
		logger.Error().Err(err).Msg("Backend computation timed out")
		msg = "upstream computation timed out"
	case status >= http.StatusInternalServerError:
		logger.Error().Err(err).Msg("Request failed")
		msg = http.StatusText(status)
	case status == 499:
		logger.Debug().Err(err).Msg("Client went away")
	default:
		logger.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}

	writeJSON(w, r, status, errorBody{Error: msg})
}

// writeJSON writes v without an entity tag. Used for write responses and errors.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Failed to write response")
	}
}
