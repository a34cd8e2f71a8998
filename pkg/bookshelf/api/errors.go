package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, bookshelf.ErrValidation), errors.Is(err, bookshelf.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, bookshelf.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, bookshelf.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, bookshelf.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, bookshelf.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = http.StatusText(status)
	} else {
		slog.DebugContext(r.Context(), "Request rejected", "method", r.Method, "path", r.URL.Path,
			"status", status, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}
