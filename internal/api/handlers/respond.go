package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dom/bookshelf-api/internal/domain"
)

const (
	maxBodySize = 1 << 20

	// statusClientClosedRequest marks requests whose client went away before
	// the response was ready.
	statusClientClosedRequest = 499
)

var errEmptyBody = errors.New("request body is empty")

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v)
	if errors.Is(err, io.EOF) {
		return errEmptyBody
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// writeError maps an error from the service layer to a plain-text response.
// Only unexpected failures are logged above debug.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	switch {
	case errors.Is(err, domain.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrDuplicateEmail):
		http.Error(w, "Email already registered", http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidCredentials):
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, context.Canceled):
		slog.DebugContext(ctx, "request cancelled by client", "path", r.URL.Path)
		w.WriteHeader(statusClientClosedRequest)
	case errors.Is(err, domain.ErrPoolExhausted):
		slog.WarnContext(ctx, "store connection pool exhausted", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	default:
		slog.ErrorContext(ctx, "request failed", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
