package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/eoex/internal/api/response"
	"github.com/kiranshivaraju/eoex/internal/records"
	"github.com/kiranshivaraju/eoex/internal/store"
)

// writeServiceError maps a service error onto the error envelope. Storage
// failures are logged; their text never reaches the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case records.IsValidation(err):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, store.ErrDuplicateKey):
		response.Error(w, http.StatusConflict, "CONFLICT", "Resource already exists", nil)
	case errors.Is(err, store.ErrResourceExhausted):
		response.Error(w, http.StatusServiceUnavailable, "RESOURCE_EXHAUSTED",
			"Service is busy, retry later", nil)
	default:
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
