package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jumpdesk/deskbridge/pkg/coordinator"
)

// mapCoordinatorError maps coordinator sentinels to an HTTP status and a
// client-safe message.
func mapCoordinatorError(err error) (int, string) {
	switch {
	case errors.Is(err, coordinator.ErrNotFound):
		return http.StatusNotFound, "request not found"
	case errors.Is(err, coordinator.ErrRetryConflict):
		return http.StatusConflict, "request is not in a terminal state"
	case errors.Is(err, coordinator.ErrAlreadyRegistered):
		return http.StatusConflict, "request already exists"
	case errors.Is(err, coordinator.ErrShuttingDown):
		return http.StatusServiceUnavailable, "service is shutting down"
	}

	slog.Error("Unexpected coordinator error", "error", err)
	return http.StatusInternalServerError, "internal server error"
}
