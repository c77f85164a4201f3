// Maps service errors to API errors and writes error responses.

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/inshira2021/producerhub/internal/blobdb"
	"github.com/inshira2021/producerhub/internal/catalog"
	"github.com/inshira2021/producerhub/internal/playback"
	"github.com/inshira2021/producerhub/internal/producer"
	"github.com/inshira2021/producerhub/internal/server/dto"
)

// ToAPIError converts a service error into an error carrying an HTTP status.
// Errors that already carry one are returned unchanged. Unknown errors become
// a 500 with a generic message; the cause stays available for logging.
func ToAPIError(err error) dto.ErrorWithStatus {
	var ews dto.ErrorWithStatus
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ews):
		return ews
	case producer.IsCapacityExceeded(err):
		return dto.CapacityExceeded().Wrap(err)
	case errors.Is(err, blobdb.ErrUpgradeBlocked):
		return dto.UpgradeBlocked().Wrap(err)
	case errors.Is(err, catalog.ErrMovieNotFound):
		return dto.NotFound("movie").Wrap(err)
	case errors.Is(err, catalog.ErrTrailerNotFound):
		return dto.NotFound("trailer").Wrap(err)
	case errors.Is(err, catalog.ErrRecordNotFound):
		return dto.NotFound("record").Wrap(err)
	case errors.Is(err, playback.ErrNotFound):
		return dto.NotFound("handle").Wrap(err)
	case errors.Is(err, producer.ErrValidation), errors.Is(err, catalog.ErrInvalid):
		return dto.BadRequest(err.Error()).Wrap(err)
	default:
		return dto.InternalWithError("Internal server error", err)
	}
}

// writeErrorResponse writes err as a JSON error response.
// Use this in raw http.HandlerFunc handlers that don't use server.Wrap.
func writeErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	ews := ToAPIError(err)
	level := slog.LevelWarn
	if ews.StatusCode() >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "Handler error", "err", err, "statusCode", ews.StatusCode(), "code", ews.Code())
	WriteError(w, ews)
}

// WriteError writes the client-facing part of ews as a JSON response.
func WriteError(w http.ResponseWriter, ews dto.ErrorWithStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ews.StatusCode())
	resp := dto.ErrorResponse{
		Error:   dto.ErrorDetails{Code: ews.Code(), Message: ews.Message()},
		Details: ews.Details(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode error response", "err", err)
	}
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}
