package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"msgtree/internal/domain"
	"msgtree/internal/domain/models"
	"msgtree/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCursor), errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrTreeIntegrity):
		logger.Error("tree integrity violation", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "message tree is corrupt")
	case errors.Is(err, domain.ErrStoreUnavailable):
		logger.Error("store unavailable", "error", err)
		httputil.RespondError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		logger.Error("unhandled error", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// requireCaller fetches the authenticated caller or responds 401
func requireCaller(w http.ResponseWriter, r *http.Request) (models.Caller, bool) {
	caller, ok := httputil.GetCaller(r)
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "missing caller")
		return models.Caller{}, false
	}
	return caller, true
}
