package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	pkgerrors "github.com/campuspoints/loyalty-service/pkg/errors"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps the service sentinel errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pkgerrors.ErrUserNotFound),
		errors.Is(err, pkgerrors.ErrPromotionNotFound),
		errors.Is(err, pkgerrors.ErrEventNotFound),
		errors.Is(err, pkgerrors.ErrTransactionNotFound),
		errors.Is(err, pkgerrors.ErrResetTokenNotFound):
		status = http.StatusNotFound
	case errors.Is(err, pkgerrors.ErrInvalidInput),
		errors.Is(err, pkgerrors.ErrRelatedNotFound),
		errors.Is(err, pkgerrors.ErrPromotionInactive),
		errors.Is(err, pkgerrors.ErrPromotionAlreadyUsed),
		errors.Is(err, pkgerrors.ErrRecipientNotGuest),
		errors.Is(err, pkgerrors.ErrUnsupportedFilter),
		errors.Is(err, pkgerrors.ErrInsufficientPoints),
		errors.Is(err, pkgerrors.ErrInsufficientEventPoints),
		errors.Is(err, pkgerrors.ErrAlreadyProcessed),
		errors.Is(err, pkgerrors.ErrNotRedemption),
		errors.Is(err, pkgerrors.ErrEventFull),
		errors.Is(err, pkgerrors.ErrEventEnded),
		errors.Is(err, pkgerrors.ErrAlreadyGuest),
		errors.Is(err, pkgerrors.ErrEventPublished):
		status = http.StatusBadRequest
	case errors.Is(err, pkgerrors.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, pkgerrors.ErrForbidden),
		errors.Is(err, pkgerrors.ErrNotVerified):
		status = http.StatusForbidden
	case errors.Is(err, pkgerrors.ErrUserAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, pkgerrors.ErrResetTokenExpired):
		status = http.StatusGone
	case errors.Is(err, pkgerrors.ErrRateLimited):
		status = http.StatusTooManyRequests
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		writeJSON(w, status, errorResponse{Error: "internal server error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return pkgerrors.ErrInvalidInput
	}
	return nil
}
