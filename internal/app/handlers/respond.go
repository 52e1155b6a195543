package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/curryleaf/orders/internal/domain/models"
	"github.com/curryleaf/orders/internal/gateway"
	"github.com/curryleaf/orders/internal/service"
	"github.com/curryleaf/orders/internal/storage"
)

var validate = validator.New()

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", slog.Any("error", err))
	}
}

// writeServiceError maps domain sentinels onto HTTP statuses. Unknown
// errors become 500 without leaking internals.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	var offerErr *service.OfferInvalidError
	var gwErr *gateway.Error

	switch {
	case errors.As(err, &offerErr):
		writeJSON(w, log, http.StatusUnprocessableEntity, ErrorResponse{Error: "offer is not applicable", Reason: offerErr.Reason})
	case errors.Is(err, gateway.ErrSignatureMismatch):
		writeJSON(w, log, http.StatusBadRequest, ErrorResponse{Error: "signature verification failed"})
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, storage.ErrOrderLocked),
		errors.Is(err, service.ErrOrderNotPayable):
		writeJSON(w, log, http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrItemUnavailable),
		errors.Is(err, storage.ErrAddOnNotFound),
		errors.Is(err, service.ErrNotRefundable),
		errors.Is(err, service.ErrRefundExceedsCapture),
		errors.Is(err, service.ErrInvalidRefundAmount):
		writeJSON(w, log, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrOrderNotFound),
		errors.Is(err, storage.ErrAddressNotFound),
		errors.Is(err, storage.ErrTransactionNotFound),
		errors.Is(err, storage.ErrOfferNotFound),
		errors.Is(err, storage.ErrUserNotFound):
		writeJSON(w, log, http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, service.ErrNotOrderOwner):
		writeJSON(w, log, http.StatusForbidden, ErrorResponse{Error: "forbidden"})
	case errors.Is(err, service.ErrInvalidCredentials):
		writeJSON(w, log, http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
	case errors.As(err, &gwErr):
		writeJSON(w, log, http.StatusBadGateway, ErrorResponse{Error: "payment gateway error"})
	default:
		writeJSON(w, log, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
