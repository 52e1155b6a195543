package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/curryleaf/orders/internal/auth"
	"github.com/curryleaf/orders/internal/domain/models"
	"github.com/curryleaf/orders/internal/service"
)

// CancelOrderHandler handles POST /api/orders/{id}/cancel. The caller's
// role decides the cancellation window: customers only before payment,
// staff any non-terminal order.
func CancelOrderHandler(log *slog.Logger, cancelService service.CancellationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CancelOrderHandler"
		logger := log.With(slog.String("op", op))

		orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || orderID <= 0 {
			writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: "invalid order id"})
			return
		}

		identity, ok := auth.FromContext(r.Context())
		if !ok {
			logger.Error("identity not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		actor := models.ActorCustomer
		if identity.Role == models.RoleStaff {
			actor = models.ActorStaff
		}

		order, err := cancelService.Cancel(r.Context(), orderID, identity.UserID, actor)
		if err != nil {
			logger.Error("failed to cancel order", slog.Any("error", err))
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, order)
	}
}
