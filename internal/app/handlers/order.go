package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/curryleaf/orders/internal/auth"
	"github.com/curryleaf/orders/internal/domain/models"
	"github.com/curryleaf/orders/internal/service"
)

// CreateOrderItem is one requested cart line; prices are not accepted from
// the client.
type CreateOrderItem struct {
	ItemSizeID int64   `json:"item_size_id" validate:"required,gt=0"`
	Quantity   int     `json:"quantity" validate:"required,gte=1"`
	AddOnIDs   []int64 `json:"add_on_ids"`
}

type CreateOrderRequest struct {
	AddressID           int64             `json:"address_id" validate:"required,gt=0"`
	Items               []CreateOrderItem `json:"items" validate:"required,min=1,dive"`
	OfferCode           string            `json:"offer_code"`
	PaymentMethod       string            `json:"payment_method" validate:"omitempty,oneof=online cod"`
	SpecialInstructions string            `json:"special_instructions"`
}

type OrderResponse struct {
	Order *models.Order       `json:"order"`
	Items []*models.OrderItem `json:"items"`
}

// CreateOrderHandler handles POST /api/orders.
func CreateOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		var req CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: "validation error", Reason: err.Error()})
			return
		}

		identity, ok := auth.FromContext(r.Context())
		if !ok {
			logger.Error("identity not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		paymentMethod := req.PaymentMethod
		if paymentMethod == "" {
			paymentMethod = models.PaymentMethodOnline
		}
		input := service.CreateOrderInput{
			AddressID:           req.AddressID,
			OfferCode:           req.OfferCode,
			PaymentMethod:       paymentMethod,
			SpecialInstructions: req.SpecialInstructions,
		}
		for _, item := range req.Items {
			input.Lines = append(input.Lines, service.CreateOrderLine{
				ItemSizeID: item.ItemSizeID,
				Quantity:   item.Quantity,
				AddOnIDs:   item.AddOnIDs,
			})
		}

		created, err := orderService.CreateOrder(r.Context(), identity.UserID, input)
		if err != nil {
			logger.Error("failed to create order", slog.Any("error", err))
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusCreated, OrderResponse{Order: created.Order, Items: created.Items})
	}
}

// GetOrderHandler handles GET /api/orders/{id}.
func GetOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetOrderHandler"
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

		found, err := orderService.GetOrder(r.Context(), identity.UserID, orderID)
		if err != nil {
			logger.Error("failed to get order", slog.Any("error", err))
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, OrderResponse{Order: found.Order, Items: found.Items})
	}
}
