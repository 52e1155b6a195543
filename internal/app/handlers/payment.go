package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/curryleaf/orders/internal/auth"
	"github.com/curryleaf/orders/internal/domain/models"
	"github.com/curryleaf/orders/internal/service"
)

type InitiatePaymentRequest struct {
	OrderID int64 `json:"order_id" validate:"required,gt=0"`
}

type InitiatePaymentResponse struct {
	OrderID        int64  `json:"order_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	KeyID          string `json:"key_id"`
}

// InitiatePaymentHandler handles POST /api/payments/initiate. Retrying
// the same order returns the already open intent.
func InitiatePaymentHandler(log *slog.Logger, paymentService service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.InitiatePaymentHandler"
		logger := log.With(slog.String("op", op))

		var req InitiatePaymentRequest
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

		result, err := paymentService.Initiate(r.Context(), identity.UserID, req.OrderID)
		if err != nil {
			logger.Error("failed to initiate payment", slog.Any("error", err))
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, InitiatePaymentResponse{
			OrderID:        result.OrderID,
			GatewayOrderID: result.GatewayOrderID,
			Amount:         result.AmountMinor,
			Currency:       result.Currency,
			KeyID:          result.KeyID,
		})
	}
}

type VerifyPaymentRequest struct {
	GatewayOrderID   string `json:"gateway_order_id" validate:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
}

type VerifyPaymentResponse struct {
	Status string        `json:"status"`
	Order  *models.Order `json:"order"`
}

// VerifyPaymentHandler handles POST /api/payments/verify. The route is
// public: the HMAC signature is the authentication.
func VerifyPaymentHandler(log *slog.Logger, paymentService service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.VerifyPaymentHandler"
		logger := log.With(slog.String("op", op))

		var req VerifyPaymentRequest
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

		order, err := paymentService.Verify(r.Context(), req.GatewayOrderID, req.GatewayPaymentID, req.Signature)
		if err != nil {
			logger.Warn("payment verification failed", slog.Any("error", err))
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, VerifyPaymentResponse{Status: "verified", Order: order})
	}
}

type PaymentStatusRequest struct {
	OrderID int64 `json:"order_id" validate:"required,gt=0"`
}

type PaymentStatusResponse struct {
	OrderStatus       models.OrderStatus   `json:"order_status"`
	PaymentStatus     models.PaymentStatus `json:"payment_status"`
	TransactionStatus models.TxStatus      `json:"transaction_status,omitempty"`
	GatewayOrderID    string               `json:"gateway_order_id,omitempty"`
}

// PaymentStatusHandler handles POST /api/payments/check-status. Clients
// poll it when the checkout callback never arrived.
func PaymentStatusHandler(log *slog.Logger, paymentService service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.PaymentStatusHandler"
		logger := log.With(slog.String("op", op))

		var req PaymentStatusRequest
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

		result, err := paymentService.CheckStatus(r.Context(), identity.UserID, req.OrderID)
		if err != nil {
			logger.Error("failed to check payment status", slog.Any("error", err))
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, PaymentStatusResponse{
			OrderStatus:       result.OrderStatus,
			PaymentStatus:     result.PaymentStatus,
			TransactionStatus: result.TransactionStatus,
			GatewayOrderID:    result.GatewayOrderID,
		})
	}
}

type RefundRequest struct {
	OrderID int64  `json:"order_id" validate:"required,gt=0"`
	Amount  string `json:"amount" validate:"required"`
	Reason  string `json:"reason" validate:"required"`
}

type RefundResponse struct {
	TransactionID  int64           `json:"transaction_id"`
	RefundedAmount decimal.Decimal `json:"refunded_amount"`
	Status         models.TxStatus `json:"status"`
}

// RefundHandler handles POST /api/payments/refund (staff only).
func RefundHandler(log *slog.Logger, refundService service.RefundService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RefundHandler"
		logger := log.With(slog.String("op", op))

		var req RefundRequest
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

		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: "invalid amount"})
			return
		}

		transaction, err := refundService.Refund(r.Context(), req.OrderID, amount, req.Reason)
		if err != nil {
			logger.Error("failed to process refund", slog.Any("error", err))
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, RefundResponse{
			TransactionID:  transaction.ID,
			RefundedAmount: transaction.RefundedAmount,
			Status:         transaction.Status,
		})
	}
}
