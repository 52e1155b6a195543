package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// TxStatus is the gateway-side lifecycle of a payment attempt.
type TxStatus string

const (
	TxCreated    TxStatus = "created"
	TxAuthorized TxStatus = "authorized"
	TxCaptured   TxStatus = "captured"
	TxFailed     TxStatus = "failed"
	TxRefunded   TxStatus = "refunded"
)

// Live reports whether the attempt may still be completed by the gateway.
// At most one live transaction exists per order at a time.
func (s TxStatus) Live() bool {
	return s == TxCreated || s == TxAuthorized
}

// Refundable reports whether funds can be (partially) returned.
func (s TxStatus) Refundable() bool {
	return s == TxCaptured || s == TxAuthorized
}

// Transaction records one payment attempt against the gateway. Rows are
// append-mostly: a failed attempt is never rewritten into a success, a retry
// inserts a new row. Amount is immutable once persisted.
type Transaction struct {
	ID               int64           `json:"id"`
	OrderID          *int64          `json:"order_id,omitempty"`
	Gateway          string          `json:"gateway"`
	GatewayOrderID   string          `json:"gateway_order_id"`
	GatewayPaymentID *string         `json:"gateway_payment_id,omitempty"`
	Signature        *string         `json:"signature,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	RefundedAmount   decimal.Decimal `json:"refunded_amount"`
	Currency         string          `json:"currency"`
	Status           TxStatus        `json:"status"`
	Method           *string         `json:"method,omitempty"`
	ErrorCode        *string         `json:"error_code,omitempty"`
	ErrorDescription *string         `json:"error_description,omitempty"`
	Notes            json.RawMessage `json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
