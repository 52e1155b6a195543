package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a customer order. Monetary fields are computed exclusively
// server-side; the invariant total = subtotal + gst + delivery - discount
// (clamped at zero) is established by the pricing package and preserved by
// never mutating the money columns after creation.
type Order struct {
	ID                  int64           `json:"id"`
	UserID              int64           `json:"user_id"`
	AddressID           int64           `json:"address_id"`
	OfferID             *int64          `json:"offer_id,omitempty"`
	Status              OrderStatus     `json:"status"`
	PaymentStatus       PaymentStatus   `json:"payment_status"`
	PaymentMethod       string          `json:"payment_method"`
	GatewayOrderID      *string         `json:"gateway_order_id,omitempty"`
	GatewayPaymentID    *string         `json:"gateway_payment_id,omitempty"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	GSTAmount           decimal.Decimal `json:"gst_amount"`
	DiscountAmount      decimal.Decimal `json:"discount_amount"`
	DeliveryCharge      decimal.Decimal `json:"delivery_charge"`
	TotalPrice          decimal.Decimal `json:"total_price"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	AddressSnapshot     json.RawMessage `json:"address_snapshot"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// AddOnSnapshot freezes an add-on's price at order time so later catalog
// edits cannot change what the customer agreed to pay.
type AddOnSnapshot struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// OrderItem is one order line with its catalog snapshot.
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ItemID    int64           `json:"item_id"`
	SizeID    int64           `json:"size_id"`
	ItemName  string          `json:"item_name"`
	SizeName  string          `json:"size_name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"` // size price at order time
	GSTRate   decimal.Decimal `json:"gst_rate"`   // category rate at order time, percent
	AddOns    []AddOnSnapshot `json:"add_ons,omitempty"`
	LineTotal decimal.Decimal `json:"line_total"`
}
