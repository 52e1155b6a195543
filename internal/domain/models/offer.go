package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType selects how an offer's value is applied.
type DiscountType string

const (
	DiscountPercentage   DiscountType = "percentage"
	DiscountFlat         DiscountType = "flat"
	DiscountFreeDelivery DiscountType = "free_delivery"
)

// Offer is a discount code with its applicability constraints. Empty
// CategoryIDs/ItemIDs means the offer applies to any cart.
type Offer struct {
	ID             int64            `json:"id"`
	Code           string           `json:"code"`
	DiscountType   DiscountType     `json:"discount_type"`
	DiscountValue  decimal.Decimal  `json:"discount_value"`
	MaxDiscount    *decimal.Decimal `json:"max_discount,omitempty"`
	MinOrderValue  *decimal.Decimal `json:"min_order_value,omitempty"`
	FirstOrderOnly bool             `json:"first_order_only"`
	MaxUsesPerUser *int             `json:"max_uses_per_user,omitempty"`
	ValidFrom      *time.Time       `json:"valid_from,omitempty"`
	ValidTo        *time.Time       `json:"valid_to,omitempty"`
	CategoryIDs    []int64          `json:"category_ids,omitempty"`
	ItemIDs        []int64          `json:"item_ids,omitempty"`
	Active         bool             `json:"active"`
}
