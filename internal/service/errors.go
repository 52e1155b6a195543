package service

import (
	"errors"
	"fmt"
)

var (
	// ErrItemUnavailable means a cart line references an item, size or
	// add-on that is missing or switched off in the catalog at checkout.
	ErrItemUnavailable = errors.New("item is unavailable")
	// ErrNotOrderOwner means a customer acted on someone else's order.
	ErrNotOrderOwner = errors.New("order does not belong to user")
	// ErrOrderNotPayable means the order is past the payment stage.
	ErrOrderNotPayable = errors.New("order is not awaiting payment")
	// ErrNotRefundable means no captured or authorized transaction exists
	// for the order.
	ErrNotRefundable = errors.New("transaction is not refundable")
	// ErrRefundExceedsCapture means the requested amount, together with
	// prior refunds, is more than was ever captured.
	ErrRefundExceedsCapture = errors.New("refund amount exceeds captured amount")
	// ErrInvalidRefundAmount rejects zero or negative refund requests.
	ErrInvalidRefundAmount = errors.New("refund amount must be positive")
	// ErrInvalidCredentials covers every staff login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// OfferInvalidError aborts order creation when a supplied code fails
// validation. The reason is one of the offer validator's reason strings;
// the client may resubmit the cart without the code.
type OfferInvalidError struct {
	Reason string
}

func (e *OfferInvalidError) Error() string {
	return fmt.Sprintf("offer is not applicable: %s", e.Reason)
}
