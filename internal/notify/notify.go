package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names the lifecycle events the notification service consumes.
type EventType string

const (
	EventOrderCreated        EventType = "ORDER_CREATED"
	EventPaymentCompleted    EventType = "PAYMENT_COMPLETED"
	EventPaymentFailed       EventType = "PAYMENT_FAILED"
	EventOrderConfirmed      EventType = "ORDER_CONFIRMED"
	EventOrderPreparing      EventType = "ORDER_PREPARING"
	EventOrderReady          EventType = "ORDER_READY"
	EventOrderOutForDelivery EventType = "ORDER_OUT_FOR_DELIVERY"
	EventOrderCompleted      EventType = "ORDER_COMPLETED"
	EventOrderCancelled      EventType = "ORDER_CANCELLED"
	EventRefundProcessed     EventType = "REFUND_PROCESSED"
)

// Event is the envelope published for every order lifecycle change.
// All events of one order share the partition key, so consumers see them in
// order.
type Event struct {
	EventID    string           `json:"event_id"`
	EventType  EventType        `json:"event_type"`
	OccurredAt time.Time        `json:"occurred_at"`
	OrderID    int64            `json:"order_id"`
	UserID     int64            `json:"user_id"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Reason     string           `json:"reason,omitempty"`
}

// NewEvent fills the envelope boilerplate.
func NewEvent(t EventType, orderID, userID int64) Event {
	return Event{
		EventID:    uuid.NewString(),
		EventType:  t,
		OccurredAt: time.Now().UTC(),
		OrderID:    orderID,
		UserID:     userID,
	}
}

// Notifier delivers events to the notification service. Delivery is
// fire-and-forget: publish errors are logged by the caller and never fail
// the originating request.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop discards events; used when the broker is disabled in config and in
// tests.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
