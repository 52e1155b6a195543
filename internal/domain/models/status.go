package models

import "errors"

// OrderStatus is the order's position in the fulfillment lifecycle.
type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "pending_payment"
	StatusPending        OrderStatus = "pending"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusReady          OrderStatus = "ready"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusCompleted      OrderStatus = "completed"
	StatusCancelled      OrderStatus = "cancelled"
)

// PaymentStatus tracks the money side of an order, separately from fulfillment.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

// Payment methods accepted at order creation.
const (
	PaymentMethodOnline = "online"
	PaymentMethodCOD    = "cod"
)

// Actor identifies who is requesting a state change.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorStaff    Actor = "staff"
)

// ErrInvalidTransition is returned when a requested status change is not in
// the transition table. The order must be left untouched by the caller.
var ErrInvalidTransition = errors.New("illegal order status transition")

// validNext is the single authority for legal forward transitions.
// cancelled is handled separately via CanCancel because it is actor-dependent.
var validNext = map[OrderStatus]map[OrderStatus]bool{
	StatusPendingPayment: {StatusPending: true},
	StatusPending:        {StatusConfirmed: true},
	StatusConfirmed:      {StatusPreparing: true},
	StatusPreparing:      {StatusReady: true},
	StatusReady:          {StatusOutForDelivery: true},
	StatusOutForDelivery: {StatusCompleted: true},
	StatusCompleted:      {},
	StatusCancelled:      {},
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether from -> to is a legal forward transition.
// Cancellation is not a forward transition; use CanCancel.
func CanTransition(from, to OrderStatus) bool {
	if to == StatusCancelled {
		return false
	}
	return validNext[from][to]
}

// CanCancel reports whether the actor may cancel an order in the given status.
// Staff may cancel any non-terminal order; customers only before payment.
func CanCancel(from OrderStatus, actor Actor) bool {
	if from.Terminal() {
		return false
	}
	if actor == ActorStaff {
		return true
	}
	return from == StatusPendingPayment
}

// Transition validates and returns the target status, or ErrInvalidTransition.
func Transition(from, to OrderStatus) (OrderStatus, error) {
	if !CanTransition(from, to) {
		return from, ErrInvalidTransition
	}
	return to, nil
}
