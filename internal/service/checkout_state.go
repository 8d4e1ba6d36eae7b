package service

import (
	"errors"

	"checkout-service/internal/models"
)

// CheckoutState is the position of one checkout in its lifecycle
type CheckoutState string

const (
	StateCartReview     CheckoutState = "CART_REVIEW"
	StateOrderCreated   CheckoutState = "ORDER_CREATED"
	StatePaymentPending CheckoutState = "PAYMENT_PENDING"
	StateCompleted      CheckoutState = "COMPLETED"
	StatePaid           CheckoutState = "PAID"
	StateFailed         CheckoutState = "FAILED"
	StateCancelled      CheckoutState = "CANCELLED"
)

var ErrInvalidTransition = errors.New("invalid checkout state transition")

// IsValid checks if the state is valid
func (s CheckoutState) IsValid() bool {
	switch s {
	case StateCartReview,
		StateOrderCreated,
		StatePaymentPending,
		StateCompleted,
		StatePaid,
		StateFailed,
		StateCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports states with no outgoing transition
func (s CheckoutState) IsTerminal() bool {
	switch s {
	case StateCompleted, StatePaid, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a state transition is valid
func (s CheckoutState) CanTransitionTo(next CheckoutState) bool {
	switch s {
	case StateCartReview:
		return next == StateOrderCreated
	case StateOrderCreated:
		return next == StatePaymentPending ||
			next == StateCompleted
	case StatePaymentPending:
		return next == StatePaid ||
			next == StateFailed ||
			next == StateCancelled
	default:
		return false
	}
}

// StateFromOrder derives the checkout state of a persisted order. The latest
// payment attempt, when known, separates Failed from Cancelled and
// OrderCreated from PaymentPending.
func StateFromOrder(order *models.Order, payment *models.Payment) CheckoutState {
	switch {
	case order.PaymentStatus == models.PaymentStatusPaid:
		return StatePaid
	case order.Status == models.OrderStatusCancelled:
		if payment != nil && payment.Status == models.PaymentAttemptCancelled {
			return StateCancelled
		}
		return StateFailed
	case order.PaymentMethod == models.ProviderCashOnDelivery:
		return StateCompleted
	case payment != nil && payment.Status == models.PaymentAttemptInitiated:
		return StatePaymentPending
	default:
		return StateOrderCreated
	}
}
