package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated     = "ORDER_CREATED"
	EventTypeOrderCompleted   = "ORDER_COMPLETED"
	EventTypePaymentInitiated = "PAYMENT_INITIATED"
	EventTypeOrderPaid        = "ORDER_PAID"
	EventTypeOrderCancelled   = "ORDER_CANCELLED"
	EventTypePaymentCallback  = "PAYMENT_CALLBACK"
)

// Callback outcomes reported by a provider redirect
const (
	CallbackSuccess = "success"
	CallbackFail    = "fail"
	CallbackCancel  = "cancel"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent stamps a fresh id and the current time
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// OrderCreatedEvent published when checkout persists an order
type OrderCreatedEvent struct {
	BaseEvent
	OrderID       int64           `json:"order_id"`
	PaymentMethod string          `json:"payment_method"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	Items         []OrderItemData `json:"items"`
}

// OrderCompletedEvent published when a cash-on-delivery order is placed
type OrderCompletedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// PaymentInitiatedEvent published when a gateway accepted a payment session
type PaymentInitiatedEvent struct {
	BaseEvent
	OrderID  int64           `json:"order_id"`
	Provider string          `json:"provider"`
	TxID     string          `json:"tx_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// OrderPaidEvent published when payment succeeds
type OrderPaidEvent struct {
	BaseEvent
	OrderID  int64           `json:"order_id"`
	Provider string          `json:"provider"`
	Amount   decimal.Decimal `json:"amount"`
	TxID     string          `json:"tx_id"`
}

// OrderCancelledEvent published when a provider reports failure or cancellation
type OrderCancelledEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason"`
}

// PaymentCallbackEvent carries a provider redirect to the callback worker
type PaymentCallbackEvent struct {
	BaseEvent
	OrderID       int64             `json:"order_id"`
	Outcome       string            `json:"outcome"`
	TransactionID string            `json:"transaction_id,omitempty"`
	ValidationID  string            `json:"validation_id,omitempty"`
	Params        map[string]string `json:"params,omitempty"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
