package service

import (
	"context"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/tracking"
)

// OrderStore is the persistence the orchestrator needs for orders
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	FinalizeOrder(ctx context.Context, orderID int64, status, paymentStatus string) (bool, error)
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// PaymentStore records gateway attempts
type PaymentStore interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, paymentID int64, status, providerTxID string) error
}

// GatewaySettingsSource loads the admin-maintained provider rows
type GatewaySettingsSource interface {
	ListGatewaySettings(ctx context.Context) ([]models.GatewaySettings, error)
}

// CartStore owns the storefront cart
type CartStore interface {
	ClearCart(ctx context.Context, cartID string) error
}

// Locker provides short-lived exclusive locks
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// EventTracker composes and fans out tracking events
type EventTracker interface {
	Track(ctx context.Context, kind models.EventKind, products []models.TrackingProduct, user *models.TrackingUser, params *tracking.Params) (*models.TrackingEvent, tracking.Results, error)
}

// ActivationGate brings tracking destinations up on demand
type ActivationGate interface {
	ForceReady(ctx context.Context) error
}

// DomainEventPublisher publishes order lifecycle events
type DomainEventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error
	PublishPaymentInitiated(ctx context.Context, event *models.PaymentInitiatedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}
