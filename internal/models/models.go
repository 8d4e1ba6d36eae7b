package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a customer order. Created by the persistence layer before
// payment starts; checkout only moves Status and PaymentStatus afterwards.
type Order struct {
	ID              int64           `db:"id" json:"id"`
	UserID          *int64          `db:"user_id" json:"user_id,omitempty"`
	CartID          string          `db:"cart_id" json:"cart_id"`
	Subtotal        decimal.Decimal `db:"subtotal" json:"subtotal"`
	DeliveryCharge  decimal.Decimal `db:"delivery_charge" json:"delivery_charge"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	Currency        string          `db:"currency" json:"currency"`
	Status          string          `db:"status" json:"status"`
	PaymentStatus   string          `db:"payment_status" json:"payment_status"`
	PaymentMethod   string          `db:"payment_method" json:"payment_method"`
	CustomerName    string          `db:"customer_name" json:"customer_name"`
	CustomerPhone   string          `db:"customer_phone" json:"customer_phone"`
	CustomerEmail   string          `db:"customer_email" json:"customer_email,omitempty"`
	ShippingAddress string          `db:"shipping_address" json:"shipping_address"`
	City            string          `db:"city" json:"city,omitempty"`
	State           string          `db:"state" json:"state,omitempty"`
	ZipCode         string          `db:"zip_code" json:"zip_code,omitempty"`
	Country         string          `db:"country" json:"country,omitempty"`
	IdempotencyKey  string          `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem represents items in an order
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	ProductID string          `db:"product_id" json:"product_id"`
	Name      string          `db:"name" json:"name"`
	Category  string          `db:"category" json:"category,omitempty"`
	Brand     string          `db:"brand" json:"brand,omitempty"`
	Variant   string          `db:"variant" json:"variant,omitempty"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Quantity  int             `db:"quantity" json:"quantity"`
}

// Payment represents one gateway initiation attempt for an order
type Payment struct {
	ID           int64           `db:"id" json:"id"`
	OrderID      int64           `db:"order_id" json:"order_id"`
	Provider     string          `db:"provider" json:"provider"`
	Status       string          `db:"status" json:"status"`
	ProviderTxID string          `db:"provider_tx_id" json:"provider_tx_id,omitempty"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCancelled  = "cancelled"
)

// Order payment statuses
const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
)

// Payment attempt statuses
const (
	PaymentAttemptInitiated = "INITIATED"
	PaymentAttemptFailed    = "FAILED"
	PaymentAttemptSucceeded = "SUCCEEDED"
	PaymentAttemptCancelled = "CANCELLED"
)

// Provider identifiers
const (
	ProviderSSLCommerz     = "sslcommerz"
	ProviderBkash          = "bkash"
	ProviderCashOnDelivery = "cod"
)

// GatewaySettings is one payment provider's record as maintained by the admin
// console. Read-only for checkout.
type GatewaySettings struct {
	ProviderID  string      `db:"provider_id" json:"provider_id"`
	Enabled     bool        `db:"enabled" json:"enabled"`
	SandboxMode bool        `db:"sandbox_mode" json:"sandbox_mode"`
	BaseURL     string      `db:"base_url" json:"base_url,omitempty"`
	Credentials Credentials `db:"credentials" json:"-"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// Credentials is stored as a JSONB object of string values.
type Credentials map[string]string

// Get returns the first non-empty value among keys
func (c Credentials) Get(keys ...string) string {
	for _, k := range keys {
		if v := c[k]; v != "" {
			return v
		}
	}
	return ""
}

// Value implements driver.Valuer
func (c Credentials) Value() (driver.Value, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner
func (c *Credentials) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*c = Credentials{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported credentials type %T", src)
	}

	out := Credentials{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("failed to decode credentials: %w", err)
	}
	*c = out
	return nil
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
