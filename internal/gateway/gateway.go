package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Customer is the payer as known at checkout
type Customer struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email,omitempty"`
	Address  string `json:"address"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	PostCode string `json:"post_code,omitempty"`
	Country  string `json:"country,omitempty"`
}

// PaymentRequest asks a gateway to open a payment session for one order
type PaymentRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	OrderID    string          `json:"order_id"`
	Customer   Customer        `json:"customer"`
	SuccessURL string          `json:"success_url"`
	FailURL    string          `json:"fail_url"`
	CancelURL  string          `json:"cancel_url"`
}

// PaymentResponse is the outcome of an initiation. Success implies PaymentURL
// is set and the caller must redirect to it.
type PaymentResponse struct {
	Success       bool   `json:"success"`
	PaymentURL    string `json:"payment_url,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

// CallbackData is what a provider hands back on its success redirect
type CallbackData struct {
	OrderID       string
	TransactionID string
	ValidationID  string
	Amount        decimal.Decimal
}

// Gateway opens payment sessions with one external processor
type Gateway interface {
	Provider() string
	Initiate(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error)
}

// Verifier is implemented by gateways that can confirm a success callback
// with the provider before the order is marked paid.
type Verifier interface {
	Verify(ctx context.Context, data CallbackData) error
}

// ErrorKind classifies gateway failures
type ErrorKind string

const (
	KindConfig    ErrorKind = "config"
	KindTransport ErrorKind = "transport"
	KindProtocol  ErrorKind = "protocol"
)

// Error is a typed gateway failure. Message is safe to show to the payer.
type Error struct {
	Kind     ErrorKind
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s error: %s: %v", e.Provider, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s error: %s", e.Provider, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func configError(provider, message string) *Error {
	return &Error{Kind: KindConfig, Provider: provider, Message: message}
}

func transportError(provider, message string, err error) *Error {
	return &Error{Kind: KindTransport, Provider: provider, Message: message, Err: err}
}

func protocolError(provider, message string) *Error {
	return &Error{Kind: KindProtocol, Provider: provider, Message: message}
}

// IsKind reports whether err is a gateway error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Kind == kind
}

// FailureResponse renders err in the PaymentResponse failure shape
func FailureResponse(err error) *PaymentResponse {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return &PaymentResponse{Success: false, Error: gwErr.Message}
	}
	if err == nil {
		return &PaymentResponse{Success: false, Error: "payment initiation failed"}
	}
	return &PaymentResponse{Success: false, Error: err.Error()}
}
