package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind is the canonical commerce event vocabulary shared by every
// tracking destination.
type EventKind string

const (
	EventViewContent    EventKind = "ViewContent"
	EventAddToCart      EventKind = "AddToCart"
	EventRemoveFromCart EventKind = "RemoveFromCart"
	EventBeginCheckout  EventKind = "BeginCheckout"
	EventPurchase       EventKind = "Purchase"
	EventSearch         EventKind = "Search"
	EventSignUp         EventKind = "SignUp"
	EventLogin          EventKind = "Login"
	EventGenerateLead   EventKind = "GenerateLead"
	EventPageView       EventKind = "PageView"
	EventCustom         EventKind = "Custom"
)

// IsValid checks if the kind is part of the vocabulary
func (k EventKind) IsValid() bool {
	switch k {
	case EventViewContent,
		EventAddToCart,
		EventRemoveFromCart,
		EventBeginCheckout,
		EventPurchase,
		EventSearch,
		EventSignUp,
		EventLogin,
		EventGenerateLead,
		EventPageView,
		EventCustom:
		return true
	default:
		return false
	}
}

// IsRevenueCritical reports kinds that must not be emitted before tracking is live.
func (k EventKind) IsRevenueCritical() bool {
	return k == EventAddToCart || k == EventBeginCheckout || k == EventPurchase
}

// TrackingProduct is one line item as seen by analytics destinations.
type TrackingProduct struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category,omitempty"`
	Brand     string          `json:"brand,omitempty"`
	Variant   string          `json:"variant,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Currency  string          `json:"currency"`
	ListID    string          `json:"list_id,omitempty"`
	ListName  string          `json:"list_name,omitempty"`
	Index     *int            `json:"index,omitempty"`
}

// LineTotal returns UnitPrice x Quantity
func (p TrackingProduct) LineTotal() decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// TrackingUser is an optional identity bundle. Never logged in cleartext.
type TrackingUser struct {
	UserID    string `json:"user_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	ZipCode   string `json:"zip_code,omitempty"`
	Country   string `json:"country,omitempty"`
}

// TrackingEvent is the canonical envelope fanned out to destinations. EventID
// is shared by every destination for one logical occurrence.
type TrackingEvent struct {
	Kind       EventKind              `json:"kind"`
	Name       string                 `json:"name,omitempty"`
	EventID    string                 `json:"event_id"`
	OccurredAt int64                  `json:"occurred_at"`
	Currency   string                 `json:"currency"`
	Value      decimal.Decimal        `json:"value"`
	Items      []TrackingProduct      `json:"items"`
	User       *TrackingUser          `json:"-"`
	SourceURL  string                 `json:"source_url,omitempty"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}

// Time returns OccurredAt as a time.Time
func (e *TrackingEvent) Time() time.Time {
	return time.Unix(e.OccurredAt, 0).UTC()
}

// ContentIDs returns the product ids in item order
func (e *TrackingEvent) ContentIDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

// NumItems returns the sum of item quantities
func (e *TrackingEvent) NumItems() int {
	n := 0
	for _, item := range e.Items {
		n += item.Quantity
	}
	return n
}

// ExtraString returns a string-typed extra value, or ""
func (e *TrackingEvent) ExtraString(key string) string {
	if e.Extra == nil {
		return ""
	}
	if v, ok := e.Extra[key].(string); ok {
		return v
	}
	return ""
}
