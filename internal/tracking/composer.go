package tracking

import (
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownKind       = errors.New("unknown tracking event kind")
	ErrMissingCustomName = errors.New("custom event requires a name")
	ErrInvalidProduct    = errors.New("invalid tracking product")
)

// Params are the optional knobs of Compose.
type Params struct {
	// EventID overrides the generated id. Use it when the same occurrence
	// may be reported more than once.
	EventID string
	// Name is the event name for Custom events.
	Name string
	// Value overrides the item sum, e.g. for a delivery-adjusted total.
	Value      *decimal.Decimal
	Currency   string
	SourceURL  string
	OccurredAt time.Time
	Extra      map[string]interface{}
}

// Composer builds canonical TrackingEvents.
type Composer struct {
	currency string
	now      func() time.Time
	newID    func() string
}

// NewComposer creates a composer that falls back to defaultCurrency
func NewComposer(defaultCurrency string) *Composer {
	return &Composer{
		currency: defaultCurrency,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// Compose builds the envelope for one logical occurrence.
func (c *Composer) Compose(
	kind models.EventKind,
	products []models.TrackingProduct,
	user *models.TrackingUser,
	params *Params,
) (*models.TrackingEvent, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if params == nil {
		params = &Params{}
	}
	if kind == models.EventCustom && params.Name == "" {
		return nil, ErrMissingCustomName
	}

	currency := params.Currency
	if currency == "" && len(products) > 0 {
		currency = products[0].Currency
	}
	if currency == "" {
		currency = c.currency
	}

	items := make([]models.TrackingProduct, 0, len(products))
	value := decimal.Zero
	for i, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: item %d has no id", ErrInvalidProduct, i)
		}
		if p.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: item %s has negative price", ErrInvalidProduct, p.ID)
		}
		if p.Quantity < 1 {
			return nil, fmt.Errorf("%w: item %s has quantity %d", ErrInvalidProduct, p.ID, p.Quantity)
		}
		if p.Currency == "" {
			p.Currency = currency
		}
		items = append(items, p)
		value = value.Add(p.LineTotal())
	}
	if params.Value != nil {
		value = *params.Value
	}

	eventID := params.EventID
	if eventID == "" {
		eventID = c.newID()
	}

	occurredAt := params.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = c.now()
	}

	var extra map[string]interface{}
	if len(params.Extra) > 0 {
		extra = make(map[string]interface{}, len(params.Extra))
		for k, v := range params.Extra {
			extra[k] = v
		}
	}

	var u *models.TrackingUser
	if user != nil {
		copied := *user
		u = &copied
	}

	return &models.TrackingEvent{
		Kind:       kind,
		Name:       params.Name,
		EventID:    eventID,
		OccurredAt: occurredAt.Unix(),
		Currency:   currency,
		Value:      value,
		Items:      items,
		User:       u,
		SourceURL:  params.SourceURL,
		Extra:      extra,
	}, nil
}

// OrderEventID returns the stable event id of an order-scoped occurrence, so
// repeated emissions for one order deduplicate downstream.
func OrderEventID(kind models.EventKind, orderID int64) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:order:%d", kind, orderID))).String()
}
