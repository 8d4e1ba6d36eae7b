package tracking

import (
	"context"
	"strings"
	"time"

	"checkout-service/internal/models"
)

// LayerQueue is the shared append-only queue read by the tag-management
// runtime.
type LayerQueue interface {
	Push(ctx context.Context, record map[string]interface{}) error
}

// DataLayer pushes flattened records onto a LayerQueue. It owns no network
// call of its own.
type DataLayer struct {
	queue LayerQueue
	now   func() time.Time
}

// NewDataLayer creates the web analytics layer destination
func NewDataLayer(queue LayerQueue) *DataLayer {
	return &DataLayer{queue: queue, now: time.Now}
}

// Name implements Destination
func (l *DataLayer) Name() string { return DestinationDataLayer }

// Init pushes the tag runtime bootstrap record.
func (l *DataLayer) Init(ctx context.Context) error {
	return l.queue.Push(ctx, map[string]interface{}{
		"event":     "gtm.js",
		"gtm.start": l.now().UnixMilli(),
	})
}

// Send implements Destination
func (l *DataLayer) Send(ctx context.Context, event *models.TrackingEvent) error {
	return l.queue.Push(ctx, Flatten(event))
}

var layerEventNames = map[models.EventKind]string{
	models.EventViewContent:    "view_item",
	models.EventAddToCart:      "add_to_cart",
	models.EventRemoveFromCart: "remove_from_cart",
	models.EventBeginCheckout:  "begin_checkout",
	models.EventPurchase:       "purchase",
	models.EventSearch:         "search",
	models.EventSignUp:         "sign_up",
	models.EventLogin:          "login",
	models.EventGenerateLead:   "generate_lead",
	models.EventPageView:       "page_view",
}

// LayerEventName returns the analytics-layer event name for event.
func LayerEventName(event *models.TrackingEvent) string {
	if name, ok := layerEventNames[event.Kind]; ok {
		return name
	}
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(event.Name), " ", "_"))
}

// Flatten renders event as a single data-layer record. Canonical fields win
// over keys of the same name in Extra.
func Flatten(event *models.TrackingEvent) map[string]interface{} {
	record := make(map[string]interface{}, len(event.Extra)+8)
	for k, v := range event.Extra {
		record[k] = v
	}

	items := make([]map[string]interface{}, 0, len(event.Items))
	for _, p := range event.Items {
		item := map[string]interface{}{
			"item_id":   p.ID,
			"item_name": p.Name,
			"price":     p.UnitPrice.InexactFloat64(),
			"quantity":  p.Quantity,
		}
		if p.Category != "" {
			item["item_category"] = p.Category
		}
		if p.Brand != "" {
			item["item_brand"] = p.Brand
		}
		if p.Variant != "" {
			item["item_variant"] = p.Variant
		}
		if p.ListID != "" {
			item["item_list_id"] = p.ListID
		}
		if p.ListName != "" {
			item["item_list_name"] = p.ListName
		}
		if p.Index != nil {
			item["index"] = *p.Index
		}
		items = append(items, item)
	}

	record["event"] = LayerEventName(event)
	record["timestamp"] = event.Time().Format(time.RFC3339)
	record["event_id"] = event.EventID
	record["currency"] = event.Currency
	record["value"] = event.Value.InexactFloat64()
	record["items"] = items
	if event.SourceURL != "" {
		record["page_location"] = event.SourceURL
	}
	if event.User != nil && event.User.UserID != "" {
		record["user_id"] = event.User.UserID
	}
	if event.Kind == models.EventPurchase {
		if tx := event.ExtraString("transaction_id"); tx != "" {
			record["transaction_id"] = tx
		} else if orderID, ok := event.Extra["order_id"]; ok {
			record["transaction_id"] = orderID
		}
	}
	return record
}
