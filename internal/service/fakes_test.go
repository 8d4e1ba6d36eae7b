package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/tracking"
)

type fakeOrderStore struct {
	mu        sync.Mutex
	nextID    int64
	orders    map[int64]*models.Order
	items     map[int64][]models.OrderItem
	processed map[string]string
	createErr error
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		nextID:    100,
		orders:    make(map[int64]*models.Order),
		items:     make(map[int64][]models.OrderItem),
		processed: make(map[string]string),
	}
}

func (f *fakeOrderStore) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, o := range f.orders {
		if order.IdempotencyKey != "" && o.IdempotencyKey == order.IdempotencyKey {
			return store.ErrDuplicateIdempotencyKey
		}
	}
	f.nextID++
	order.ID = f.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	stored := *order
	f.orders[order.ID] = &stored

	saved := make([]models.OrderItem, len(items))
	for i, it := range items {
		it.OrderID = order.ID
		it.ID = int64(i + 1)
		saved[i] = it
	}
	f.items[order.ID] = saved
	return nil
}

func (f *fakeOrderStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, store.ErrOrderNotFound)
	}
	out := *o
	return &out, nil
}

func (f *fakeOrderStore) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.IdempotencyKey == key {
			out := *o
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeOrderStore) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OrderItem(nil), f.items[orderID]...), nil
}

func (f *fakeOrderStore) FinalizeOrder(ctx context.Context, orderID int64, status, paymentStatus string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return false, store.ErrOrderNotFound
	}
	if o.Status != models.OrderStatusPending || o.PaymentStatus != models.PaymentStatusUnpaid {
		return false, nil
	}
	o.Status = status
	o.PaymentStatus = paymentStatus
	return true, nil
}

func (f *fakeOrderStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.processed[eventID]
	return ok, nil
}

func (f *fakeOrderStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed[eventID] = eventType
	return nil
}

func (f *fakeOrderStore) order(id int64) *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id]
}

func (f *fakeOrderStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type fakePaymentStore struct {
	mu       sync.Mutex
	payments []*models.Payment
}

func (f *fakePaymentStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment.ID = int64(len(f.payments) + 1)
	stored := *payment
	f.payments = append(f.payments, &stored)
	return nil
}

func (f *fakePaymentStore) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.payments) - 1; i >= 0; i-- {
		if f.payments[i].OrderID == orderID {
			out := *f.payments[i]
			return &out, nil
		}
	}
	return nil, store.ErrPaymentNotFound
}

func (f *fakePaymentStore) UpdatePaymentStatus(ctx context.Context, paymentID int64, status, providerTxID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ID == paymentID {
			p.Status = status
			p.ProviderTxID = providerTxID
			return nil
		}
	}
	return store.ErrPaymentNotFound
}

func (f *fakePaymentStore) latest(orderID int64) *models.Payment {
	p, err := f.GetPaymentByOrderID(context.Background(), orderID)
	if err != nil {
		return nil
	}
	return p
}

type fakeSettings struct{}

func (fakeSettings) ListGatewaySettings(ctx context.Context) ([]models.GatewaySettings, error) {
	return nil, nil
}

type fakeCarts struct {
	mu      sync.Mutex
	cleared []string
}

func (f *fakeCarts) ClearCart(ctx context.Context, cartID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, cartID)
	return nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (f *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return "", false, nil
	}
	f.held[key] = true
	return "token-" + key, true, nil
}

func (f *fakeLocker) ReleaseLock(ctx context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
	return nil
}

type trackCall struct {
	kind     models.EventKind
	products []models.TrackingProduct
	user     *models.TrackingUser
	params   *tracking.Params
}

type fakeTracker struct {
	mu    sync.Mutex
	calls []trackCall
	block chan struct{}
}

func (f *fakeTracker) Track(ctx context.Context, kind models.EventKind, products []models.TrackingProduct, user *models.TrackingUser, params *tracking.Params) (*models.TrackingEvent, tracking.Results, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, trackCall{kind: kind, products: products, user: user, params: params})
	return &models.TrackingEvent{Kind: kind, EventID: params.EventID}, nil, nil
}

func (f *fakeTracker) purchases() []trackCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []trackCall
	for _, c := range f.calls {
		if c.kind == models.EventPurchase {
			out = append(out, c)
		}
	}
	return out
}

type fakeGate struct {
	mu     sync.Mutex
	forced int
}

func (f *fakeGate) ForceReady(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced++
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) record(eventType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return nil
}

func (f *fakePublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return f.record(event.EventType)
}

func (f *fakePublisher) PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	return f.record(event.EventType)
}

func (f *fakePublisher) PublishPaymentInitiated(ctx context.Context, event *models.PaymentInitiatedEvent) error {
	return f.record(event.EventType)
}

func (f *fakePublisher) PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	return f.record(event.EventType)
}

func (f *fakePublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	return f.record(event.EventType)
}

func (f *fakePublisher) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

type fakeGateway struct {
	mu        sync.Mutex
	provider  string
	err       error
	verifyErr error
	requests  []*gateway.PaymentRequest
	verified  []gateway.CallbackData
}

func (f *fakeGateway) Provider() string { return f.provider }

func (f *fakeGateway) Initiate(ctx context.Context, req *gateway.PaymentRequest) (*gateway.PaymentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.PaymentResponse{
		Success:       true,
		PaymentURL:    "https://pay.example.com/session/" + req.OrderID,
		TransactionID: "TX-" + req.OrderID,
	}, nil
}

func (f *fakeGateway) Verify(ctx context.Context, data gateway.CallbackData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified = append(f.verified, data)
	return f.verifyErr
}

type fakeRegistry map[string]gateway.Gateway

func (r fakeRegistry) Get(providerID string) (gateway.Gateway, error) {
	if gw, ok := r[providerID]; ok {
		return gw, nil
	}
	return nil, &gateway.Error{Kind: gateway.KindConfig, Provider: providerID, Message: providerID + " is not enabled"}
}
