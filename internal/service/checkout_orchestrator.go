package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
	"checkout-service/internal/tracking"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrEmptyCart                = errors.New("cart is empty")
	ErrInvalidQuantity          = errors.New("item quantity must be at least 1")
	ErrInvalidPrice             = errors.New("item price must not be negative")
	ErrMissingCustomer          = errors.New("customer name, phone and address are required")
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")
	ErrCheckoutInProgress       = errors.New("checkout already in progress")
	ErrCallbackInProgress       = errors.New("payment callback already in progress")
	ErrUnknownOutcome           = errors.New("unknown payment callback outcome")
	ErrNotOnlineOrder           = errors.New("order was not placed with an online payment method")
)

// CheckoutConfig holds the fixed business parameters of checkout
type CheckoutConfig struct {
	DeliveryCharge decimal.Decimal
	Currency       string
	// PublicURL is where providers redirect the browser back to
	PublicURL string
	LockTTL   time.Duration
}

// CheckoutItem is one cart line submitted at checkout
type CheckoutItem struct {
	ProductID string          `json:"product_id" binding:"required"`
	Name      string          `json:"name"`
	Category  string          `json:"category,omitempty"`
	Brand     string          `json:"brand,omitempty"`
	Variant   string          `json:"variant,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// CustomerInfo is the buyer and shipping destination
type CustomerInfo struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
	Country string `json:"country,omitempty"`
}

// CheckoutRequest represents a request to place an order
type CheckoutRequest struct {
	CartID         string         `json:"cart_id"`
	UserID         *int64         `json:"user_id,omitempty"`
	Items          []CheckoutItem `json:"items"`
	PaymentMethod  string         `json:"payment_method" binding:"required"`
	Customer       CustomerInfo   `json:"customer"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	SourceURL      string         `json:"source_url,omitempty"`
	Fbp            string         `json:"fbp,omitempty"`
	Fbc            string         `json:"fbc,omitempty"`
	ClientIP       string         `json:"-"`
	UserAgent      string         `json:"-"`
}

// CheckoutResult is the outcome of a checkout or a callback
type CheckoutResult struct {
	OrderID       int64           `json:"order_id"`
	State         CheckoutState   `json:"state"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	Total         decimal.Decimal `json:"total"`
	PaymentURL    string          `json:"payment_url,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// CallbackInput is a provider redirect after payment
type CallbackInput struct {
	OrderID       int64
	Outcome       string
	TransactionID string
	ValidationID  string
}

// CheckoutOrchestrator sequences order creation, payment initiation and the
// terminal tracking event of a checkout.
type CheckoutOrchestrator struct {
	orders    OrderStore
	payments  *PaymentService
	carts     CartStore
	locker    Locker
	tracker   EventTracker
	gate      ActivationGate
	publisher DomainEventPublisher
	cfg       CheckoutConfig
	logger    *zap.Logger

	background sync.WaitGroup
}

// NewCheckoutOrchestrator creates a new checkout orchestrator
func NewCheckoutOrchestrator(
	orders OrderStore,
	payments *PaymentService,
	carts CartStore,
	locker Locker,
	tracker EventTracker,
	gate ActivationGate,
	publisher DomainEventPublisher,
	cfg CheckoutConfig,
) *CheckoutOrchestrator {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	cfg.PublicURL = strings.TrimSuffix(cfg.PublicURL, "/")

	return &CheckoutOrchestrator{
		orders:    orders,
		payments:  payments,
		carts:     carts,
		locker:    locker,
		tracker:   tracker,
		gate:      gate,
		publisher: publisher,
		cfg:       cfg,
		logger:    util.GetLogger(),
	}
}

// Checkout places an order. Cash on delivery completes synchronously; online
// methods end in PaymentPending with a URL the caller must redirect to. A
// gateway failure leaves the order pending/unpaid and returns the result
// together with the typed gateway error.
func (o *CheckoutOrchestrator) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutOrchestrator.Checkout")
	defer span.End()

	if err := validateCheckout(req); err != nil {
		util.CheckoutFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}

	lockKey := "checkout:" + req.IdempotencyKey
	token, ok, err := o.locker.AcquireLock(ctx, lockKey, o.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire checkout lock: %w", err)
	}
	if !ok {
		return nil, ErrCheckoutInProgress
	}
	defer func() {
		if err := o.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			o.logger.Error("Failed to release checkout lock", zap.String("key", lockKey), zap.Error(err))
		}
	}()

	existing, err := o.orders.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		o.logger.Info("Duplicate checkout request detected",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Int64("order_id", existing.ID))
		return o.resume(ctx, existing)
	}

	online := req.PaymentMethod != models.ProviderCashOnDelivery

	// gateway settings are read once per checkout; an unusable provider is
	// rejected before any order exists
	var registry GatewayRegistry
	if online {
		registry, err = o.payments.Registry(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := registry.Get(req.PaymentMethod); err != nil {
			util.CheckoutFailedTotal.WithLabelValues("gateway_config").Inc()
			return &CheckoutResult{
				State: StateCartReview,
				Error: gateway.FailureResponse(err).Error,
			}, err
		}
	}

	order, items := o.buildOrder(req)

	state := StateCartReview
	if err := o.orders.CreateOrder(ctx, order, items); err != nil {
		util.CheckoutFailedTotal.WithLabelValues("persistence").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	state = o.advance(state, StateOrderCreated, order.ID)

	util.OrdersCreatedTotal.WithLabelValues(order.PaymentMethod).Inc()
	o.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("payment_method", order.PaymentMethod),
		zap.String("total", order.TotalAmount.StringFixed(2)))

	o.publishOrderCreated(ctx, order, items)

	if !online {
		return o.completeCashOnDelivery(ctx, state, order, items, req)
	}
	return o.initiatePayment(ctx, state, registry, order)
}

func (o *CheckoutOrchestrator) completeCashOnDelivery(
	ctx context.Context,
	state CheckoutState,
	order *models.Order,
	items []models.OrderItem,
	req *CheckoutRequest,
) (*CheckoutResult, error) {
	o.trackPurchase(ctx, order, items, requestExtra(req))
	o.clearCart(ctx, order)

	event := &models.OrderCompletedEvent{
		BaseEvent:   models.NewBaseEvent(models.EventTypeOrderCompleted),
		OrderID:     order.ID,
		TotalAmount: order.TotalAmount,
	}
	if err := o.publisher.PublishOrderCompleted(ctx, event); err != nil {
		o.logger.Error("Failed to publish OrderCompleted event", zap.Int64("order_id", order.ID), zap.Error(err))
	}

	state = o.advance(state, StateCompleted, order.ID)
	return resultFor(order, state), nil
}

func (o *CheckoutOrchestrator) initiatePayment(
	ctx context.Context,
	state CheckoutState,
	registry GatewayRegistry,
	order *models.Order,
) (*CheckoutResult, error) {
	if o.gate != nil {
		if err := o.gate.ForceReady(ctx); err != nil {
			o.logger.Warn("Tracking activation did not complete before payment", zap.Error(err))
		}
	}

	resp, err := o.payments.Initiate(ctx, registry, order, o.paymentRequest(order))
	if err != nil {
		util.CheckoutFailedTotal.WithLabelValues("gateway").Inc()
		result := resultFor(order, state)
		result.Error = gateway.FailureResponse(err).Error
		return result, err
	}

	// the cart cannot be recovered once the browser leaves for the provider
	o.clearCart(ctx, order)

	event := &models.PaymentInitiatedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypePaymentInitiated),
		OrderID:   order.ID,
		Provider:  order.PaymentMethod,
		TxID:      resp.TransactionID,
		Amount:    order.TotalAmount,
	}
	if err := o.publisher.PublishPaymentInitiated(ctx, event); err != nil {
		o.logger.Error("Failed to publish PaymentInitiated event", zap.Int64("order_id", order.ID), zap.Error(err))
	}

	state = o.advance(state, StatePaymentPending, order.ID)
	result := resultFor(order, state)
	result.PaymentURL = resp.PaymentURL
	result.TransactionID = resp.TransactionID
	return result, nil
}

// resume answers a repeated checkout. An online order still waiting for
// payment gets a fresh payment session; anything else reports where it is.
func (o *CheckoutOrchestrator) resume(ctx context.Context, order *models.Order) (*CheckoutResult, error) {
	pending := order.Status == models.OrderStatusPending && order.PaymentStatus == models.PaymentStatusUnpaid
	if !pending || order.PaymentMethod == models.ProviderCashOnDelivery {
		return resultFor(order, StateFromOrder(order, o.latestPayment(ctx, order.ID))), nil
	}

	registry, err := o.payments.Registry(ctx)
	if err != nil {
		return nil, err
	}

	o.logger.Info("Re-initiating payment for pending order",
		zap.Int64("order_id", order.ID),
		zap.String("provider", order.PaymentMethod))
	return o.initiatePayment(ctx, StateOrderCreated, registry, order)
}

// HandlePaymentCallback finalizes an online order from its provider
// redirect. Repeated callbacks and callbacks for orders that already left
// pending/unpaid change nothing.
func (o *CheckoutOrchestrator) HandlePaymentCallback(ctx context.Context, in CallbackInput) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutOrchestrator.HandlePaymentCallback")
	defer span.End()

	switch in.Outcome {
	case models.CallbackSuccess, models.CallbackFail, models.CallbackCancel:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOutcome, in.Outcome)
	}

	eventID := fmt.Sprintf("callback:%d:%s", in.OrderID, in.Outcome)
	processed, err := o.orders.IsEventProcessed(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		o.logger.Info("Callback already processed", zap.String("event_id", eventID))
		return o.currentResult(ctx, in.OrderID)
	}

	lockKey := fmt.Sprintf("order:%d", in.OrderID)
	token, ok, err := o.locker.AcquireLock(ctx, lockKey, o.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire order lock: %w", err)
	}
	if !ok {
		return nil, ErrCallbackInProgress
	}
	defer func() {
		if err := o.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			o.logger.Error("Failed to release order lock", zap.String("key", lockKey), zap.Error(err))
		}
	}()

	order, err := o.orders.GetOrderByID(ctx, in.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order.PaymentMethod == models.ProviderCashOnDelivery {
		return nil, ErrNotOnlineOrder
	}

	var result *CheckoutResult
	if order.Status != models.OrderStatusPending || order.PaymentStatus != models.PaymentStatusUnpaid {
		o.logger.Info("Order already finalized, ignoring callback",
			zap.Int64("order_id", order.ID),
			zap.String("outcome", in.Outcome),
			zap.String("status", order.Status))
		result = resultFor(order, StateFromOrder(order, o.latestPayment(ctx, order.ID)))
	} else if in.Outcome == models.CallbackSuccess {
		result, err = o.handleSuccess(ctx, order, in)
	} else {
		result, err = o.handleFailure(ctx, order, in.Outcome, in.Outcome)
	}
	if err != nil {
		return nil, err
	}

	if err := o.orders.MarkEventProcessed(ctx, eventID, models.EventTypePaymentCallback); err != nil {
		o.logger.Error("Failed to mark event processed", zap.String("event_id", eventID), zap.Error(err))
	}
	return result, nil
}

func (o *CheckoutOrchestrator) handleSuccess(ctx context.Context, order *models.Order, in CallbackInput) (*CheckoutResult, error) {
	err := o.payments.Verify(ctx, order, gateway.CallbackData{
		OrderID:       strconv.FormatInt(order.ID, 10),
		TransactionID: in.TransactionID,
		ValidationID:  in.ValidationID,
		Amount:        order.TotalAmount,
	})
	if err != nil {
		// only a provider rejection cancels; anything else leaves the order
		// pending so the callback can be retried
		if !gateway.IsKind(err, gateway.KindProtocol) {
			return nil, fmt.Errorf("failed to verify payment: %w", err)
		}
		o.logger.Warn("Payment verification failed",
			zap.Int64("order_id", order.ID),
			zap.String("provider", order.PaymentMethod),
			zap.Error(err))
		return o.handleFailure(ctx, order, models.CallbackFail, "verification_failed")
	}

	updated, err := o.orders.FinalizeOrder(ctx, order.ID, models.OrderStatusProcessing, models.PaymentStatusPaid)
	if err != nil {
		return nil, err
	}
	if !updated {
		return o.currentResult(ctx, order.ID)
	}
	order.Status = models.OrderStatusProcessing
	order.PaymentStatus = models.PaymentStatusPaid

	if err := o.payments.MarkOutcome(ctx, order.ID, models.PaymentAttemptSucceeded, in.TransactionID); err != nil {
		o.logger.Error("Failed to update payment attempt", zap.Int64("order_id", order.ID), zap.Error(err))
	}

	util.OrdersPaidTotal.WithLabelValues(order.PaymentMethod).Inc()
	o.logger.Info("Order paid",
		zap.Int64("order_id", order.ID),
		zap.String("provider", order.PaymentMethod),
		zap.String("tx_id", in.TransactionID))

	items, err := o.orders.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		o.logger.Error("Failed to load order items for tracking", zap.Int64("order_id", order.ID), zap.Error(err))
	}
	extra := map[string]interface{}{}
	if in.TransactionID != "" {
		extra["provider_transaction_id"] = in.TransactionID
	}
	o.trackPurchase(ctx, order, items, extra)

	event := &models.OrderPaidEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderPaid),
		OrderID:   order.ID,
		Provider:  order.PaymentMethod,
		Amount:    order.TotalAmount,
		TxID:      in.TransactionID,
	}
	if err := o.publisher.PublishOrderPaid(ctx, event); err != nil {
		o.logger.Error("Failed to publish OrderPaid event", zap.Int64("order_id", order.ID), zap.Error(err))
	}

	return resultFor(order, o.advance(StatePaymentPending, StatePaid, order.ID)), nil
}

func (o *CheckoutOrchestrator) handleFailure(ctx context.Context, order *models.Order, outcome, reason string) (*CheckoutResult, error) {
	updated, err := o.orders.FinalizeOrder(ctx, order.ID, models.OrderStatusCancelled, models.PaymentStatusUnpaid)
	if err != nil {
		return nil, err
	}
	if !updated {
		return o.currentResult(ctx, order.ID)
	}
	order.Status = models.OrderStatusCancelled
	order.PaymentStatus = models.PaymentStatusUnpaid

	next, attempt := StateFailed, models.PaymentAttemptFailed
	if outcome == models.CallbackCancel {
		next, attempt = StateCancelled, models.PaymentAttemptCancelled
	}

	if err := o.payments.MarkOutcome(ctx, order.ID, attempt, ""); err != nil {
		o.logger.Error("Failed to update payment attempt", zap.Int64("order_id", order.ID), zap.Error(err))
	}

	util.OrdersCancelledTotal.WithLabelValues(reason).Inc()
	o.logger.Warn("Order cancelled by payment callback",
		zap.Int64("order_id", order.ID),
		zap.String("reason", reason))

	event := &models.OrderCancelledEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderCancelled),
		OrderID:   order.ID,
		Reason:    reason,
	}
	if err := o.publisher.PublishOrderCancelled(ctx, event); err != nil {
		o.logger.Error("Failed to publish OrderCancelled event", zap.Int64("order_id", order.ID), zap.Error(err))
	}

	return resultFor(order, o.advance(StatePaymentPending, next, order.ID)), nil
}

// GetOrder returns the order and its derived checkout state
func (o *CheckoutOrchestrator) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderItem, *CheckoutResult, error) {
	order, err := o.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, nil, err
	}
	items, err := o.orders.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get order items: %w", err)
	}
	return order, items, resultFor(order, StateFromOrder(order, o.latestPayment(ctx, orderID))), nil
}

func (o *CheckoutOrchestrator) currentResult(ctx context.Context, orderID int64) (*CheckoutResult, error) {
	order, err := o.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return resultFor(order, StateFromOrder(order, o.latestPayment(ctx, orderID))), nil
}

func (o *CheckoutOrchestrator) latestPayment(ctx context.Context, orderID int64) *models.Payment {
	payment, err := o.payments.GetPayment(ctx, orderID)
	if err != nil {
		return nil
	}
	return payment
}

// advance logs and returns next. An illegal step is a programming error and
// is reported without blocking the order.
func (o *CheckoutOrchestrator) advance(from, to CheckoutState, orderID int64) CheckoutState {
	if !from.CanTransitionTo(to) {
		o.logger.Error("Unexpected checkout transition",
			zap.Int64("order_id", orderID),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Error(ErrInvalidTransition))
	}
	return to
}

func (o *CheckoutOrchestrator) buildOrder(req *CheckoutRequest) (*models.Order, []models.OrderItem) {
	items := make([]models.OrderItem, 0, len(req.Items))
	subtotal := decimal.Zero
	for _, it := range req.Items {
		items = append(items, models.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Category:  it.Category,
			Brand:     it.Brand,
			Variant:   it.Variant,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	order := &models.Order{
		UserID:          req.UserID,
		CartID:          req.CartID,
		Subtotal:        subtotal,
		DeliveryCharge:  o.cfg.DeliveryCharge,
		TotalAmount:     subtotal.Add(o.cfg.DeliveryCharge),
		Currency:        o.cfg.Currency,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusUnpaid,
		PaymentMethod:   req.PaymentMethod,
		CustomerName:    strings.TrimSpace(req.Customer.Name),
		CustomerPhone:   strings.TrimSpace(req.Customer.Phone),
		CustomerEmail:   strings.TrimSpace(req.Customer.Email),
		ShippingAddress: strings.TrimSpace(req.Customer.Address),
		City:            req.Customer.City,
		State:           req.Customer.State,
		ZipCode:         req.Customer.ZipCode,
		Country:         req.Customer.Country,
		IdempotencyKey:  req.IdempotencyKey,
	}
	return order, items
}

func (o *CheckoutOrchestrator) paymentRequest(order *models.Order) *gateway.PaymentRequest {
	callback := func(outcome string) string {
		return fmt.Sprintf("%s/api/v1/payments/callback/%s?order_id=%d", o.cfg.PublicURL, outcome, order.ID)
	}
	return &gateway.PaymentRequest{
		Amount:   order.TotalAmount,
		Currency: order.Currency,
		OrderID:  strconv.FormatInt(order.ID, 10),
		Customer: gateway.Customer{
			Name:     order.CustomerName,
			Phone:    order.CustomerPhone,
			Email:    order.CustomerEmail,
			Address:  order.ShippingAddress,
			City:     order.City,
			State:    order.State,
			PostCode: order.ZipCode,
			Country:  order.Country,
		},
		SuccessURL: callback(models.CallbackSuccess),
		FailURL:    callback(models.CallbackFail),
		CancelURL:  callback(models.CallbackCancel),
	}
}

// trackPurchase emits the single Purchase occurrence of an order in the
// background. The event id is derived from the order so every emission
// deduplicates downstream.
func (o *CheckoutOrchestrator) trackPurchase(ctx context.Context, order *models.Order, items []models.OrderItem, extra map[string]interface{}) {
	if o.tracker == nil {
		return
	}

	products := make([]models.TrackingProduct, 0, len(items))
	for _, it := range items {
		products = append(products, models.TrackingProduct{
			ID:        it.ProductID,
			Name:      it.Name,
			Category:  it.Category,
			Brand:     it.Brand,
			Variant:   it.Variant,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Currency:  order.Currency,
		})
	}

	if extra == nil {
		extra = map[string]interface{}{}
	}
	orderID := strconv.FormatInt(order.ID, 10)
	extra["order_id"] = orderID
	extra["transaction_id"] = orderID
	extra["payment_method"] = order.PaymentMethod
	extra["shipping"] = order.DeliveryCharge.InexactFloat64()

	id := order.ID
	total := order.TotalAmount
	user := userFromOrder(order)
	params := &tracking.Params{
		EventID:  tracking.OrderEventID(models.EventPurchase, id),
		Value:    &total,
		Currency: order.Currency,
		Extra:    extra,
	}

	trackCtx := context.WithoutCancel(ctx)
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		_, results, err := o.tracker.Track(trackCtx, models.EventPurchase, products, user, params)
		if err != nil {
			o.logger.Warn("Failed to track purchase", zap.Int64("order_id", id), zap.Error(err))
			return
		}
		o.logger.Debug("Purchase tracked", zap.Int64("order_id", id), zap.Any("results", results))
	}()
}

// Wait blocks until background tracking started by checkouts and callbacks
// has finished.
func (o *CheckoutOrchestrator) Wait() {
	o.background.Wait()
}

func (o *CheckoutOrchestrator) clearCart(ctx context.Context, order *models.Order) {
	if order.CartID == "" {
		return
	}
	if err := o.carts.ClearCart(ctx, order.CartID); err != nil {
		o.logger.Error("Failed to clear cart",
			zap.Int64("order_id", order.ID),
			zap.String("cart_id", order.CartID),
			zap.Error(err))
	}
}

func (o *CheckoutOrchestrator) publishOrderCreated(ctx context.Context, order *models.Order, items []models.OrderItem) {
	data := make([]models.OrderItemData, 0, len(items))
	for _, it := range items {
		data = append(data, models.OrderItemData{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	event := &models.OrderCreatedEvent{
		BaseEvent:     models.NewBaseEvent(models.EventTypeOrderCreated),
		OrderID:       order.ID,
		PaymentMethod: order.PaymentMethod,
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		Items:         data,
	}
	if err := o.publisher.PublishOrderCreated(ctx, event); err != nil {
		o.logger.Error("Failed to publish OrderCreated event", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

func validateCheckout(req *CheckoutRequest) error {
	if len(req.Items) == 0 {
		return ErrEmptyCart
	}
	for _, it := range req.Items {
		if it.Quantity < 1 {
			return fmt.Errorf("%w: product %s", ErrInvalidQuantity, it.ProductID)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: product %s", ErrInvalidPrice, it.ProductID)
		}
	}
	if strings.TrimSpace(req.Customer.Name) == "" ||
		strings.TrimSpace(req.Customer.Phone) == "" ||
		strings.TrimSpace(req.Customer.Address) == "" {
		return ErrMissingCustomer
	}
	switch req.PaymentMethod {
	case models.ProviderCashOnDelivery, models.ProviderSSLCommerz, models.ProviderBkash:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedPaymentMethod, req.PaymentMethod)
	}
}

func requestExtra(req *CheckoutRequest) map[string]interface{} {
	extra := map[string]interface{}{}
	if req.ClientIP != "" {
		extra["client_ip_address"] = req.ClientIP
	}
	if req.UserAgent != "" {
		extra["client_user_agent"] = req.UserAgent
	}
	if req.Fbp != "" {
		extra["fbp"] = req.Fbp
	}
	if req.Fbc != "" {
		extra["fbc"] = req.Fbc
	}
	return extra
}

func userFromOrder(order *models.Order) *models.TrackingUser {
	first, last := splitName(order.CustomerName)
	user := &models.TrackingUser{
		Email:     order.CustomerEmail,
		Phone:     order.CustomerPhone,
		FirstName: first,
		LastName:  last,
		City:      order.City,
		State:     order.State,
		ZipCode:   order.ZipCode,
		Country:   order.Country,
	}
	if order.UserID != nil {
		user.UserID = strconv.FormatInt(*order.UserID, 10)
	}
	return user
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func resultFor(order *models.Order, state CheckoutState) *CheckoutResult {
	return &CheckoutResult{
		OrderID:       order.ID,
		State:         state,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Total:         order.TotalAmount,
	}
}
