package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
	"checkout-service/internal/service"
	"checkout-service/internal/store"
	"checkout-service/internal/tracking"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const trackingClaimTTL = 24 * time.Hour

// CheckoutService is the checkout surface used by the HTTP layer
type CheckoutService interface {
	Checkout(ctx context.Context, req *service.CheckoutRequest) (*service.CheckoutResult, error)
	HandlePaymentCallback(ctx context.Context, in service.CallbackInput) (*service.CheckoutResult, error)
	GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderItem, *service.CheckoutResult, error)
}

// CallbackPublisher queues provider redirects for the callback worker
type CallbackPublisher interface {
	PublishPaymentCallback(ctx context.Context, event *models.PaymentCallbackEvent) error
}

// InteractionGate receives user-interaction signals
type InteractionGate interface {
	Signal(ctx context.Context, interaction tracking.Interaction) error
	State() tracking.GateState
}

// IdempotencyClaimer claims a key exactly once
type IdempotencyClaimer interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// ReadinessCheck reports whether a dependency is reachable
type ReadinessCheck func(ctx context.Context) error

// Dependencies wires the handler
type Dependencies struct {
	Checkout    CheckoutService
	Tracker     service.EventTracker
	Gate        InteractionGate
	Callbacks   CallbackPublisher
	Claims      IdempotencyClaimer
	FrontendURL string
	Checks      map[string]ReadinessCheck
}

// Handler contains HTTP handlers
type Handler struct {
	checkout    CheckoutService
	tracker     service.EventTracker
	gate        InteractionGate
	callbacks   CallbackPublisher
	claims      IdempotencyClaimer
	frontendURL string
	checks      map[string]ReadinessCheck
	logger      *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		checkout:    deps.Checkout,
		tracker:     deps.Tracker,
		gate:        deps.Gate,
		callbacks:   deps.Callbacks,
		claims:      deps.Claims,
		frontendURL: deps.FrontendURL,
		checks:      deps.Checks,
		logger:      util.Component("api"),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/checkout", h.checkoutOrder)
		v1.GET("/orders/:id", h.getOrder)

		v1.GET("/payments/callback/:outcome", h.paymentCallback)
		v1.POST("/payments/callback/:outcome", h.paymentCallback)

		v1.POST("/tracking/events", h.trackEvent)
		v1.POST("/tracking/interaction", h.interaction)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck runs every registered dependency check
func (h *Handler) readinessCheck(c *gin.Context) {
	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(c.Request.Context()); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// checkoutOrder places an order
func (h *Handler) checkoutOrder(c *gin.Context) {
	var req service.CheckoutRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}
	req.ClientIP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()
	if req.Fbp == "" {
		req.Fbp, _ = c.Cookie("_fbp")
	}
	if req.Fbc == "" {
		req.Fbc, _ = c.Cookie("_fbc")
	}

	result, err := h.checkout.Checkout(c.Request.Context(), &req)
	if err != nil {
		status := checkoutErrorStatus(err)
		if result != nil {
			c.JSON(status, result)
			return
		}
		c.JSON(status, gin.H{
			"error":   "Failed to place order",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, result)
}

func checkoutErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrMissingCustomer),
		errors.Is(err, service.ErrUnsupportedPaymentMethod):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrCheckoutInProgress):
		return http.StatusConflict
	case gateway.IsKind(err, gateway.KindConfig):
		return http.StatusUnprocessableEntity
	case gateway.IsKind(err, gateway.KindTransport), gateway.IsKind(err, gateway.KindProtocol):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	idStr := c.Param("id")
	orderID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID",
		})
		return
	}

	order, items, result, err := h.checkout.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Order not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get order",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
		"state": result.State,
	})
}

// bKash reports its outcome in a status parameter on the success URL
var bkashStatus = map[string]string{
	"success": models.CallbackSuccess,
	"failure": models.CallbackFail,
	"cancel":  models.CallbackCancel,
}

// paymentCallback receives the browser back from a provider. The callback is
// queued for the worker and the browser is redirected to the storefront.
func (h *Handler) paymentCallback(c *gin.Context) {
	outcome := c.Param("outcome")
	if s, ok := bkashStatus[formValue(c, "status")]; ok {
		outcome = s
	}
	switch outcome {
	case models.CallbackSuccess, models.CallbackFail, models.CallbackCancel:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid callback outcome"})
		return
	}

	orderID, err := strconv.ParseInt(formValue(c, "order_id"), 10, 64)
	if err != nil {
		// SSLCommerz echoes the order id as tran_id
		orderID, err = strconv.ParseInt(formValue(c, "tran_id"), 10, 64)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	event := &models.PaymentCallbackEvent{
		BaseEvent:     models.NewBaseEvent(models.EventTypePaymentCallback),
		OrderID:       orderID,
		Outcome:       outcome,
		TransactionID: firstNonEmpty(formValue(c, "paymentID"), formValue(c, "bank_tran_id")),
		ValidationID:  formValue(c, "val_id"),
	}

	ctx := c.Request.Context()
	queued := false
	if h.callbacks != nil {
		if err := h.callbacks.PublishPaymentCallback(ctx, event); err != nil {
			h.logger.Error("Failed to queue payment callback, handling inline",
				zap.Int64("order_id", orderID),
				zap.Error(err))
		} else {
			queued = true
		}
	}

	if !queued {
		result, err := h.checkout.HandlePaymentCallback(ctx, service.CallbackInput{
			OrderID:       event.OrderID,
			Outcome:       event.Outcome,
			TransactionID: event.TransactionID,
			ValidationID:  event.ValidationID,
		})
		if err != nil {
			h.logger.Error("Failed to handle payment callback",
				zap.Int64("order_id", orderID),
				zap.String("outcome", outcome),
				zap.Error(err))
			if errors.Is(err, store.ErrOrderNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
				return
			}
			if !errors.Is(err, service.ErrCallbackInProgress) {
				outcome = models.CallbackFail
			}
		} else {
			outcome = outcomeForState(result.State, outcome)
		}
	}

	c.Redirect(http.StatusSeeOther, h.redirectURL(outcome, orderID))
}

func outcomeForState(state service.CheckoutState, fallback string) string {
	switch state {
	case service.StatePaid:
		return models.CallbackSuccess
	case service.StateFailed:
		return models.CallbackFail
	case service.StateCancelled:
		return models.CallbackCancel
	default:
		return fallback
	}
}

func (h *Handler) redirectURL(outcome string, orderID int64) string {
	id := strconv.FormatInt(orderID, 10)
	switch outcome {
	case models.CallbackSuccess:
		return fmt.Sprintf("%s/checkout/success?order_id=%s", h.frontendURL, id)
	case models.CallbackCancel:
		return fmt.Sprintf("%s/checkout?payment=cancelled&order_id=%s", h.frontendURL, id)
	default:
		return fmt.Sprintf("%s/checkout?payment=failed&order_id=%s", h.frontendURL, id)
	}
}

// TrackEventRequest is a storefront tracking report
type TrackEventRequest struct {
	Kind      models.EventKind         `json:"kind" binding:"required"`
	Name      string                   `json:"name,omitempty"`
	EventID   string                   `json:"event_id,omitempty"`
	Products  []models.TrackingProduct `json:"products"`
	User      *models.TrackingUser     `json:"user,omitempty"`
	Value     *decimal.Decimal         `json:"value,omitempty"`
	Currency  string                   `json:"currency,omitempty"`
	SourceURL string                   `json:"source_url,omitempty"`
	Extra     map[string]interface{}   `json:"extra,omitempty"`
}

// trackEvent composes and dispatches a storefront event
func (h *Handler) trackEvent(c *gin.Context) {
	var req TrackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.Kind == models.EventPurchase {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Purchase events are emitted by checkout"})
		return
	}

	ctx := c.Request.Context()
	if req.EventID != "" && h.claims != nil {
		claimed, err := h.claims.ClaimIdempotencyKey(ctx, "tracking:event:"+req.EventID, trackingClaimTTL)
		if err != nil {
			h.logger.Warn("Failed to claim tracking event id", zap.String("event_id", req.EventID), zap.Error(err))
		} else if !claimed {
			c.JSON(http.StatusAccepted, gin.H{
				"event_id":  req.EventID,
				"duplicate": true,
			})
			return
		}
	}

	extra := req.Extra
	if extra == nil {
		extra = map[string]interface{}{}
	}
	extra["client_ip_address"] = c.ClientIP()
	extra["client_user_agent"] = c.Request.UserAgent()
	if fbp, err := c.Cookie("_fbp"); err == nil && fbp != "" {
		extra["fbp"] = fbp
	}
	if fbc, err := c.Cookie("_fbc"); err == nil && fbc != "" {
		extra["fbc"] = fbc
	}

	event, results, err := h.tracker.Track(ctx, req.Kind, req.Products, req.User, &tracking.Params{
		EventID:   req.EventID,
		Name:      req.Name,
		Value:     req.Value,
		Currency:  req.Currency,
		SourceURL: req.SourceURL,
		Extra:     extra,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid tracking event",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"event_id": event.EventID,
		"results":  results,
	})
}

// InteractionRequest reports a user interaction
type InteractionRequest struct {
	Signal string `json:"signal" binding:"required"`
}

// interaction forwards a user-interaction signal to the activation gate
func (h *Handler) interaction(c *gin.Context) {
	var req InteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	signal, err := tracking.ParseInteraction(req.Signal)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Unknown interaction signal",
			"details": req.Signal,
		})
		return
	}

	if err := h.gate.Signal(c.Request.Context(), signal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"state": h.gate.State().String()})
}

func formValue(c *gin.Context, key string) string {
	if v := c.Query(key); v != "" {
		return v
	}
	return c.PostForm(key)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
