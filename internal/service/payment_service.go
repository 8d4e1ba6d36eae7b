package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// PaymentService drives the external gateways for one order at a time
type PaymentService struct {
	settings GatewaySettingsSource
	payments PaymentStore
	opts     gateway.Options
	logger   *zap.Logger

	// newRegistry builds the per-checkout adapter set
	newRegistry func(settings []models.GatewaySettings, opts gateway.Options) GatewayRegistry
}

// GatewayRegistry resolves a provider id to its adapter
type GatewayRegistry interface {
	Get(providerID string) (gateway.Gateway, error)
}

// NewPaymentService creates a new payment service
func NewPaymentService(settings GatewaySettingsSource, payments PaymentStore, opts gateway.Options) *PaymentService {
	return &PaymentService{
		settings: settings,
		payments: payments,
		opts:     opts,
		logger:   util.GetLogger(),
		newRegistry: func(s []models.GatewaySettings, o gateway.Options) GatewayRegistry {
			return gateway.NewRegistry(s, o)
		},
	}
}

// Registry loads the gateway settings once for the current checkout
func (ps *PaymentService) Registry(ctx context.Context) (GatewayRegistry, error) {
	settings, err := ps.settings.ListGatewaySettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load gateway settings: %w", err)
	}
	return ps.newRegistry(settings, ps.opts), nil
}

// Initiate opens a payment session for order with the provider it was placed
// with and records the attempt. Failures come back as a typed gateway error.
func (ps *PaymentService) Initiate(ctx context.Context, registry GatewayRegistry, order *models.Order, req *gateway.PaymentRequest) (*gateway.PaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Initiate")
	defer span.End()

	provider := order.PaymentMethod
	gw, err := registry.Get(provider)
	if err != nil {
		util.PaymentInitiationsTotal.WithLabelValues(provider, "config_error").Inc()
		return nil, err
	}

	ps.logger.Info("Initiating payment",
		zap.Int64("order_id", order.ID),
		zap.String("provider", provider),
		zap.String("amount", req.Amount.StringFixed(2)))

	start := time.Now()
	resp, err := gw.Initiate(ctx, req)
	util.GatewayLatency.WithLabelValues(provider, "initiate").Observe(time.Since(start).Seconds())

	if err != nil {
		util.PaymentInitiationsTotal.WithLabelValues(provider, outcomeLabel(err)).Inc()
		ps.logger.Warn("Payment initiation failed",
			zap.Int64("order_id", order.ID),
			zap.String("provider", provider),
			zap.Error(err))
		ps.recordAttempt(ctx, order, provider, models.PaymentAttemptFailed, "")
		return nil, err
	}

	util.PaymentInitiationsTotal.WithLabelValues(provider, "success").Inc()
	ps.recordAttempt(ctx, order, provider, models.PaymentAttemptInitiated, resp.TransactionID)

	ps.logger.Info("Payment session created",
		zap.Int64("order_id", order.ID),
		zap.String("provider", provider),
		zap.String("tx_id", resp.TransactionID))
	return resp, nil
}

// Verify confirms a success callback with the provider when its adapter
// supports it. Providers without verification are trusted.
func (ps *PaymentService) Verify(ctx context.Context, order *models.Order, data gateway.CallbackData) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.Verify")
	defer span.End()

	registry, err := ps.Registry(ctx)
	if err != nil {
		return err
	}
	gw, err := registry.Get(order.PaymentMethod)
	if err != nil {
		return err
	}

	verifier, ok := gw.(gateway.Verifier)
	if !ok {
		return nil
	}

	start := time.Now()
	err = verifier.Verify(ctx, data)
	util.GatewayLatency.WithLabelValues(order.PaymentMethod, "verify").Observe(time.Since(start).Seconds())
	return err
}

// MarkOutcome moves the latest attempt of an order to its final status
func (ps *PaymentService) MarkOutcome(ctx context.Context, orderID int64, status, providerTxID string) error {
	payment, err := ps.payments.GetPaymentByOrderID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to get payment: %w", err)
	}
	if providerTxID == "" {
		providerTxID = payment.ProviderTxID
	}
	if err := ps.payments.UpdatePaymentStatus(ctx, payment.ID, status, providerTxID); err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return nil
}

// GetPayment retrieves the latest payment attempt for an order
func (ps *PaymentService) GetPayment(ctx context.Context, orderID int64) (*models.Payment, error) {
	return ps.payments.GetPaymentByOrderID(ctx, orderID)
}

func (ps *PaymentService) recordAttempt(ctx context.Context, order *models.Order, provider, status, txID string) {
	payment := &models.Payment{
		OrderID:      order.ID,
		Provider:     provider,
		Status:       status,
		ProviderTxID: txID,
		Amount:       order.TotalAmount,
	}
	if err := ps.payments.CreatePayment(ctx, payment); err != nil {
		ps.logger.Error("Failed to record payment attempt",
			zap.Int64("order_id", order.ID),
			zap.String("status", status),
			zap.Error(err))
	}
}

func outcomeLabel(err error) string {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return string(gwErr.Kind) + "_error"
	}
	return "error"
}
