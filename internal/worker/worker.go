package worker

import (
	"context"
	"errors"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/service"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// CallbackProcessor finalizes orders from provider redirects
type CallbackProcessor interface {
	HandlePaymentCallback(ctx context.Context, in service.CallbackInput) (*service.CheckoutResult, error)
}

// CallbackWorker consumes queued payment callbacks
type CallbackWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	processor    CallbackProcessor
	logger       *zap.Logger
}

// NewCallbackWorker creates a new callback worker
func NewCallbackWorker(consumer *broker.Consumer, processor CallbackProcessor) *CallbackWorker {
	w := &CallbackWorker{
		consumer:  consumer,
		processor: processor,
		logger:    util.Component("callback-worker"),
	}

	w.eventHandler = broker.NewEventHandler()
	w.eventHandler.OnPaymentCallback(w.handle)
	return w
}

// Start starts the worker
func (w *CallbackWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting callback worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CallbackWorker) Stop() error {
	w.logger.Info("Stopping callback worker")
	return w.consumer.Close()
}

// handle processes one callback. Callbacks that can never succeed are
// dropped without retrying. Other errors are returned so the consumer
// retries the message in place before moving past it.
func (w *CallbackWorker) handle(ctx context.Context, event *models.PaymentCallbackEvent) error {
	result, err := w.processor.HandlePaymentCallback(ctx, service.CallbackInput{
		OrderID:       event.OrderID,
		Outcome:       event.Outcome,
		TransactionID: event.TransactionID,
		ValidationID:  event.ValidationID,
	})
	if err != nil {
		if isPermanent(err) {
			w.logger.Warn("Dropping payment callback",
				zap.Int64("order_id", event.OrderID),
				zap.String("outcome", event.Outcome),
				zap.Error(err))
			return nil
		}
		return err
	}

	w.logger.Info("Payment callback processed",
		zap.Int64("order_id", event.OrderID),
		zap.String("outcome", event.Outcome),
		zap.String("state", string(result.State)))
	return nil
}

func isPermanent(err error) bool {
	return errors.Is(err, service.ErrNotOnlineOrder) ||
		errors.Is(err, service.ErrUnknownOutcome) ||
		errors.Is(err, store.ErrOrderNotFound)
}
