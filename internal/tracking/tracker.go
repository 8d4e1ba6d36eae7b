package tracking

import (
	"context"
	"fmt"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// Tracker composes events and fans them out, activating the gate before any
// revenue-critical kind.
type Tracker struct {
	composer   *Composer
	dispatcher *Dispatcher
	gate       *Gate
	logger     *zap.Logger
}

// NewTracker creates a tracker
func NewTracker(composer *Composer, dispatcher *Dispatcher, gate *Gate) *Tracker {
	return &Tracker{
		composer:   composer,
		dispatcher: dispatcher,
		gate:       gate,
		logger:     util.Component("tracking"),
	}
}

// Gate returns the tracker's activation gate
func (t *Tracker) Gate() *Gate {
	return t.gate
}

// Track composes and dispatches one event. Destination failures only show up
// in the returned Results.
func (t *Tracker) Track(
	ctx context.Context,
	kind models.EventKind,
	products []models.TrackingProduct,
	user *models.TrackingUser,
	params *Params,
) (*models.TrackingEvent, Results, error) {
	ctx, span := util.StartSpan(ctx, "Tracker.Track")
	defer span.End()

	event, err := t.composer.Compose(kind, products, user, params)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compose %s event: %w", kind, err)
	}

	if kind.IsRevenueCritical() && t.gate != nil {
		if err := t.gate.ForceReady(ctx); err != nil {
			t.logger.Warn("Tracking activation did not complete before dispatch",
				zap.String("kind", string(kind)),
				zap.Error(err))
		}
	}

	results := t.dispatcher.Dispatch(ctx, event)

	t.logger.Debug("Tracking event dispatched",
		zap.String("kind", string(kind)),
		zap.String("event_id", event.EventID),
		zap.Any("results", results))

	return event, results, nil
}
