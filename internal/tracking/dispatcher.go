package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// Destination names
const (
	DestinationDataLayer   = "datalayer"
	DestinationPixel       = "pixel"
	DestinationConversions = "capi"
)

// Destination is one analytics/ads system receiving a copy of each event.
// Send returns nil once the destination acknowledged receipt.
type Destination interface {
	Name() string
	Send(ctx context.Context, event *models.TrackingEvent) error
}

// Initializer is implemented by destinations with a deferred startup step.
type Initializer interface {
	Init(ctx context.Context) error
}

// Results maps destination name to whether it acknowledged the event.
type Results map[string]bool

// Route returns the destinations an event kind is fanned out to.
func Route(kind models.EventKind) []string {
	switch kind {
	case models.EventViewContent:
		return []string{DestinationDataLayer, DestinationPixel}
	case models.EventAddToCart, models.EventBeginCheckout, models.EventPurchase:
		return []string{DestinationDataLayer, DestinationPixel, DestinationConversions}
	default:
		return []string{DestinationDataLayer}
	}
}

// Dispatcher fans events out to the destinations routed for their kind.
type Dispatcher struct {
	destinations map[string]Destination
	timeout      time.Duration
	logger       *zap.Logger
}

// NewDispatcher creates a dispatcher. timeout bounds each destination call;
// zero means no per-destination bound.
func NewDispatcher(timeout time.Duration, destinations ...Destination) *Dispatcher {
	byName := make(map[string]Destination, len(destinations))
	for _, d := range destinations {
		if d != nil {
			byName[d.Name()] = d
		}
	}
	return &Dispatcher{
		destinations: byName,
		timeout:      timeout,
		logger:       util.Component("tracking"),
	}
}

// Dispatch sends event to every routed destination concurrently and returns
// once all of them have answered. Destinations that are not registered are
// skipped. A failing or panicking destination never affects the others.
func (d *Dispatcher) Dispatch(ctx context.Context, event *models.TrackingEvent) Results {
	targets := make([]Destination, 0, 3)
	for _, name := range Route(event.Kind) {
		if dest, ok := d.destinations[name]; ok {
			targets = append(targets, dest)
		}
	}

	results := make(Results, len(targets))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, dest := range targets {
		wg.Add(1)
		go func(dest Destination) {
			defer wg.Done()
			ok := d.send(ctx, dest, event)
			mu.Lock()
			results[dest.Name()] = ok
			mu.Unlock()
		}(dest)
	}
	wg.Wait()

	return results
}

func (d *Dispatcher) send(ctx context.Context, dest Destination, event *models.TrackingEvent) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Tracking destination panicked",
				zap.String("destination", dest.Name()),
				zap.String("kind", string(event.Kind)),
				zap.Any("panic", r))
			util.TrackingSendsTotal.WithLabelValues(dest.Name(), string(event.Kind), "panic").Inc()
			ok = false
		}
	}()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := dest.Send(ctx, event); err != nil {
		d.logger.Warn("Tracking destination rejected event",
			zap.String("destination", dest.Name()),
			zap.String("kind", string(event.Kind)),
			zap.String("event_id", event.EventID),
			zap.Error(err))
		util.TrackingSendsTotal.WithLabelValues(dest.Name(), string(event.Kind), "failed").Inc()
		return false
	}

	util.TrackingSendsTotal.WithLabelValues(dest.Name(), string(event.Kind), "sent").Inc()
	return true
}

// Init runs the deferred startup step of every destination that has one.
// All initializers run even if some fail.
func (d *Dispatcher) Init(ctx context.Context) error {
	var errs []error
	for name, dest := range d.destinations {
		initializer, ok := dest.(Initializer)
		if !ok {
			continue
		}
		if err := initializer.Init(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
