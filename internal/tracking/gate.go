package tracking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// GateState is the activation state of tracking destinations
type GateState int32

const (
	GateIdle GateState = iota
	GateInitializing
	GateReady
)

func (s GateState) String() string {
	switch s {
	case GateIdle:
		return "idle"
	case GateInitializing:
		return "initializing"
	case GateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Trigger names what started activation
type Trigger string

const (
	TriggerInteraction Trigger = "interaction"
	TriggerTimeout     Trigger = "timeout"
	TriggerForced      Trigger = "forced"
)

// Interaction is a user-interaction signal
type Interaction string

const (
	InteractionPointer Interaction = "pointer"
	InteractionKey     Interaction = "key"
	InteractionScroll  Interaction = "scroll"
	InteractionTouch   Interaction = "touch"
)

var ErrUnknownInteraction = errors.New("unknown interaction signal")

var interactionAliases = map[string]Interaction{
	"pointer":     InteractionPointer,
	"pointerdown": InteractionPointer,
	"mousedown":   InteractionPointer,
	"mousemove":   InteractionPointer,
	"click":       InteractionPointer,
	"key":         InteractionKey,
	"keydown":     InteractionKey,
	"scroll":      InteractionScroll,
	"wheel":       InteractionScroll,
	"touch":       InteractionTouch,
	"touchstart":  InteractionTouch,
}

// ParseInteraction maps a signal name (including common DOM event names) to
// an Interaction
func ParseInteraction(s string) (Interaction, error) {
	if i, ok := interactionAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return i, nil
	}
	return "", ErrUnknownInteraction
}

// InitFunc is the one-time initialization body
type InitFunc func(ctx context.Context) error

// Gate defers destination initialization until the first interaction, a
// timeout, or a forced activation. The body runs exactly once; Ready is
// terminal.
type Gate struct {
	mu      sync.Mutex
	state   GateState
	done    chan struct{}
	timer   *time.Timer
	timeout time.Duration
	init    InitFunc
	logger  *zap.Logger
}

// NewGate creates an idle gate
func NewGate(timeout time.Duration, init InitFunc) *Gate {
	return &Gate{
		state:   GateIdle,
		done:    make(chan struct{}),
		timeout: timeout,
		init:    init,
		logger:  util.Component("tracking-gate"),
	}
}

// Arm starts the activation timeout. Calling it again, or after activation,
// has no effect.
func (g *Gate) Arm() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != GateIdle || g.timer != nil || g.timeout <= 0 {
		return
	}
	g.timer = time.AfterFunc(g.timeout, func() {
		g.activate(context.Background(), TriggerTimeout)
	})
}

// Signal reports a user interaction. The first one starts activation.
func (g *Gate) Signal(ctx context.Context, interaction Interaction) error {
	switch interaction {
	case InteractionPointer, InteractionKey, InteractionScroll, InteractionTouch:
	default:
		return ErrUnknownInteraction
	}
	g.activate(ctx, TriggerInteraction)
	return nil
}

// ForceReady activates the gate if needed and waits until it is Ready.
func (g *Gate) ForceReady(ctx context.Context) error {
	done := g.activate(ctx, TriggerForced)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current state
func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// IsReady reports whether initialization has completed
func (g *Gate) IsReady() bool {
	return g.State() == GateReady
}

// Done is closed when the gate becomes Ready
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

// activate runs the initialization body if the gate is Idle. Every caller,
// winner or not, gets the channel closed on Ready.
// runInit runs the init body. A panic is logged and the gate still becomes
// ready so waiters are released.
func (g *Gate) runInit(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("Tracking initialization panicked", zap.Any("panic", r))
		}
	}()
	if err := g.init(ctx); err != nil {
		g.logger.Warn("Tracking initialization finished with errors", zap.Error(err))
	}
}

func (g *Gate) activate(ctx context.Context, trigger Trigger) <-chan struct{} {
	g.mu.Lock()
	if g.state != GateIdle {
		g.mu.Unlock()
		return g.done
	}
	g.state = GateInitializing
	if g.timer != nil {
		g.timer.Stop()
	}
	g.mu.Unlock()

	util.TrackingGateActivations.WithLabelValues(string(trigger)).Inc()
	g.logger.Info("Activating tracking", zap.String("trigger", string(trigger)))

	if g.init != nil {
		// the body must complete even if the triggering request goes away
		g.runInit(context.WithoutCancel(ctx))
	}

	g.mu.Lock()
	g.state = GateReady
	close(g.done)
	g.mu.Unlock()

	return g.done
}
