// Package engine runs the order lifecycle state machine. Every venue callback and supervisor
// report is posted to a single event loop, so trading state has exactly one writer.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"peeler-go/internal/execution"
	"peeler-go/internal/fixed"
	"peeler-go/internal/market"
	"peeler-go/internal/metrics"
	"peeler-go/internal/session"
	"peeler-go/internal/signal"
	"peeler-go/internal/strategy"
)

// Orders places orders on behalf of the engine; execution.Executor satisfies it.
type Orders interface {
	Submit(ctx context.Context, order execution.Order) (string, error)
}

// Supervisor owns the session lifecycle. Recover must stop the session, call reset, and start a
// fresh session delivering to l. A non-nil error from either method ends the engine.
type Supervisor interface {
	Start(ctx context.Context, l session.Listener) error
	Recover(ctx context.Context, fault session.Fault, reset func(), l session.Listener) error
}

// Params tunes book validation and warmup.
type Params struct {
	// Depth is the ladder index used for prices, 0 being top of book.
	Depth int
	// MinLevels is the minimum ladder depth a book must carry to be accepted.
	MinLevels int
	// WarmupTicks is the number of quotes each instrument needs before a warmup detector trades.
	WarmupTicks int
	// QueueSize bounds the event channel.
	QueueSize int
}

func (p Params) withDefaults() Params {
	if p.Depth < 0 {
		p.Depth = 0
	}
	if p.MinLevels <= 0 {
		p.MinLevels = 5
	}
	if p.MinLevels <= p.Depth {
		p.MinLevels = p.Depth + 1
	}
	if p.WarmupTicks <= 0 {
		p.WarmupTicks = 8
	}
	if p.QueueSize <= 0 {
		p.QueueSize = 1024
	}
	return p
}

type pendingOrder struct {
	id         string
	purpose    execution.Purpose
	instrument string
	quantity   fixed.Point
	accepted   bool
}

type (
	bookEvent      struct{ book signal.Book }
	acceptedEvent  struct{ id string }
	rejectedEvent  struct{ id, reason string }
	executionEvent struct{ exec signal.Execution }
	positionEvent  struct{ report signal.PositionReport }
	loginEvent     struct{ account string }
	faultEvent     struct{ fault session.Fault }
)

// Engine consumes market data and order events and decides when to open and close the single position.
type Engine struct {
	log        zerolog.Logger
	params     Params
	detector   strategy.Detector
	basket     *market.Basket
	orders     Orders
	supervisor Supervisor

	events chan any
	done   chan struct{}

	state    State
	position *Position
	pending  *pendingOrder
	flatten  map[string]string

	// recoveredAt is when the last recovery completed; faults stamped at or before it are stale.
	recoveredAt time.Time

	snap atomic.Pointer[Snapshot]
}

// New builds an engine trading instruments with detector. Instruments are evaluated in the given order.
func New(log zerolog.Logger, params Params, detector strategy.Detector, instruments []string, orders Orders, supervisor Supervisor) *Engine {
	params = params.withDefaults()
	e := &Engine{
		log:        log.With().Str("component", "engine").Str("strategy", detector.Name()).Logger(),
		params:     params,
		detector:   detector,
		basket:     market.NewBasket(instruments),
		orders:     orders,
		supervisor: supervisor,
		events:     make(chan any, params.QueueSize),
		done:       make(chan struct{}),
		flatten:    make(map[string]string),
	}
	e.state = e.initialState()
	e.publish()
	return e
}

// Instruments returns the basket in evaluation order.
func (e *Engine) Instruments() []string { return e.basket.Instruments() }

// Run starts the session through the supervisor and processes events until ctx is cancelled or a
// fault cannot be recovered.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)
	if err := e.supervisor.Start(ctx, e); err != nil {
		return err
	}
	e.log.Info().Strs("instruments", e.basket.Instruments()).Stringer("state", e.state).Msg("engine running")
	for {
		select {
		case <-ctx.Done():
			e.log.Info().Stringer("state", e.state).Msg("engine stopping")
			return ctx.Err()
		case ev := <-e.events:
			err := e.handle(ctx, ev)
			e.publish()
			if err != nil {
				return err
			}
		}
	}
}

// Snapshot returns the state as of the last processed event. Safe for concurrent use.
func (e *Engine) Snapshot() Snapshot {
	return *e.snap.Load()
}

// State returns the current lifecycle state. Safe for concurrent use.
func (e *Engine) State() State { return e.Snapshot().State }

// Report queues a fault raised outside the session, e.g. by the liveness supervisor.
func (e *Engine) Report(fault session.Fault) { e.post(faultEvent{fault}) }

func (e *Engine) OnLoginSuccess(account string) { e.post(loginEvent{account}) }

func (e *Engine) OnLoginFailure(err error) {
	e.post(faultEvent{session.NewFault(session.LoginFailure, err)})
}

func (e *Engine) OnBookUpdate(book signal.Book) { e.post(bookEvent{book}) }

func (e *Engine) OnOrderAccepted(orderID string) { e.post(acceptedEvent{orderID}) }

func (e *Engine) OnOrderRejected(orderID string, reason string) {
	e.post(rejectedEvent{orderID, reason})
}

func (e *Engine) OnExecution(exec signal.Execution) { e.post(executionEvent{exec}) }

func (e *Engine) OnPositionReport(report signal.PositionReport) { e.post(positionEvent{report}) }

func (e *Engine) OnStreamFault(err error) {
	e.post(faultEvent{session.NewFault(session.StreamFault, err)})
}

func (e *Engine) OnDisconnected() {
	e.post(faultEvent{session.NewFault(session.Disconnected, nil)})
}

func (e *Engine) post(ev any) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

func (e *Engine) handle(ctx context.Context, ev any) error {
	switch ev := ev.(type) {
	case bookEvent:
		return e.onBook(ctx, ev.book)
	case acceptedEvent:
		e.onAccepted(ev.id)
	case rejectedEvent:
		return e.onRejected(ctx, ev.id, ev.reason)
	case executionEvent:
		e.onExecution(ev.exec)
	case positionEvent:
		return e.onPosition(ctx, ev.report)
	case loginEvent:
		e.log.Info().Str("account", ev.account).Msg("logged in")
	case faultEvent:
		return e.onFault(ctx, ev.fault)
	}
	return nil
}

func (e *Engine) initialState() State {
	if e.detector.RequiresWarmup() {
		return Warmup
	}
	return ReadyToOpen
}

// reset runs inside Recover, on the event loop, between session stop and restart.
func (e *Engine) reset() {
	e.basket.Reset()
	e.position = nil
	e.pending = nil
	e.flatten = make(map[string]string)
	e.state = e.initialState()
	e.publish()
	e.log.Info().Stringer("state", e.state).Msg("trading state reset")
}

func (e *Engine) publish() {
	snap := &Snapshot{
		State:   e.state,
		Pending: e.pending != nil,
		Slots:   e.basket.Snapshot(),
	}
	if e.position != nil {
		pos := *e.position
		snap.Position = &pos
	}
	e.snap.Store(snap)
	metrics.EngineState.Set(float64(e.state))
}
