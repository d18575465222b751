package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"peeler-go/internal/execution"
	"peeler-go/internal/fixed"
	"peeler-go/internal/paper"
	"peeler-go/internal/session"
	"peeler-go/internal/signal"
)

// BookSource produces order books until ctx ends; Feed satisfies it.
type BookSource interface {
	Run(ctx context.Context, out chan<- signal.Book) error
	Has(instrument string) bool
}

// PaperConfig controls the simulated venue.
type PaperConfig struct {
	Account string
	// FailKeepalive makes every keepalive fail, to exercise recovery.
	FailKeepalive bool
}

// PaperSession is an in-process venue that fills market orders against the latest book from a
// BookSource. All listener callbacks are delivered in order from one goroutine.
type PaperSession struct {
	log      zerolog.Logger
	cfg      PaperConfig
	source   BookSource
	account  *paper.Account
	recorder paper.FillRecorder

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	listener   session.Listener
	subscribed map[session.Feed]bool
	books      map[string]signal.Book
	queue      []func(session.Listener)
	wake       chan struct{}
}

// NewPaperSession builds a paper venue. recorder may be nil.
func NewPaperSession(log zerolog.Logger, cfg PaperConfig, source BookSource, account *paper.Account, recorder paper.FillRecorder) *PaperSession {
	return &PaperSession{
		log:      log.With().Str("component", "paper_venue").Logger(),
		cfg:      cfg,
		source:   source,
		account:  account,
		recorder: recorder,
		books:    make(map[string]signal.Book),
	}
}

// Start logs in and begins streaming books. Calling Start on a running session is an error.
func (s *PaperSession) Start(ctx context.Context, l session.Listener) error {
	if s.cfg.Account == "" {
		return fmt.Errorf("%w: no account configured", session.ErrLogin)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("paper session already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.listener = l
	s.subscribed = make(map[session.Feed]bool)
	s.books = make(map[string]signal.Book)
	s.queue = nil
	s.wake = make(chan struct{}, 1)

	go s.deliver(runCtx, l, s.wake)
	go s.stream(runCtx)

	account := s.cfg.Account
	s.enqueueLocked(func(l session.Listener) { l.OnLoginSuccess(account) })
	s.log.Info().Str("account", account).Msg("paper session started")
	return nil
}

// Subscribe enables one feed. Book feeds must name an instrument the source publishes.
func (s *PaperSession) Subscribe(_ context.Context, feed session.Feed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return session.ErrStopped
	}
	switch feed.Kind {
	case session.FeedBook:
		if !s.source.Has(feed.Instrument) {
			return fmt.Errorf("%w: no market data for %q", session.ErrSubscription, feed.Instrument)
		}
	case session.FeedOrders, session.FeedHeartbeat:
	case session.FeedPositions:
		// Report what is already open so a restarted engine can flatten it.
		for _, id := range s.account.OpenInstruments() {
			report := signal.PositionReport{Instrument: id, OpenQuantity: s.account.Position(id)}
			s.enqueueLocked(func(l session.Listener) { l.OnPositionReport(report) })
		}
	default:
		return fmt.Errorf("%w: unknown feed %s", session.ErrSubscription, feed)
	}
	s.subscribed[feed] = true
	s.log.Debug().Stringer("feed", feed).Msg("subscribed")
	return nil
}

// SubmitMarketOrder queues the order; the outcome is delivered to the listener.
func (s *PaperSession) SubmitMarketOrder(_ context.Context, req session.OrderRequest) error {
	if req.Quantity == 0 {
		return errors.New("order quantity must be non-zero")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return session.ErrStopped
	}
	s.enqueueLocked(func(l session.Listener) { s.execute(l, req) })
	return nil
}

// RequestKeepalive answers immediately while the session runs.
func (s *PaperSession) RequestKeepalive(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return session.ErrStopped
	}
	if s.cfg.FailKeepalive {
		return errors.New("keepalive refused")
	}
	return nil
}

// Disconnect simulates the venue dropping the connection.
func (s *PaperSession) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.enqueueLocked(func(l session.Listener) { l.OnDisconnected() })
	}
}

// Stop cancels streaming and discards undelivered events. It does not wait for in-flight callbacks.
func (s *PaperSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	s.cancel()
	s.queue = nil
	s.log.Info().Msg("paper session stopped")
	return nil
}

func (s *PaperSession) enqueueLocked(ev func(session.Listener)) {
	s.queue = append(s.queue, ev)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *PaperSession) deliver(ctx context.Context, l session.Listener, wake <-chan struct{}) {
	for {
		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-wake:
			}
			continue
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		ev(l)
	}
}

func (s *PaperSession) stream(ctx context.Context) {
	books := make(chan signal.Book, 64)
	errCh := make(chan error, 1)
	go func() { errCh <- s.source.Run(ctx, books) }()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if ctx.Err() != nil {
				return
			}
			if err == nil {
				err = errors.New("market data stream ended")
			}
			s.log.Warn().Err(err).Msg("market data stream failed")
			s.mu.Lock()
			s.enqueueLocked(func(l session.Listener) { l.OnStreamFault(err) })
			s.mu.Unlock()
			return
		case book := <-books:
			s.mu.Lock()
			if ctx.Err() == nil {
				s.books[book.Instrument] = book
				if s.subscribed[session.Feed{Kind: session.FeedBook, Instrument: book.Instrument}] {
					s.enqueueLocked(func(l session.Listener) { l.OnBookUpdate(book) })
				}
			}
			s.mu.Unlock()
		}
	}
}

// execute fills req against the last book and reports accepted, execution and position in that order.
func (s *PaperSession) execute(l session.Listener, req session.OrderRequest) {
	s.mu.Lock()
	book, ok := s.books[req.Instrument]
	s.mu.Unlock()
	if !ok {
		l.OnOrderRejected(req.ID, "no market data")
		return
	}

	qty, price, reason := match(book, req)
	if qty == 0 {
		s.log.Info().Str("id", req.ID).Str("instrument", req.Instrument).Str("reason", reason).Msg("paper order rejected")
		l.OnOrderRejected(req.ID, reason)
		return
	}
	if err := s.account.MarketFill(req.Instrument, qty, price); err != nil {
		l.OnOrderRejected(req.ID, err.Error())
		return
	}

	now := time.Now()
	if s.recorder != nil {
		s.recorder.Record(execution.Fill{
			OrderID:    req.ID,
			Instrument: req.Instrument,
			Side:       execution.SideOf(qty),
			Qty:        qty.Abs(),
			Price:      price,
			Ts:         now,
		})
	}
	s.log.Info().
		Str("id", req.ID).
		Str("instrument", req.Instrument).
		Stringer("qty", qty).
		Stringer("price", price).
		Msg("paper fill")

	l.OnOrderAccepted(req.ID)
	l.OnExecution(signal.Execution{OrderID: req.ID, Instrument: req.Instrument, Filled: qty, Price: price, Ts: now})
	l.OnPositionReport(signal.PositionReport{Instrument: req.Instrument, OpenQuantity: s.account.Position(req.Instrument)})
}

// match returns the signed fill quantity and price for a market order against the top of book.
// Fill-or-kill needs the whole quantity at the top level; immediate-or-cancel takes what is there.
func match(book signal.Book, req session.OrderRequest) (fixed.Point, fixed.Point, string) {
	levels := book.Asks
	if req.Quantity < 0 {
		levels = book.Bids
	}
	if len(levels) == 0 {
		return 0, 0, "no liquidity"
	}
	top := levels[0]
	want := req.Quantity.Abs()

	switch req.TimeInForce {
	case session.ImmediateOrCancel:
		filled := fixed.Min(want, top.Qty)
		if filled <= 0 {
			return 0, 0, "no liquidity"
		}
		if req.Quantity < 0 {
			filled = -filled
		}
		return filled, top.Price, ""
	default:
		if top.Qty < want {
			return 0, 0, fmt.Sprintf("fill or kill: %s available, %s requested", top.Qty, want)
		}
		return req.Quantity, top.Price, ""
	}
}
