// Package exchange hosts the paper venue session and the market data sources that feed it.
package exchange

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"peeler-go/internal/fixed"
	"peeler-go/internal/signal"
)

const (
	// ProviderStub emits a seeded random walk of synthetic books (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderBinance streams partial depth books from Binance public websockets.
	ProviderBinance = "binance"
)

const (
	defaultInterval   = 500 * time.Millisecond
	defaultBinanceURL = "wss://stream.binance.com:9443"
	stubLevels        = 10
)

// Feed represents a pluggable order-book stream for a fixed set of instruments.
type Feed struct {
	provider    string
	instruments []string
	symbols     map[string]string
	log         zerolog.Logger
	interval    time.Duration
	seed        int64
	startPrices map[string]fixed.Point
	binanceURL  string
}

// Option configures Feed construction parameters.
type Option func(*Feed)

// WithInterval overrides the stub cadence.
func WithInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.interval = d
		}
	}
}

// WithSeed fixes the stub random walk.
func WithSeed(seed int64) Option {
	return func(f *Feed) { f.seed = seed }
}

// WithStartPrices sets the stub mid price per instrument; unlisted instruments start at 1.
func WithStartPrices(prices map[string]fixed.Point) Option {
	return func(f *Feed) {
		for id, p := range prices {
			if p > 0 {
				f.startPrices[id] = p
			}
		}
	}
}

// WithSymbols maps instruments to venue symbols, e.g. BTC/USDT to btcusdt.
func WithSymbols(symbols map[string]string) Option {
	return func(f *Feed) {
		for id, sym := range symbols {
			if sym = strings.TrimSpace(sym); sym != "" {
				f.symbols[id] = strings.ToLower(sym)
			}
		}
	}
}

// WithBinanceURL points the websocket feed at another endpoint.
func WithBinanceURL(url string) Option {
	return func(f *Feed) {
		if url != "" {
			f.binanceURL = strings.TrimSuffix(url, "/")
		}
	}
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider string, instruments []string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider:    strings.ToLower(provider),
		log:         log.With().Str("component", "feed").Logger(),
		interval:    defaultInterval,
		seed:        time.Now().UnixNano(),
		symbols:     make(map[string]string),
		startPrices: make(map[string]fixed.Point),
		binanceURL:  defaultBinanceURL,
	}
	seen := make(map[string]struct{}, len(instruments))
	for _, id := range instruments {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		f.instruments = append(f.instruments, id)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Instruments returns the instruments the feed publishes.
func (f *Feed) Instruments() []string {
	out := make([]string, len(f.instruments))
	copy(out, f.instruments)
	return out
}

// Has reports whether the feed publishes instrument.
func (f *Feed) Has(instrument string) bool {
	for _, id := range f.instruments {
		if id == instrument {
			return true
		}
	}
	return false
}

// Run pushes books onto out until the context is canceled or the stream fails.
func (f *Feed) Run(ctx context.Context, out chan<- signal.Book) error {
	switch f.provider {
	case ProviderBinance:
		return f.runBinance(ctx, out)
	default:
		return f.runStub(ctx, out)
	}
}

func (f *Feed) symbolFor(instrument string) string {
	if sym, ok := f.symbols[instrument]; ok {
		return sym
	}
	return strings.ToLower(strings.NewReplacer("/", "", "-", "", "_", "").Replace(instrument))
}

func (f *Feed) runStub(ctx context.Context, out chan<- signal.Book) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(f.seed))
	pip := fixed.MustParse("0.0001")
	mids := make(map[string]fixed.Point, len(f.instruments))
	for _, id := range f.instruments {
		mids[id] = fixed.FromInt(1)
		if p, ok := f.startPrices[id]; ok {
			mids[id] = p
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			for _, id := range f.instruments {
				mid := mids[id] + pip*fixed.Point(rng.Intn(5)-2)
				if mid <= pip*stubLevels {
					mid = pip * stubLevels
				}
				mids[id] = mid
				book := stubBook(id, mid, pip, 1+rng.Intn(2), rng, ts)
				select {
				case out <- book:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

// stubBook lays out levels one pip apart around mid, the top of book halfSpread pips away.
func stubBook(instrument string, mid, pip fixed.Point, halfSpread int, rng *rand.Rand, ts time.Time) signal.Book {
	book := signal.Book{
		Instrument: instrument,
		Bids:       make([]signal.Level, stubLevels),
		Asks:       make([]signal.Level, stubLevels),
		Ts:         ts,
	}
	for i := 0; i < stubLevels; i++ {
		off := pip * fixed.Point(halfSpread+i)
		book.Bids[i] = signal.Level{Price: mid - off, Qty: fixed.FromInt(int64(1 + rng.Intn(100)))}
		book.Asks[i] = signal.Level{Price: mid + off, Qty: fixed.FromInt(int64(1 + rng.Intn(100)))}
	}
	return book
}
