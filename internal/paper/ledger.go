package paper

import (
	"sync"
	"time"

	"peeler-go/internal/execution"
	"peeler-go/internal/fixed"
)

// RoundTrip is a position from the fill that opened it to the fill that brought it back to flat.
type RoundTrip struct {
	Instrument string
	// Quantity is the largest signed size held during the trip; positive is long.
	Quantity fixed.Point
	Entry    fixed.Point
	Exit     fixed.Point
	PnL      fixed.Point
	Opened   time.Time
	Closed   time.Time
}

type openTrip struct {
	net       fixed.Point
	peak      fixed.Point
	entryQty  fixed.Point
	entryCost fixed.Point
	exitQty   fixed.Point
	exitCost  fixed.Point
	opened    time.Time
}

// Ledger is the trade blotter: every paper fill in arrival order, paired into round trips per
// instrument.
type Ledger struct {
	mu    sync.Mutex
	fills []execution.Fill
	open  map[string]*openTrip
	trips []RoundTrip
}

// NewLedger creates an empty ledger pre-sizing fill storage for capacity entries.
func NewLedger(capacity int) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	return &Ledger{
		fills: make([]execution.Fill, 0, capacity),
		open:  make(map[string]*openTrip),
	}
}

// Record books a fill and closes the instrument's round trip when it returns to flat. A fill that
// flips the position closes the trip and opens a new one with the remainder.
func (l *Ledger) Record(fill execution.Fill) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fills = append(l.fills, fill)

	qty := fill.Qty.Abs()
	if fill.Side == execution.Sell {
		qty = -qty
	}
	if qty == 0 {
		return
	}

	trip := l.open[fill.Instrument]
	if trip == nil || trip.net.Sign() == qty.Sign() {
		if trip == nil {
			trip = &openTrip{opened: fill.Ts}
			l.open[fill.Instrument] = trip
		}
		trip.add(qty, fill.Price)
		return
	}

	closing := fixed.Min(qty.Abs(), trip.net.Abs())
	trip.exitQty += closing
	trip.exitCost += fixed.Mul(closing, fill.Price)
	remainder := qty.Abs() - closing
	if qty < 0 {
		trip.net -= closing
	} else {
		trip.net += closing
	}
	if trip.net != 0 {
		return
	}

	l.trips = append(l.trips, trip.close(fill.Instrument, fill.Ts))
	delete(l.open, fill.Instrument)
	if remainder > 0 {
		next := &openTrip{opened: fill.Ts}
		if qty < 0 {
			remainder = -remainder
		}
		next.add(remainder, fill.Price)
		l.open[fill.Instrument] = next
	}
}

func (t *openTrip) add(qty, price fixed.Point) {
	t.net += qty
	if t.net.Abs() > t.peak.Abs() {
		t.peak = t.net
	}
	t.entryQty += qty.Abs()
	t.entryCost += fixed.Mul(qty.Abs(), price)
}

func (t *openTrip) close(instrument string, at time.Time) RoundTrip {
	entry := fixed.Div(t.entryCost, t.entryQty)
	exit := fixed.Div(t.exitCost, t.exitQty)
	pnl := t.exitCost - fixed.Mul(entry, t.exitQty)
	if t.peak < 0 {
		pnl = -pnl
	}
	return RoundTrip{
		Instrument: instrument,
		Quantity:   t.peak,
		Entry:      entry,
		Exit:       exit,
		PnL:        pnl,
		Opened:     t.opened,
		Closed:     at,
	}
}

// Snapshot returns a copy of the recorded fills.
func (l *Ledger) Snapshot() []execution.Fill {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]execution.Fill, len(l.fills))
	copy(out, l.fills)
	return out
}

// ByOrder returns the fills booked against one order id.
func (l *Ledger) ByOrder(id string) []execution.Fill {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []execution.Fill
	for _, f := range l.fills {
		if f.OrderID == id {
			out = append(out, f)
		}
	}
	return out
}

// Trips returns the completed round trips, oldest first.
func (l *Ledger) Trips() []RoundTrip {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]RoundTrip, len(l.trips))
	copy(out, l.trips)
	return out
}

// Reset clears fills and trips.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.fills = l.fills[:0]
	l.trips = nil
	l.open = make(map[string]*openTrip)
	l.mu.Unlock()
}
