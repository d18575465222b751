package market

import (
	"peeler-go/internal/fixed"
	"peeler-go/internal/signal"
)

// Direction classifies a quote relative to the previous one.
type Direction int

const (
	Unknown Direction = iota
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "unknown"
	}
}

// Slot is the quote state for one tradable instrument.
type Slot struct {
	Instrument string

	LastBid    fixed.Point
	LastAsk    fixed.Point
	LastBidQty fixed.Point
	LastAskQty fixed.Point

	Spread SpreadTracker

	// Directional run, anchored at the quote that started it.
	RunStartBid      fixed.Point
	RunStartAsk      fixed.Point
	Direction        Direction
	ConsecutiveCount int

	// Ticks counts accepted quotes since the last reset.
	Ticks int

	primed bool
}

// NewSlot returns a reset slot for instrument.
func NewSlot(instrument string) *Slot {
	s := &Slot{Instrument: instrument}
	s.Reset()
	return s
}

// Reset returns every field except the instrument to its initial value.
func (s *Slot) Reset() {
	*s = Slot{Instrument: s.Instrument, Spread: NewSpreadTracker()}
}

// Quoted reports whether at least one quote has been applied.
func (s *Slot) Quoted() bool { return s.primed }

// Apply records a new bid/ask pair, advances the directional run and the spread extrema.
func (s *Slot) Apply(bid, ask signal.Level) SpreadTracker {
	if !s.primed {
		s.primed = true
		s.anchor(bid.Price, ask.Price, Unknown)
	} else {
		dir := classify(s.LastBid, s.LastAsk, bid.Price, ask.Price)
		if dir == Unknown || dir != s.Direction {
			s.anchor(bid.Price, ask.Price, dir)
		} else {
			s.ConsecutiveCount++
		}
	}

	s.LastBid, s.LastAsk = bid.Price, ask.Price
	s.LastBidQty, s.LastAskQty = bid.Qty, ask.Qty
	s.Ticks++
	return s.Spread.Observe(bid.Price, ask.Price)
}

func (s *Slot) anchor(bid, ask fixed.Point, dir Direction) {
	s.Direction = dir
	s.ConsecutiveCount = 0
	s.RunStartBid = bid
	s.RunStartAsk = ask
}

func classify(prevBid, prevAsk, bid, ask fixed.Point) Direction {
	switch {
	case bid > prevBid && ask > prevAsk:
		return Up
	case bid < prevBid && ask < prevAsk:
		return Down
	default:
		return Unknown
	}
}
