package strategy

import (
	"fmt"

	"peeler-go/internal/fixed"
	"peeler-go/internal/market"
	"peeler-go/internal/signal"
)

// TrendFollower emits a fixed-lot intent once an instrument has moved in the same direction for
// enough consecutive quotes and has travelled further than a multiple of its spread since the run began.
type TrendFollower struct {
	threshold       int
	lot             fixed.Point
	openMultiplier  fixed.Point
	closeMultiplier fixed.Point
}

// NewTrendFollower builds a trend-following detector.
func NewTrendFollower(threshold int, lot, openMultiplier, closeMultiplier fixed.Point) *TrendFollower {
	if threshold <= 0 {
		threshold = 3
	}
	if lot <= 0 {
		lot = fixed.FromInt(10)
	}
	if openMultiplier <= 0 {
		openMultiplier = fixed.FromInt(1)
	}
	if closeMultiplier <= 0 {
		closeMultiplier = fixed.FromInt(2)
	}
	return &TrendFollower{
		threshold:       threshold,
		lot:             lot,
		openMultiplier:  openMultiplier,
		closeMultiplier: closeMultiplier,
	}
}

// Name returns the configured identifier for logging.
func (t *TrendFollower) Name() string { return "TrendFollower" }

// RequiresWarmup is false; a run cannot reach the threshold before the spread is observed.
func (t *TrendFollower) RequiresWarmup() bool { return false }

// Evaluate only looks at the instrument that just ticked.
func (t *TrendFollower) Evaluate(updated string, basket *market.Basket) signal.Intent {
	slot, ok := basket.Slot(updated)
	if !ok || slot.ConsecutiveCount < t.threshold {
		return signal.Intent{}
	}
	band := fixed.Mul(t.openMultiplier, slot.Spread.Sum())

	switch slot.Direction {
	case market.Up:
		trigger := slot.RunStartAsk + band
		if slot.LastBid > trigger {
			return signal.Intent{
				Instrument: updated,
				Quantity:   t.lot,
				Reason:     fmt.Sprintf("up %d times, bid %s above %s", slot.ConsecutiveCount, slot.LastBid, trigger),
			}
		}
		return signal.Intent{
			Instrument: updated,
			Reason:     fmt.Sprintf("up %d times but bid %s is not above %s", slot.ConsecutiveCount, slot.LastBid, trigger),
		}
	case market.Down:
		trigger := slot.RunStartBid - band
		if slot.LastAsk < trigger {
			return signal.Intent{
				Instrument: updated,
				Quantity:   -t.lot,
				Reason:     fmt.Sprintf("down %d times, ask %s below %s", slot.ConsecutiveCount, slot.LastAsk, trigger),
			}
		}
		return signal.Intent{
			Instrument: updated,
			Reason:     fmt.Sprintf("down %d times but ask %s is not below %s", slot.ConsecutiveCount, slot.LastAsk, trigger),
		}
	}
	return signal.Intent{}
}

// ClosingBand anchors the profit side on the fill and the loss side on the current opposite price.
func (t *TrendFollower) ClosingBand(slot *market.Slot, fillPrice, quantity fixed.Point) (fixed.Point, fixed.Point) {
	band := fixed.Mul(t.closeMultiplier, slot.Spread.Sum())
	if quantity > 0 {
		return slot.LastBid - band, fillPrice + band
	}
	return fillPrice - band, slot.LastAsk + band
}
