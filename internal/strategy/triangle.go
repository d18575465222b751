// Package strategy contains the signal detectors the engine consults while looking for an entry.
package strategy

import (
	"errors"
	"fmt"

	"peeler-go/internal/fixed"
	"peeler-go/internal/market"
	"peeler-go/internal/signal"
)

// Topology names the three legs of a currency triangle where Cross = Left × Right,
// e.g. EUR/USD = EUR/GBP × GBP/USD.
type Topology struct {
	Cross string `yaml:"cross"`
	Left  string `yaml:"left"`
	Right string `yaml:"right"`
}

// Validate checks that three distinct legs are named.
func (t Topology) Validate() error {
	if t.Cross == "" || t.Left == "" || t.Right == "" {
		return errors.New("triangle topology needs cross, left and right legs")
	}
	if t.Cross == t.Left || t.Cross == t.Right || t.Left == t.Right {
		return fmt.Errorf("triangle legs must be distinct: %s/%s/%s", t.Cross, t.Left, t.Right)
	}
	return nil
}

// Legs returns the three instruments.
func (t Topology) Legs() []string { return []string{t.Cross, t.Left, t.Right} }

// Triangle trades a leg whose observed price strays from the price implied by the other two legs
// by more than its average spread.
type Triangle struct {
	topo            Topology
	leverage        int64
	closeMultiplier fixed.Point
}

// NewTriangle builds a triangle arbitrage detector. Leverage scales the position size with the
// size of the mispricing.
func NewTriangle(topo Topology, leverage int64, closeMultiplier fixed.Point) *Triangle {
	if leverage <= 0 {
		leverage = 8
	}
	if closeMultiplier <= 0 {
		closeMultiplier = fixed.Scale
	}
	return &Triangle{topo: topo, leverage: leverage, closeMultiplier: closeMultiplier}
}

// Name returns the identifier for logging.
func (t *Triangle) Name() string { return "Triangle" }

// RequiresWarmup is true: derived prices are meaningless until all three legs are quoted.
func (t *Triangle) RequiresWarmup() bool { return true }

// Evaluate walks the basket in order, skipping the leg that just ticked, and returns the first
// leg with a tradable mispricing.
func (t *Triangle) Evaluate(updated string, basket *market.Basket) signal.Intent {
	for _, slot := range basket.Slots() {
		if slot.Instrument == updated || !t.isLeg(slot.Instrument) || !slot.Quoted() {
			continue
		}
		avg := slot.Spread.Average()
		if avg <= 0 {
			continue
		}
		derivedBid, okBid := t.derive(slot.Instrument, basket, bidOf)
		derivedAsk, okAsk := t.derive(slot.Instrument, basket, askOf)
		if !okBid || !okAsk {
			continue
		}

		if derivedBid > slot.LastAsk+avg {
			qty := t.contractQuantity(slot.LastAskQty, derivedBid-slot.LastAsk, avg)
			if qty > 0 {
				return signal.Intent{
					Instrument: slot.Instrument,
					Quantity:   qty,
					Reason:     fmt.Sprintf("derived bid %s above ask %s + %s", derivedBid, slot.LastAsk, avg),
				}
			}
		} else if derivedAsk < slot.LastBid-avg {
			qty := t.contractQuantity(slot.LastBidQty, slot.LastBid-derivedAsk, avg)
			if qty > 0 {
				return signal.Intent{
					Instrument: slot.Instrument,
					Quantity:   -qty,
					Reason:     fmt.Sprintf("derived ask %s below bid %s - %s", derivedAsk, slot.LastBid, avg),
				}
			}
		}
	}
	return signal.Intent{}
}

// ClosingBand centres the band on the fill price.
func (t *Triangle) ClosingBand(slot *market.Slot, fillPrice, _ fixed.Point) (fixed.Point, fixed.Point) {
	band := fixed.Mul(t.closeMultiplier, slot.Spread.Sum())
	return fillPrice - band, fillPrice + band
}

func (t *Triangle) isLeg(id string) bool {
	return id == t.topo.Cross || id == t.topo.Left || id == t.topo.Right
}

func bidOf(s *market.Slot) fixed.Point { return s.LastBid }
func askOf(s *market.Slot) fixed.Point { return s.LastAsk }

// derive composes the other two legs' same-side prices into a price for target.
func (t *Triangle) derive(target string, basket *market.Basket, side func(*market.Slot) fixed.Point) (fixed.Point, bool) {
	cross, okC := basket.Slot(t.topo.Cross)
	left, okL := basket.Slot(t.topo.Left)
	right, okR := basket.Slot(t.topo.Right)
	if !okC || !okL || !okR {
		return 0, false
	}

	var a, b fixed.Point
	switch target {
	case t.topo.Cross:
		a, b = side(left), side(right)
		if a <= 0 || b <= 0 {
			return 0, false
		}
		return fixed.Mul(a, b), true
	case t.topo.Left:
		a, b = side(cross), side(right)
	case t.topo.Right:
		a, b = side(cross), side(left)
	default:
		return 0, false
	}
	if a <= 0 || b <= 0 {
		return 0, false
	}
	return fixed.Div(a, b), true
}

// contractQuantity sizes the order in tenths of a contract, linearly in how far the gap exceeds
// the average spread, capped by the quantity displayed on the book.
func (t *Triangle) contractQuantity(available, gap, avg fixed.Point) fixed.Point {
	tenths := 10 * t.leverage * int64(gap-avg) / int64(avg)
	suggested := fixed.Point(int64(fixed.Scale) * tenths / 10)
	if suggested <= 0 {
		return fixed.Zero
	}
	if available <= suggested {
		return available
	}
	return suggested
}
