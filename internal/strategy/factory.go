package strategy

import (
	"fmt"
	"strings"

	"peeler-go/internal/fixed"
	"peeler-go/internal/market"
	"peeler-go/internal/signal"
)

// Detector defines behaviour shared by the signal detectors driven by the engine.
type Detector interface {
	Name() string
	// RequiresWarmup reports whether the engine must collect quotes before trusting Evaluate.
	RequiresWarmup() bool
	// Evaluate inspects the basket after updated received a quote and returns at most one intent.
	Evaluate(updated string, basket *market.Basket) signal.Intent
	// ClosingBand returns the price range outside of which an open position is closed.
	ClosingBand(slot *market.Slot, fillPrice, quantity fixed.Point) (lo, hi fixed.Point)
}

// Params expresses tunable knobs required by detector constructors.
type Params struct {
	Lot                   fixed.Point
	Leverage              int64
	ConsecutiveThreshold  int
	SpreadMultiplierOpen  fixed.Point
	SpreadMultiplierClose fixed.Point
	Topology              Topology
}

const (
	ModeTriangle = "triangle"
	ModeTrend    = "trend"
)

// NormalizeMode maps a configured mode or one of its aliases to ModeTriangle or ModeTrend. Unknown
// modes come back trimmed and lower-cased; an empty mode selects ModeTrend.
func NormalizeMode(mode string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	switch mode {
	case ModeTriangle, "triangle_arbitrage", "arbitrage":
		return ModeTriangle
	case "", ModeTrend, "trend_follow", "trend_follower":
		return ModeTrend
	default:
		return mode
	}
}

// Build returns a detector matching the configured mode.
func Build(mode string, params Params) (Detector, error) {
	switch NormalizeMode(mode) {
	case ModeTriangle:
		if err := params.Topology.Validate(); err != nil {
			return nil, err
		}
		return NewTriangle(params.Topology, params.Leverage, params.SpreadMultiplierClose), nil
	case ModeTrend:
		return NewTrendFollower(params.ConsecutiveThreshold, params.Lot, params.SpreadMultiplierOpen, params.SpreadMultiplierClose), nil
	default:
		return nil, fmt.Errorf("unknown strategy mode %q", mode)
	}
}
