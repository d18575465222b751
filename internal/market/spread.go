// Package market holds the per-instrument quote state the engine mutates on every book update.
package market

import "peeler-go/internal/fixed"

// SpreadTracker keeps the running extrema of an instrument's bid/ask spread. The average of the
// extrema is the noise floor both strategies compare price moves against.
type SpreadTracker struct {
	Last fixed.Point
	Min  fixed.Point
	Max  fixed.Point
}

// NewSpreadTracker returns a tracker with Min at the unset sentinel and Max at zero.
func NewSpreadTracker() SpreadTracker {
	return SpreadTracker{Min: fixed.MaxValue}
}

// Observe folds one quote into the extrema and returns the updated stats.
func (s *SpreadTracker) Observe(bid, ask fixed.Point) SpreadTracker {
	spread := ask - bid
	s.Last = spread
	if spread > s.Max {
		s.Max = spread
	}
	if spread < s.Min {
		s.Min = spread
	}
	return *s
}

// Sum returns Min+Max, or zero while Min is unset.
func (s SpreadTracker) Sum() fixed.Point {
	if s.Min == fixed.MaxValue {
		return fixed.Zero
	}
	return s.Min + s.Max
}

// Average returns (Min+Max)/2, or zero while Min is unset.
func (s SpreadTracker) Average() fixed.Point {
	return s.Sum() / 2
}

// Ready reports whether a non-degenerate spread has been observed.
func (s SpreadTracker) Ready() bool {
	return s.Max > 0 && s.Min != fixed.MaxValue
}

// Reset restores the sentinels.
func (s *SpreadTracker) Reset() {
	*s = NewSpreadTracker()
}
