package engine

import (
	"peeler-go/internal/fixed"
	"peeler-go/internal/market"
)

// State is the order lifecycle state.
type State int

const (
	Warmup State = iota
	ReadyToOpen
	WaitForOpen
	ReadyToClose
	WaitForClose
)

func (s State) String() string {
	switch s {
	case Warmup:
		return "WARMUP"
	case ReadyToOpen:
		return "READY_TO_OPEN"
	case WaitForOpen:
		return "WAIT_FOR_OPEN"
	case ReadyToClose:
		return "READY_TO_CLOSE"
	case WaitForClose:
		return "WAIT_FOR_CLOSE"
	default:
		return "UNKNOWN"
	}
}

// Position is the single outstanding position. Quantity is signed: positive is long.
type Position struct {
	Instrument string
	Quantity   fixed.Point
	ClosingMin fixed.Point
	ClosingMax fixed.Point
}

// Snapshot is a point-in-time copy of the engine's trading state.
type Snapshot struct {
	State    State
	Position *Position
	Pending  bool
	Slots    []market.Slot
}
