// Package signal standardizes payloads shared between the venue session, strategies and the engine.
package signal

import (
	"fmt"
	"time"

	"peeler-go/internal/fixed"
)

// Level is one rung of an order-book ladder.
type Level struct {
	Price fixed.Point
	Qty   fixed.Point
}

// Book is a depth snapshot for one instrument, best prices first.
type Book struct {
	Instrument string
	Bids       []Level
	Asks       []Level
	Ts         time.Time
}

// Depth returns the shallower of the two ladders.
func (b Book) Depth() int {
	if len(b.Bids) < len(b.Asks) {
		return len(b.Bids)
	}
	return len(b.Asks)
}

// Intent expresses the trade a strategy wants to open. A zero Quantity means no signal.
type Intent struct {
	Instrument string
	Quantity   fixed.Point // positive buy, negative sell
	Reason     string
}

// IsZero reports whether the intent carries no order.
func (i Intent) IsZero() bool { return i.Quantity == 0 }

func (i Intent) String() string {
	side := "BUY"
	if i.Quantity < 0 {
		side = "SELL"
	}
	return fmt.Sprintf("%s %s x %s", side, i.Quantity.Abs(), i.Instrument)
}

// Execution reports a (possibly partial) fill of a submitted order.
type Execution struct {
	OrderID    string
	Instrument string
	Filled     fixed.Point // signed like the order quantity
	Price      fixed.Point
	Ts         time.Time
}

// PositionReport is the venue's view of the account's open quantity on one instrument.
type PositionReport struct {
	Instrument   string
	OpenQuantity fixed.Point
}
