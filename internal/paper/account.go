package paper

import (
	"errors"
	"sort"
	"sync"

	"peeler-go/internal/execution"
	"peeler-go/internal/fixed"
)

// FillRecorder captures paper fills for later inspection.
type FillRecorder interface {
	Record(execution.Fill)
}

type positionState struct {
	Qty     fixed.Point // signed, negative is short
	AvgCost fixed.Point
}

// Account tracks virtual cash, realized PnL, and signed per-instrument positions while trading
// against the paper venue. It behaves like a margin account: shorts are allowed and cash may go negative.
type Account struct {
	mu           sync.Mutex
	startingCash fixed.Point
	cash         fixed.Point
	realizedPnL  fixed.Point
	positions    map[string]positionState
}

// PositionSnapshot exposes a read-only view of a single instrument position.
type PositionSnapshot struct {
	Qty         fixed.Point
	AvgCost     fixed.Point
	MarketValue fixed.Point
	Unrealized  fixed.Point
}

// Snapshot represents a thread-safe view of the account state, optionally marked to market using provided prices.
type Snapshot struct {
	Cash        fixed.Point
	RealizedPnL fixed.Point
	Equity      fixed.Point
	Positions   map[string]PositionSnapshot
}

// NewAccount constructs an account populated with starting cash.
func NewAccount(startingCash fixed.Point) *Account {
	return &Account{
		startingCash: startingCash,
		cash:         startingCash,
		positions:    make(map[string]positionState),
	}
}

// StartingCash returns the initial bankroll.
func (a *Account) StartingCash() fixed.Point { return a.startingCash }

// MarketFill books a fill of the signed quantity at price.
func (a *Account) MarketFill(instrument string, qty, price fixed.Point) error {
	if qty == 0 {
		return errors.New("quantity must be non-zero")
	}
	if price <= 0 {
		return errors.New("price must be positive")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	state := a.positions[instrument]
	a.cash -= fixed.Mul(qty, price)

	switch {
	case state.Qty == 0 || state.Qty.Sign() == qty.Sign():
		newQty := state.Qty + qty
		cost := fixed.Mul(state.AvgCost, state.Qty.Abs()) + fixed.Mul(price, qty.Abs())
		a.positions[instrument] = positionState{Qty: newQty, AvgCost: fixed.Div(cost, newQty.Abs())}

	default:
		closing := fixed.Min(qty.Abs(), state.Qty.Abs())
		pnl := fixed.Mul(price-state.AvgCost, closing)
		if state.Qty < 0 {
			pnl = -pnl
		}
		a.realizedPnL += pnl

		newQty := state.Qty + qty
		switch {
		case newQty == 0:
			delete(a.positions, instrument)
		case newQty.Sign() == state.Qty.Sign():
			a.positions[instrument] = positionState{Qty: newQty, AvgCost: state.AvgCost}
		default:
			a.positions[instrument] = positionState{Qty: newQty, AvgCost: price}
		}
	}
	return nil
}

// Snapshot returns a copy of balances, optionally marked using the supplied prices map.
func (a *Account) Snapshot(prices map[string]fixed.Point) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := make(map[string]PositionSnapshot, len(a.positions))
	equity := a.cash
	for id, pos := range a.positions {
		snap := PositionSnapshot{Qty: pos.Qty, AvgCost: pos.AvgCost}
		if mark := prices[id]; mark != 0 {
			snap.MarketValue = fixed.Mul(pos.Qty, mark)
			snap.Unrealized = fixed.Mul(mark-pos.AvgCost, pos.Qty)
		}
		positions[id] = snap
		equity += snap.MarketValue
	}

	return Snapshot{
		Cash:        a.cash,
		RealizedPnL: a.realizedPnL,
		Equity:      equity,
		Positions:   positions,
	}
}

// Cash reports the current cash balance.
func (a *Account) Cash() fixed.Point {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash
}

// Position returns the signed position for the supplied instrument.
func (a *Account) Position(instrument string) fixed.Point {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positions[instrument].Qty
}

// OpenInstruments lists instruments with a non-zero position, sorted.
func (a *Account) OpenInstruments() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.positions))
	for id := range a.positions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// RealizedPnL returns total closed-trade profit and loss.
func (a *Account) RealizedPnL() fixed.Point {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.realizedPnL
}
