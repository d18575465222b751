// Package execution turns engine decisions into venue orders.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"peeler-go/internal/fixed"
	"peeler-go/internal/metrics"
	"peeler-go/internal/session"
)

// Side enumerates order directions used by the executor.
type Side string

const (
	// Buy indicates a long order.
	Buy Side = "BUY"
	// Sell indicates a short order.
	Sell Side = "SELL"
)

// SideOf derives the side from a signed quantity.
func SideOf(qty fixed.Point) Side {
	if qty < 0 {
		return Sell
	}
	return Buy
}

// Purpose records why the engine placed an order.
type Purpose string

const (
	PurposeOpen    Purpose = "open"
	PurposeClose   Purpose = "close"
	PurposeFlatten Purpose = "flatten"
)

// Order represents a market order the executor can submit.
type Order struct {
	Instrument  string
	Quantity    fixed.Point // signed, positive buys
	TimeInForce session.TimeInForce
	Purpose     Purpose
}

// Fill is a completed execution as recorded by paper accounting.
type Fill struct {
	OrderID    string      `json:"order_id"`
	Instrument string      `json:"instrument"`
	Side       Side        `json:"side"`
	Qty        fixed.Point `json:"qty"`
	Price      fixed.Point `json:"price"`
	Ts         time.Time   `json:"ts"`
}

// Venue accepts market orders; session.Session satisfies it.
type Venue interface {
	SubmitMarketOrder(ctx context.Context, req session.OrderRequest) error
}

// Executor assigns client order ids, counts and logs orders before handing them to the venue.
type Executor struct {
	log   zerolog.Logger
	venue Venue
	newID func() string
}

// NewExecutor wraps a venue with logging and metrics.
func NewExecutor(log zerolog.Logger, venue Venue) *Executor {
	return &Executor{
		log:   log.With().Str("component", "executor").Logger(),
		venue: venue,
		newID: func() string { return uuid.New().String() },
	}
}

// Submit sends the order and returns its id. The outcome is reported asynchronously by the venue.
func (executor *Executor) Submit(ctx context.Context, order Order) (string, error) {
	if order.Quantity == 0 {
		return "", errors.New("order quantity must be non-zero")
	}
	if order.TimeInForce == "" {
		order.TimeInForce = session.FillOrKill
	}
	id := executor.newID()
	side := SideOf(order.Quantity)

	metrics.OrdersTotal.WithLabelValues(order.Instrument, string(side), string(order.Purpose)).Inc()
	executor.log.Info().
		Str("id", id).
		Str("instrument", order.Instrument).
		Str("side", string(side)).
		Stringer("qty", order.Quantity.Abs()).
		Str("tif", string(order.TimeInForce)).
		Str("purpose", string(order.Purpose)).
		Msg("submit order")

	err := executor.venue.SubmitMarketOrder(ctx, session.OrderRequest{
		ID:          id,
		Instrument:  order.Instrument,
		Quantity:    order.Quantity,
		TimeInForce: order.TimeInForce,
	})
	if err != nil {
		return id, fmt.Errorf("submit %s order %s: %w", order.Purpose, id, err)
	}
	return id, nil
}
