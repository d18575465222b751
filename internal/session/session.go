// Package session defines the venue collaborator the engine trades through and the events it delivers.
package session

import (
	"context"
	"errors"
	"fmt"

	"peeler-go/internal/fixed"
	"peeler-go/internal/signal"
)

var (
	// ErrLogin is returned by Session.Start when the venue refuses the credentials.
	ErrLogin = errors.New("login failed")
	// ErrSubscription is returned by Session.Subscribe when a feed cannot be subscribed.
	ErrSubscription = errors.New("subscription failed")
	// ErrStopped is returned by operations on a session that is not running.
	ErrStopped = errors.New("session stopped")
)

// TimeInForce controls how long a market order may wait for liquidity.
type TimeInForce string

const (
	FillOrKill        TimeInForce = "FOK"
	ImmediateOrCancel TimeInForce = "IOC"
)

// OrderRequest is a market order handed to the venue. Quantity is signed: positive buys.
type OrderRequest struct {
	ID          string
	Instrument  string
	Quantity    fixed.Point
	TimeInForce TimeInForce
}

// FeedKind enumerates the event streams a session can subscribe to.
type FeedKind string

const (
	FeedOrders    FeedKind = "orders"
	FeedPositions FeedKind = "positions"
	FeedHeartbeat FeedKind = "heartbeat"
	FeedBook      FeedKind = "book"
)

// Feed names one subscription. Instrument is only set for book feeds.
type Feed struct {
	Kind       FeedKind
	Instrument string
}

func (f Feed) String() string {
	if f.Instrument == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s:%s", f.Kind, f.Instrument)
}

// Feeds lists every subscription the engine needs for a basket.
func Feeds(instruments []string) []Feed {
	out := []Feed{{Kind: FeedOrders}, {Kind: FeedPositions}}
	for _, id := range instruments {
		out = append(out, Feed{Kind: FeedBook, Instrument: id})
	}
	return append(out, Feed{Kind: FeedHeartbeat})
}

// Listener receives venue events. Implementations must not block for long: the session delivers
// callbacks serially and in order from a single goroutine.
type Listener interface {
	OnLoginSuccess(account string)
	OnLoginFailure(err error)
	OnBookUpdate(book signal.Book)
	OnOrderAccepted(orderID string)
	OnOrderRejected(orderID string, reason string)
	OnExecution(exec signal.Execution)
	OnPositionReport(report signal.PositionReport)
	OnStreamFault(err error)
	OnDisconnected()
}

// Session is the venue connection. Order submission is asynchronous: the outcome arrives later
// on the Listener, correlated by OrderRequest.ID.
type Session interface {
	Start(ctx context.Context, l Listener) error
	Subscribe(ctx context.Context, feed Feed) error
	SubmitMarketOrder(ctx context.Context, req OrderRequest) error
	RequestKeepalive(ctx context.Context) error
	Stop() error
}
