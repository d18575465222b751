package session

import (
	"errors"
	"testing"
)

func TestFeedsCoverBasket(t *testing.T) {
	feeds := Feeds([]string{"EUR/USD", "GBP/USD"})
	if len(feeds) != 5 {
		t.Fatalf("expected 5 feeds, got %d", len(feeds))
	}
	books := 0
	for _, f := range feeds {
		if f.Kind == FeedBook {
			books++
		}
	}
	if books != 2 {
		t.Fatalf("expected one book feed per instrument, got %d", books)
	}
	if feeds[2].String() != "book:EUR/USD" {
		t.Fatalf("unexpected feed string %s", feeds[2])
	}
}

func TestFaultClassification(t *testing.T) {
	fatal := []FaultKind{LoginFailure, SubscriptionFailure}
	for _, k := range fatal {
		if !k.Fatal() {
			t.Fatalf("%s must be fatal", k)
		}
	}
	recoverable := []FaultKind{StreamFault, Disconnected, KeepaliveFailure, StuckOrder}
	for _, k := range recoverable {
		if k.Fatal() {
			t.Fatalf("%s must be recoverable", k)
		}
	}

	cause := errors.New("socket closed")
	f := NewFault(StreamFault, cause)
	if !errors.Is(f, cause) {
		t.Fatalf("fault must unwrap to its cause")
	}
	if f.At.IsZero() {
		t.Fatalf("fault must be timestamped")
	}
}
