package strategy

import (
	"testing"

	"peeler-go/internal/fixed"
	"peeler-go/internal/market"
	"peeler-go/internal/signal"
)

func quote(t *testing.T, b *market.Basket, id, bid, ask string, qty int64) {
	t.Helper()
	slot, ok := b.Slot(id)
	if !ok {
		t.Fatalf("unknown instrument %s", id)
	}
	slot.Apply(
		signal.Level{Price: fixed.MustParse(bid), Qty: fixed.FromInt(qty)},
		signal.Level{Price: fixed.MustParse(ask), Qty: fixed.FromInt(qty)},
	)
}

func TestTrendFollowerLongSignal(t *testing.T) {
	strat := NewTrendFollower(3, fixed.FromInt(10), fixed.FromInt(1), fixed.FromInt(2))
	b := market.NewBasket([]string{"EUR/USD"})

	quote(t, b, "EUR/USD", "1.1000", "1.1002", 1)
	quote(t, b, "EUR/USD", "1.1001", "1.1003", 1) // run anchored here
	quote(t, b, "EUR/USD", "1.1002", "1.1004", 1)
	quote(t, b, "EUR/USD", "1.1003", "1.1005", 1)
	if intent := strat.Evaluate("EUR/USD", b); !intent.IsZero() {
		t.Fatalf("expected no intent before threshold, got %s", intent)
	}

	quote(t, b, "EUR/USD", "1.1008", "1.1010", 1)
	intent := strat.Evaluate("EUR/USD", b)
	if intent.IsZero() {
		t.Fatalf("expected long intent")
	}
	if intent.Quantity != fixed.FromInt(10) {
		t.Fatalf("expected +10 lot, got %s", intent.Quantity)
	}
	if intent.Instrument != "EUR/USD" {
		t.Fatalf("unexpected instrument %s", intent.Instrument)
	}
}

func TestTrendFollowerShortSignal(t *testing.T) {
	strat := NewTrendFollower(3, fixed.FromInt(10), fixed.FromInt(1), fixed.FromInt(2))
	b := market.NewBasket([]string{"GBP/USD"})

	quote(t, b, "GBP/USD", "1.3010", "1.3012", 1)
	quote(t, b, "GBP/USD", "1.3009", "1.3011", 1)
	quote(t, b, "GBP/USD", "1.3008", "1.3010", 1)
	quote(t, b, "GBP/USD", "1.3007", "1.3009", 1)
	quote(t, b, "GBP/USD", "1.3001", "1.3003", 1)

	intent := strat.Evaluate("GBP/USD", b)
	if intent.Quantity != -fixed.FromInt(10) {
		t.Fatalf("expected -10 lot, got %s", intent.Quantity)
	}
}

func TestTrendFollowerRequiresDisplacement(t *testing.T) {
	strat := NewTrendFollower(3, fixed.FromInt(10), fixed.FromInt(1), fixed.FromInt(2))
	b := market.NewBasket([]string{"EUR/USD"})

	quote(t, b, "EUR/USD", "1.1000", "1.1002", 1)
	quote(t, b, "EUR/USD", "1.1001", "1.1003", 1)
	quote(t, b, "EUR/USD", "1.1002", "1.1004", 1)
	quote(t, b, "EUR/USD", "1.1003", "1.1005", 1)
	quote(t, b, "EUR/USD", "1.1004", "1.1006", 1)

	intent := strat.Evaluate("EUR/USD", b)
	if !intent.IsZero() {
		t.Fatalf("expected no intent when move is within the spread band, got %s", intent)
	}
	if intent.Reason == "" {
		t.Fatalf("expected an explanation for the skipped run")
	}
}

func TestTrendFollowerClosingBand(t *testing.T) {
	strat := NewTrendFollower(3, fixed.FromInt(10), fixed.FromInt(1), fixed.FromInt(2))
	b := market.NewBasket([]string{"EUR/USD"})
	quote(t, b, "EUR/USD", "1.1000", "1.1002", 1)
	slot, _ := b.Slot("EUR/USD")

	// band = 2 * (0.0002 + 0.0002)
	lo, hi := strat.ClosingBand(slot, fixed.MustParse("1.1002"), fixed.FromInt(10))
	if lo != fixed.MustParse("1.0992") || hi != fixed.MustParse("1.101") {
		t.Fatalf("unexpected long band %s/%s", lo, hi)
	}

	lo, hi = strat.ClosingBand(slot, fixed.MustParse("1.1000"), -fixed.FromInt(10))
	if lo != fixed.MustParse("1.0992") || hi != fixed.MustParse("1.101") {
		t.Fatalf("unexpected short band %s/%s", lo, hi)
	}
}

func TestBuildModes(t *testing.T) {
	d, err := Build("trend", Params{})
	if err != nil || d.Name() != "TrendFollower" {
		t.Fatalf("expected trend follower, got %v %v", d, err)
	}
	if _, err := Build("triangle", Params{}); err == nil {
		t.Fatalf("expected error for triangle without topology")
	}
	d, err = Build("triangle", Params{Topology: Topology{Cross: "A/C", Left: "A/B", Right: "B/C"}})
	if err != nil || !d.RequiresWarmup() {
		t.Fatalf("expected warm-up triangle, got %v %v", d, err)
	}
	if _, err := Build("martingale", Params{}); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestNormalizeModeAliases(t *testing.T) {
	cases := map[string]string{
		"":                   ModeTrend,
		" Trend_Follower ":   ModeTrend,
		"trend_follow":       ModeTrend,
		"ARBITRAGE":          ModeTriangle,
		"triangle_arbitrage": ModeTriangle,
		"Martingale":         "martingale",
	}
	for in, want := range cases {
		if got := NormalizeMode(in); got != want {
			t.Fatalf("NormalizeMode(%q) = %q, want %q", in, got, want)
		}
	}
}
