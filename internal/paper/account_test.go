package paper

import (
	"testing"

	"peeler-go/internal/fixed"
)

func px(s string) fixed.Point { return fixed.MustParse(s) }

func TestMarketFillLongRoundTrip(t *testing.T) {
	account := NewAccount(px("10000"))

	if err := account.MarketFill("EUR/USD", px("10"), px("1.1000")); err != nil {
		t.Fatalf("unexpected buy error: %v", err)
	}
	if err := account.MarketFill("EUR/USD", px("10"), px("1.2000")); err != nil {
		t.Fatalf("unexpected second buy error: %v", err)
	}
	if got := account.Snapshot(nil).Positions["EUR/USD"].AvgCost; got != px("1.15") {
		t.Fatalf("expected avg cost 1.15, got %s", got)
	}

	if err := account.MarketFill("EUR/USD", px("-20"), px("1.2500")); err != nil {
		t.Fatalf("unexpected sell error: %v", err)
	}
	if got := account.RealizedPnL(); got != px("2") {
		t.Fatalf("expected realized pnl 2, got %s", got)
	}
	if account.Position("EUR/USD") != 0 || len(account.OpenInstruments()) != 0 {
		t.Fatalf("expected flat account")
	}
	if got := account.Cash(); got != px("10002") {
		t.Fatalf("expected cash 10002, got %s", got)
	}
}

func TestMarketFillShort(t *testing.T) {
	account := NewAccount(px("1000"))
	if err := account.MarketFill("GBP/USD", px("-5"), px("1.3000")); err != nil {
		t.Fatalf("unexpected short error: %v", err)
	}
	if got := account.Position("GBP/USD"); got != px("-5") {
		t.Fatalf("expected -5, got %s", got)
	}

	snap := account.Snapshot(map[string]fixed.Point{"GBP/USD": px("1.2000")})
	if got := snap.Positions["GBP/USD"].Unrealized; got != px("0.5") {
		t.Fatalf("expected unrealized 0.5, got %s", got)
	}
	if snap.Equity != snap.Cash+snap.Positions["GBP/USD"].MarketValue {
		t.Fatalf("equity did not balance")
	}

	if err := account.MarketFill("GBP/USD", px("2"), px("1.2000")); err != nil {
		t.Fatalf("unexpected cover error: %v", err)
	}
	if got := account.RealizedPnL(); got != px("0.2") {
		t.Fatalf("expected realized 0.2, got %s", got)
	}
	if got := account.Position("GBP/USD"); got != px("-3") {
		t.Fatalf("expected residual -3, got %s", got)
	}
}

func TestMarketFillFlipResetsCost(t *testing.T) {
	account := NewAccount(px("1000"))
	_ = account.MarketFill("EUR/USD", px("2"), px("1.0"))
	if err := account.MarketFill("EUR/USD", px("-5"), px("1.5")); err != nil {
		t.Fatalf("unexpected flip error: %v", err)
	}
	pos := account.Snapshot(nil).Positions["EUR/USD"]
	if pos.Qty != px("-3") || pos.AvgCost != px("1.5") {
		t.Fatalf("unexpected position after flip %+v", pos)
	}
}

func TestMarketFillRejectsBadInput(t *testing.T) {
	account := NewAccount(px("1000"))
	if err := account.MarketFill("EUR/USD", 0, px("1")); err == nil {
		t.Fatalf("expected zero quantity error")
	}
	if err := account.MarketFill("EUR/USD", px("1"), 0); err == nil {
		t.Fatalf("expected price error")
	}
}
