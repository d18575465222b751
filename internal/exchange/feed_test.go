package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"peeler-go/internal/fixed"
	"peeler-go/internal/signal"
)

func TestFeedRunEmitsStubBooks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewFeed(ProviderStub, []string{"EUR/USD", "EUR/USD", " "}, zerolog.Nop(),
		WithInterval(10*time.Millisecond),
		WithSeed(7),
		WithStartPrices(map[string]fixed.Point{"EUR/USD": fixed.MustParse("1.1000")}),
	)
	if got := feed.Instruments(); len(got) != 1 {
		t.Fatalf("expected deduplicated instruments, got %v", got)
	}
	books := make(chan signal.Book, 1)
	go func() {
		_ = feed.Run(ctx, books)
	}()

	select {
	case b := <-books:
		if b.Instrument != "EUR/USD" {
			t.Fatalf("unexpected instrument %s", b.Instrument)
		}
		if b.Depth() != stubLevels {
			t.Fatalf("expected %d levels, got %d", stubLevels, b.Depth())
		}
		if b.Bids[0].Price >= b.Asks[0].Price {
			t.Fatalf("crossed book %s/%s", b.Bids[0].Price, b.Asks[0].Price)
		}
		if b.Bids[1].Price >= b.Bids[0].Price || b.Asks[1].Price <= b.Asks[0].Price {
			t.Fatalf("levels not ordered best first")
		}
		mid := (b.Bids[0].Price + b.Asks[0].Price) / 2
		if (mid - fixed.MustParse("1.1000")).Abs() > fixed.MustParse("0.0010") {
			t.Fatalf("mid %s strayed from start price", mid)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for book")
	}
}

func TestSymbolMapping(t *testing.T) {
	feed := NewFeed(ProviderBinance, []string{"BTC/USDT", "ETH-USDT"}, zerolog.Nop(),
		WithSymbols(map[string]string{"ETH-USDT": "ETHUSDT"}))
	if got := feed.symbolFor("BTC/USDT"); got != "btcusdt" {
		t.Fatalf("expected btcusdt, got %s", got)
	}
	if got := feed.symbolFor("ETH-USDT"); got != "ethusdt" {
		t.Fatalf("expected ethusdt, got %s", got)
	}
	if !feed.Has("BTC/USDT") || feed.Has("XRP/USDT") {
		t.Fatalf("Has reports wrong membership")
	}
}

func TestParseBinanceSymbol(t *testing.T) {
	cases := map[string]string{
		"btcusdt@depth10@100ms": "btcusdt",
		"ETHUSDT@depth5":        "ethusdt",
		"dogeusdt":              "dogeusdt",
		"":                      "",
	}
	for stream, expected := range cases {
		if got := parseBinanceSymbol(stream); got != expected {
			t.Fatalf("expected %s got %s", expected, got)
		}
	}
}

func TestRunBinanceEmitsBook(t *testing.T) {
	const msg = `{"stream":"btcusdt@depth10@100ms","data":{"lastUpdateId":1,"bids":[["100.10","2.5"],["100.00","1"]],"asks":[["100.20","3"],["100.30","4"]]}}`
	upgrader := websocket.Upgrader{}
	paths := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.RawQuery
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"stream":"x","data":{}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	feed := NewFeed(ProviderBinance, []string{"BTC/USDT"}, zerolog.Nop(),
		WithBinanceURL("ws"+strings.TrimPrefix(server.URL, "http")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	books := make(chan signal.Book, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- feed.Run(ctx, books) }()

	select {
	case b := <-books:
		if b.Instrument != "BTC/USDT" || b.Depth() != 2 {
			t.Fatalf("unexpected book %+v", b)
		}
		if b.Bids[0].Price != fixed.MustParse("100.10") || b.Asks[0].Qty != fixed.MustParse("3") {
			t.Fatalf("unexpected top of book %+v / %+v", b.Bids[0], b.Asks[0])
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for book")
	}
	if got := <-paths; !strings.Contains(got, "btcusdt@depth10@100ms") {
		t.Fatalf("unexpected stream query %q", got)
	}

	// The server hangs up; the feed reports it instead of reconnecting.
	select {
	case err := <-errCh:
		if err == nil || errors.Is(err, context.Canceled) {
			t.Fatalf("expected a stream error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("feed did not return after disconnect")
	}
}
