package supervisor

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"peeler-go/internal/engine"
	"peeler-go/internal/execution"
	"peeler-go/internal/fixed"
	"peeler-go/internal/session"
	"peeler-go/internal/signal"
	"peeler-go/internal/strategy"
)

func (s *fakeSession) callLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func quote(bid, ask string) signal.Book {
	b := signal.Book{Instrument: "EUR/USD", Ts: time.Now()}
	for i := 0; i < 5; i++ {
		b.Bids = append(b.Bids, signal.Level{Price: fixed.MustParse(bid), Qty: fixed.FromInt(100)})
		b.Asks = append(b.Asks, signal.Level{Price: fixed.MustParse(ask), Qty: fixed.FromInt(100)})
	}
	return b
}

func TestKeepaliveFailureDuringBackoffDoesNotRestartAgain(t *testing.T) {
	log := zerolog.Nop()
	sess := &fakeSession{keepaliveErr: session.ErrStopped}
	rec := NewRecovery(log, sess, []string{"EUR/USD"}, Policy{})
	rec.now = time.Now

	detector := strategy.NewTrendFollower(3, fixed.FromInt(10), fixed.FromInt(1), fixed.FromInt(2))
	eng := engine.New(log, engine.Params{}, detector, []string{"EUR/USD"}, execution.NewExecutor(log, sess), rec)
	live := NewLiveness(log, sess, eng, time.Hour, time.Second)
	rec.sleep = func(ctx context.Context, _ time.Duration) error {
		live.Probe(ctx)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	waitUntil(t, "initial start", func() bool { return len(sess.callLog()) == 1 })
	eng.OnStreamFault(errors.New("socket closed"))
	waitUntil(t, "restart", func() bool { return len(sess.callLog()) >= 3 })

	// Events are handled in order, so once this quote lands the keepalive fault has been seen.
	eng.OnBookUpdate(quote("1.0000", "1.0002"))
	waitUntil(t, "quote after restart", func() bool { return eng.Snapshot().Slots[0].Ticks == 1 })

	want := []string{"start", "stop", "start"}
	if got := sess.callLog(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
