package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"peeler-go/internal/fixed"
	"peeler-go/internal/signal"
)

type binanceEnvelope struct {
	Stream string       `json:"stream"`
	Data   binanceDepth `json:"data"`
}

type binanceDepth struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

// runBinance consumes one connection. A dropped stream is returned to the caller, which reports it
// as a stream fault so the recovery supervisor decides when to reconnect.
func (f *Feed) runBinance(ctx context.Context, out chan<- signal.Book) error {
	if len(f.instruments) == 0 {
		return fmt.Errorf("binance feed requires at least one instrument")
	}

	bySymbol := make(map[string]string, len(f.instruments))
	streams := make([]string, len(f.instruments))
	for i, id := range f.instruments {
		sym := f.symbolFor(id)
		bySymbol[sym] = id
		streams[i] = sym + "@depth10@100ms"
	}
	url := fmt.Sprintf("%s/stream?streams=%s", f.binanceURL, strings.Join(streams, "/"))
	return f.consumeBinanceStream(ctx, url, bySymbol, out)
}

func (f *Feed) consumeBinanceStream(ctx context.Context, url string, bySymbol map[string]string, out chan<- signal.Book) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial binance: %w", err)
	}
	defer conn.Close()

	f.log.Info().Str("provider", ProviderBinance).Strs("instruments", f.instruments).Msg("connected market data feed")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.log.Warn().Err(err).Msg("binance ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()
	// Unblock ReadMessage when the session stops.
	go func() {
		<-pingCtx.Done()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read binance stream: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		var env binanceEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			f.log.Warn().Err(err).Msg("failed to decode binance message")
			continue
		}
		instrument, ok := bySymbol[parseBinanceSymbol(env.Stream)]
		if !ok {
			f.log.Debug().Str("stream", env.Stream).Msg("message for unknown stream")
			continue
		}
		book, err := env.Data.book(instrument)
		if err != nil {
			f.log.Warn().Err(err).Str("instrument", instrument).Msg("invalid depth from binance")
			continue
		}

		select {
		case out <- book:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d binanceDepth) book(instrument string) (signal.Book, error) {
	bids, err := parseLevels(d.Bids)
	if err != nil {
		return signal.Book{}, fmt.Errorf("bids: %w", err)
	}
	asks, err := parseLevels(d.Asks)
	if err != nil {
		return signal.Book{}, fmt.Errorf("asks: %w", err)
	}
	return signal.Book{Instrument: instrument, Bids: bids, Asks: asks, Ts: time.Now()}, nil
}

func parseLevels(raw [][2]string) ([]signal.Level, error) {
	levels := make([]signal.Level, 0, len(raw))
	for _, lv := range raw {
		price, err := fixed.Parse(lv[0])
		if err != nil {
			return nil, err
		}
		qty, err := fixed.Parse(lv[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, signal.Level{Price: price, Qty: qty})
	}
	return levels, nil
}

func parseBinanceSymbol(stream string) string {
	parts := strings.Split(stream, "@")
	return strings.ToLower(parts[0])
}
