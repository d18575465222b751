package main

import (
	"context"
	"errors"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"peeler-go/internal/config"
	"peeler-go/internal/engine"
	"peeler-go/internal/exchange"
	"peeler-go/internal/execution"
	"peeler-go/internal/metrics"
	"peeler-go/internal/paper"
	"peeler-go/internal/strategy"
	"peeler-go/internal/supervisor"
	"peeler-go/internal/util"
)

const statusInterval = 30 * time.Second

func main() {
	configPath := flag.String("config", "configs/paper.yaml", "path to the YAML configuration")
	flag.Parse()

	_ = godotenv.Load()

	boot := util.NewLogger("info")
	cfg, err := config.Load(*configPath)
	if err != nil {
		boot.Fatal().Err(err).Str("path", *configPath).Msg("load config")
	}
	cfg.ApplyEnv(os.LookupEnv)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		boot.Fatal().Err(err).Msg("invalid config")
	}

	log := util.NewLoggerTo(os.Stdout, cfg.App.LogLevel, cfg.App.Env == "dev").With().Str("app", cfg.App.Name).Logger()

	if cfg.App.MetricsAddr != "" {
		srv := metrics.Serve(cfg.App.MetricsAddr)
		defer srv.Close()
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := []exchange.Option{
		exchange.WithInterval(time.Duration(cfg.Venue.IntervalMs) * time.Millisecond),
		exchange.WithStartPrices(cfg.Venue.StartPrices),
		exchange.WithSymbols(cfg.Venue.Symbols),
	}
	if cfg.Venue.Seed != 0 {
		opts = append(opts, exchange.WithSeed(cfg.Venue.Seed))
	}
	if cfg.Venue.BinanceURL != "" {
		opts = append(opts, exchange.WithBinanceURL(cfg.Venue.BinanceURL))
	}
	feed := exchange.NewFeed(cfg.Venue.Feed, cfg.Basket.Instruments, log, opts...)

	account := paper.NewAccount(cfg.Paper.StartingCash)
	ledger := paper.NewLedger(1024)
	recorders := []paper.FillRecorder{ledger}
	if cfg.Paper.FillsPath != "" {
		jsonl, err := paper.NewJSONLRecorder(cfg.Paper.FillsPath, cfg.Venue.Account)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Paper.FillsPath).Msg("open fills file")
		}
		defer jsonl.Close()
		recorders = append(recorders, jsonl)
	}

	sess := exchange.NewPaperSession(log, exchange.PaperConfig{
		Account:       cfg.Venue.Account,
		FailKeepalive: cfg.Venue.FailKeepalive,
	}, feed, account, paper.Tee(recorders...))

	detector, err := strategy.Build(cfg.Strategy.Mode, cfg.StrategyParams())
	if err != nil {
		log.Fatal().Err(err).Msg("build detector")
	}

	recovery := supervisor.NewRecovery(log, sess, cfg.Basket.Instruments, cfg.Recovery.Policy())
	eng := engine.New(log, engine.Params{
		Depth:       cfg.Basket.Depth,
		MinLevels:   cfg.Basket.MinLevels,
		WarmupTicks: cfg.Strategy.WarmupTicks,
	}, detector, cfg.Basket.Instruments, execution.NewExecutor(log, sess), recovery)
	liveness := supervisor.NewLiveness(log, sess, eng, cfg.Liveness.Interval(), cfg.Liveness.Timeout())

	log.Info().
		Str("mode", cfg.Strategy.Mode).
		Str("feed", cfg.Venue.Feed).
		Strs("instruments", cfg.Basket.Instruments).
		Msg("paper engine starting")

	runCtx, stop := context.WithCancel(ctx)
	var runErr error
	var wg conc.WaitGroup
	wg.Go(func() {
		defer stop()
		runErr = eng.Run(runCtx)
	})
	wg.Go(func() { liveness.Run(runCtx) })
	wg.Go(func() { reportStatus(runCtx, log, eng) })
	wg.Wait()

	_ = sess.Stop()
	logSummary(log, account, ledger)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error().Err(runErr).Msg("engine stopped")
		os.Exit(1)
	}
}

func reportStatus(ctx context.Context, log zerolog.Logger, eng *engine.Engine) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := eng.Snapshot()
			ev := log.Info().Str("state", snap.State.String()).Bool("pending", snap.Pending)
			if snap.Position != nil {
				ev = ev.Str("instrument", snap.Position.Instrument).
					Str("qty", snap.Position.Quantity.String()).
					Str("close_min", snap.Position.ClosingMin.String()).
					Str("close_max", snap.Position.ClosingMax.String())
			}
			ev.Msg("status")
		}
	}
}

func logSummary(log zerolog.Logger, account *paper.Account, ledger *paper.Ledger) {
	trips := ledger.Trips()
	wins := 0
	for _, trip := range trips {
		if trip.PnL > 0 {
			wins++
		}
		log.Debug().
			Str("instrument", trip.Instrument).
			Stringer("qty", trip.Quantity).
			Stringer("entry", trip.Entry).
			Stringer("exit", trip.Exit).
			Stringer("pnl", trip.PnL).
			Msg("round trip")
	}
	summary := account.Snapshot(nil)
	log.Info().
		Stringer("cash", summary.Cash).
		Stringer("realized_pnl", summary.RealizedPnL).
		Int("fills", len(ledger.Snapshot())).
		Int("round_trips", len(trips)).
		Int("winners", wins).
		Strs("open", account.OpenInstruments()).
		Msg("paper engine stopped")
}
