package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"peeler-go/internal/config"
	"peeler-go/internal/strategy"
)

func main() {
	configPath := flag.String("config", "configs/paper.yaml", "path to the YAML configuration")
	flag.Parse()
	path := filepath.Clean(*configPath)

	reader := bufio.NewReader(os.Stdin)

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== Peeler Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit strategy knobs")
		fmt.Println("3) Edit liveness and recovery")
		fmt.Println("4) Save config")
		fmt.Println("5) Launch paper engine")
		fmt.Println("6) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editStrategy(reader, cfg)
		case "3":
			editSupervision(reader, cfg)
		case "4":
			if err := checkAndSave(path, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "5":
			launchPaper(reader, path)
		case "6":
			reloaded, err := config.Load(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Venue: %s account %q, feed %s\n", cfg.Venue.Provider, cfg.Venue.Account, cfg.Venue.Feed)
	fmt.Println("Instruments:", strings.Join(cfg.Basket.Instruments, ", "))
	fmt.Printf("Depth: %d (min levels %d)\n", cfg.Basket.Depth, cfg.Basket.MinLevels)
	fmt.Printf("Mode: %s\n", cfg.Strategy.Mode)
	if cfg.Strategy.Mode == strategy.ModeTriangle {
		t := cfg.Basket.Topology
		fmt.Printf("Triangle: %s = %s x %s, leverage %d\n", t.Cross, t.Left, t.Right, cfg.Strategy.Leverage)
	} else {
		fmt.Printf("Trend: lot %s, threshold %d ticks\n", cfg.Strategy.Lot, cfg.Strategy.ConsecutiveThreshold)
	}
	fmt.Printf("Spread multipliers: open %s, close %s\n", cfg.Strategy.SpreadMultiplierOpen, cfg.Strategy.SpreadMultiplierClose)
	fmt.Printf("Keepalive every %ds (timeout %ds)\n", cfg.Liveness.IntervalSecs, cfg.Liveness.TimeoutSecs)
	fmt.Printf("Recovery backoff %dms..%dms x%.2f, max attempts %d\n",
		cfg.Recovery.InitialBackoffMs, cfg.Recovery.MaxBackoffMs, cfg.Recovery.Multiplier, cfg.Recovery.MaxAttempts)
	fmt.Printf("Starting cash: %s\n", cfg.Paper.StartingCash)
}

func editStrategy(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Strategy ---")
	cfg.Strategy.Mode = promptChoice(reader, "Mode", cfg.Strategy.Mode, strategy.ModeTrend, strategy.ModeTriangle)
	cfg.Basket.Instruments = promptList(reader, "Instruments", cfg.Basket.Instruments)
	cfg.Basket.Depth = promptInt(reader, "Book depth", cfg.Basket.Depth)
	cfg.Strategy.Lot = promptPoint(reader, "Lot", cfg.Strategy.Lot)
	cfg.Strategy.ConsecutiveThreshold = promptInt(reader, "Consecutive tick threshold", cfg.Strategy.ConsecutiveThreshold)
	cfg.Strategy.Leverage = int64(promptInt(reader, "Leverage", int(cfg.Strategy.Leverage)))
	cfg.Strategy.SpreadMultiplierOpen = promptPoint(reader, "Open spread multiplier", cfg.Strategy.SpreadMultiplierOpen)
	cfg.Strategy.SpreadMultiplierClose = promptPoint(reader, "Close spread multiplier", cfg.Strategy.SpreadMultiplierClose)
	cfg.Paper.StartingCash = promptPoint(reader, "Starting cash", cfg.Paper.StartingCash)
}

func editSupervision(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Liveness / Recovery ---")
	cfg.Liveness.IntervalSecs = promptInt(reader, "Keepalive interval (s)", cfg.Liveness.IntervalSecs)
	cfg.Liveness.TimeoutSecs = promptInt(reader, "Keepalive timeout (s)", cfg.Liveness.TimeoutSecs)
	cfg.Recovery.InitialBackoffMs = promptInt(reader, "Initial backoff (ms)", cfg.Recovery.InitialBackoffMs)
	cfg.Recovery.MaxBackoffMs = promptInt(reader, "Max backoff (ms)", cfg.Recovery.MaxBackoffMs)
	cfg.Recovery.Multiplier = promptFloat(reader, "Backoff multiplier", cfg.Recovery.Multiplier)
	cfg.Recovery.MaxAttempts = promptInt(reader, "Max attempts (0 = forever)", cfg.Recovery.MaxAttempts)
	cfg.Recovery.BreakerThreshold = promptInt(reader, "Breaker threshold (0 = off)", cfg.Recovery.BreakerThreshold)
}

// checkAndSave validates a defaulted copy so the file keeps only what the operator set.
func checkAndSave(path string, cfg *config.Config) error {
	probe := *cfg
	probe.ApplyDefaults()
	if err := probe.Validate(); err != nil {
		return err
	}
	return config.Save(path, cfg)
}

func launchPaper(reader *bufio.Reader, path string) {
	fmt.Println("Launching paper engine (Ctrl+C to stop)...")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/paper", "-config", path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start engine: %v\n", err)
		return
	}

	go func() {
		_ = cmd.Wait()
		cancel()
	}()

	fmt.Print("\nPress ENTER to stop the engine and return to menu...")
	_, _ = reader.ReadString('\n')
	cancel()
	time.Sleep(500 * time.Millisecond)
}
