// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"peeler-go/internal/fixed"
	"peeler-go/internal/strategy"
	"peeler-go/internal/supervisor"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Venue describes the session the engine trades through and where its market data comes from.
type Venue struct {
	Provider      string                 `yaml:"provider"`
	Account       string                 `yaml:"account"`
	Feed          string                 `yaml:"feed"`
	Symbols       map[string]string      `yaml:"symbols"`
	Seed          int64                  `yaml:"seed"`
	IntervalMs    int                    `yaml:"interval_ms"`
	StartPrices   map[string]fixed.Point `yaml:"start_prices"`
	BinanceURL    string                 `yaml:"binance_url"`
	FailKeepalive bool                   `yaml:"fail_keepalive"`
}

// Basket lists the traded instruments in evaluation order and how their books are read.
type Basket struct {
	Instruments []string          `yaml:"instruments"`
	Depth       int               `yaml:"depth"`
	MinLevels   int               `yaml:"min_levels"`
	Topology    strategy.Topology `yaml:"topology"`
}

// Strategy selects the detector and its knobs.
type Strategy struct {
	Mode                  string      `yaml:"mode"`
	Lot                   fixed.Point `yaml:"lot"`
	Leverage              int64       `yaml:"leverage"`
	ConsecutiveThreshold  int         `yaml:"consecutive_threshold"`
	SpreadMultiplierOpen  fixed.Point `yaml:"spread_multiplier_open"`
	SpreadMultiplierClose fixed.Point `yaml:"spread_multiplier_close"`
	WarmupTicks           int         `yaml:"warmup_ticks"`
}

// Liveness configures the keepalive probe.
type Liveness struct {
	IntervalSecs int `yaml:"interval_secs"`
	TimeoutSecs  int `yaml:"timeout_secs"`
}

// Recovery configures restart pacing after session faults.
type Recovery struct {
	InitialBackoffMs    int     `yaml:"initial_backoff_ms"`
	MaxBackoffMs        int     `yaml:"max_backoff_ms"`
	Multiplier          float64 `yaml:"multiplier"`
	HealthyAfterSecs    int     `yaml:"healthy_after_secs"`
	MaxAttempts         int     `yaml:"max_attempts"`
	BreakerThreshold    int     `yaml:"breaker_threshold"`
	BreakerWindowSecs   int     `yaml:"breaker_window_secs"`
	BreakerCooldownSecs int     `yaml:"breaker_cooldown_secs"`
}

// Paper captures paper-trading account settings.
type Paper struct {
	StartingCash fixed.Point `yaml:"starting_cash"`
	FillsPath    string      `yaml:"fills_path"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Venue    Venue    `yaml:"venue"`
	Basket   Basket   `yaml:"basket"`
	Strategy Strategy `yaml:"strategy"`
	Liveness Liveness `yaml:"liveness"`
	Recovery Recovery `yaml:"recovery"`
	Paper    Paper    `yaml:"paper"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides selected fields from PEELER_* variables read through lookup (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("PEELER_LOG_LEVEL"); ok && v != "" {
		c.App.LogLevel = v
	}
	if v, ok := lookup("PEELER_METRICS_ADDR"); ok && v != "" {
		c.App.MetricsAddr = v
	}
	if v, ok := lookup("PEELER_FEED"); ok && v != "" {
		c.Venue.Feed = v
	}
	if v, ok := lookup("PEELER_ACCOUNT"); ok && v != "" {
		c.Venue.Account = v
	}
}

// ApplyDefaults fills every zero value the runtime needs.
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "peeler"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Venue.Provider == "" {
		c.Venue.Provider = "paper"
	}
	if c.Venue.Feed == "" {
		c.Venue.Feed = "stub"
	}
	if c.Venue.IntervalMs <= 0 {
		c.Venue.IntervalMs = 500
	}

	c.Strategy.Mode = strategy.NormalizeMode(c.Strategy.Mode)
	if c.Strategy.Mode == strategy.ModeTriangle && len(c.Basket.Instruments) == 0 {
		c.Basket.Instruments = c.Basket.Topology.Legs()
	}
	if c.Basket.MinLevels <= 0 {
		c.Basket.MinLevels = 5
	}
	if c.Strategy.Lot <= 0 {
		c.Strategy.Lot = fixed.FromInt(10)
	}
	if c.Strategy.Leverage <= 0 {
		c.Strategy.Leverage = 8
	}
	if c.Strategy.ConsecutiveThreshold <= 0 {
		c.Strategy.ConsecutiveThreshold = 3
	}
	if c.Strategy.SpreadMultiplierOpen <= 0 {
		c.Strategy.SpreadMultiplierOpen = fixed.FromInt(1)
	}
	if c.Strategy.SpreadMultiplierClose <= 0 {
		c.Strategy.SpreadMultiplierClose = fixed.FromInt(2)
		if c.Strategy.Mode == strategy.ModeTriangle {
			c.Strategy.SpreadMultiplierClose = fixed.FromInt(1)
		}
	}
	if c.Strategy.WarmupTicks <= 0 {
		c.Strategy.WarmupTicks = 8
	}

	if c.Liveness.IntervalSecs <= 0 {
		c.Liveness.IntervalSecs = 300
	}
	if c.Liveness.TimeoutSecs <= 0 {
		c.Liveness.TimeoutSecs = 30
	}

	def := supervisor.DefaultPolicy()
	if c.Recovery.InitialBackoffMs <= 0 {
		c.Recovery.InitialBackoffMs = int(def.InitialBackoff / time.Millisecond)
	}
	if c.Recovery.MaxBackoffMs <= 0 {
		c.Recovery.MaxBackoffMs = int(def.MaxBackoff / time.Millisecond)
	}
	if c.Recovery.Multiplier < 1 {
		c.Recovery.Multiplier = def.Multiplier
	}
	if c.Recovery.HealthyAfterSecs <= 0 {
		c.Recovery.HealthyAfterSecs = int(def.HealthyAfter / time.Second)
	}

	if c.Paper.StartingCash <= 0 {
		c.Paper.StartingCash = fixed.FromInt(100000)
	}
}

// Validate rejects configurations the engine cannot trade with.
func (c *Config) Validate() error {
	if len(c.Basket.Instruments) == 0 {
		return errors.New("basket.instruments must list at least one instrument")
	}
	if c.Basket.Depth < 0 {
		return fmt.Errorf("basket.depth must be >= 0, got %d", c.Basket.Depth)
	}
	if c.Basket.MinLevels <= c.Basket.Depth {
		return fmt.Errorf("basket.min_levels (%d) must exceed basket.depth (%d)", c.Basket.MinLevels, c.Basket.Depth)
	}
	switch c.Venue.Feed {
	case "stub", "binance":
	default:
		return fmt.Errorf("unknown venue.feed %q", c.Venue.Feed)
	}
	if c.Venue.Provider != "paper" {
		return fmt.Errorf("unsupported venue.provider %q", c.Venue.Provider)
	}

	switch c.Strategy.Mode {
	case strategy.ModeTrend:
	case strategy.ModeTriangle:
		if err := c.Basket.Topology.Validate(); err != nil {
			return err
		}
		for _, leg := range c.Basket.Topology.Legs() {
			if !contains(c.Basket.Instruments, leg) {
				return fmt.Errorf("triangle leg %q is not in basket.instruments", leg)
			}
		}
	default:
		return fmt.Errorf("unknown strategy.mode %q", c.Strategy.Mode)
	}
	return nil
}

// StrategyParams converts the strategy section into detector parameters.
func (c *Config) StrategyParams() strategy.Params {
	return strategy.Params{
		Lot:                   c.Strategy.Lot,
		Leverage:              c.Strategy.Leverage,
		ConsecutiveThreshold:  c.Strategy.ConsecutiveThreshold,
		SpreadMultiplierOpen:  c.Strategy.SpreadMultiplierOpen,
		SpreadMultiplierClose: c.Strategy.SpreadMultiplierClose,
		Topology:              c.Basket.Topology,
	}
}

// Policy converts the recovery section into a supervisor policy.
func (r Recovery) Policy() supervisor.Policy {
	return supervisor.Policy{
		InitialBackoff:   time.Duration(r.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:       time.Duration(r.MaxBackoffMs) * time.Millisecond,
		Multiplier:       r.Multiplier,
		HealthyAfter:     time.Duration(r.HealthyAfterSecs) * time.Second,
		MaxAttempts:      r.MaxAttempts,
		BreakerThreshold: r.BreakerThreshold,
		BreakerWindow:    time.Duration(r.BreakerWindowSecs) * time.Second,
		BreakerCooldown:  time.Duration(r.BreakerCooldownSecs) * time.Second,
	}
}

// Interval returns the keepalive period.
func (l Liveness) Interval() time.Duration { return time.Duration(l.IntervalSecs) * time.Second }

// Timeout returns the keepalive deadline.
func (l Liveness) Timeout() time.Duration { return time.Duration(l.TimeoutSecs) * time.Second }

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
