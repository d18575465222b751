package main

import (
	"bufio"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"peeler-go/internal/config"
	"peeler-go/internal/fixed"
	"peeler-go/internal/strategy"
)

func input(lines ...string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func TestPromptsKeepCurrentOnBlankOrInvalid(t *testing.T) {
	r := input("", "abc", "", "1.2.3", "", "carrier")
	if got := promptInt(r, "n", 3); got != 3 {
		t.Fatalf("blank int changed value: %d", got)
	}
	if got := promptInt(r, "n", 3); got != 3 {
		t.Fatalf("invalid int changed value: %d", got)
	}
	if got := promptPoint(r, "p", fixed.FromInt(10)); got != fixed.FromInt(10) {
		t.Fatalf("blank decimal changed value: %s", got)
	}
	if got := promptPoint(r, "p", fixed.FromInt(10)); got != fixed.FromInt(10) {
		t.Fatalf("invalid decimal changed value: %s", got)
	}
	if got := promptList(r, "l", []string{"EUR/USD"}); !reflect.DeepEqual(got, []string{"EUR/USD"}) {
		t.Fatalf("blank list changed value: %v", got)
	}
	if got := promptChoice(r, "m", strategy.ModeTrend, strategy.ModeTrend, strategy.ModeTriangle); got != strategy.ModeTrend {
		t.Fatalf("unknown choice accepted: %s", got)
	}
}

func TestPromptsParseInput(t *testing.T) {
	r := input("7", "0.0025", "EUR/USD, ,GBP/USD", "TRIANGLE", "1.5")
	if got := promptInt(r, "n", 3); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := promptPoint(r, "p", 0); got != fixed.MustParse("0.0025") {
		t.Fatalf("expected 0.0025, got %s", got)
	}
	if got := promptList(r, "l", nil); !reflect.DeepEqual(got, []string{"EUR/USD", "GBP/USD"}) {
		t.Fatalf("unexpected list %v", got)
	}
	if got := promptChoice(r, "m", strategy.ModeTrend, strategy.ModeTrend, strategy.ModeTriangle); got != strategy.ModeTriangle {
		t.Fatalf("expected triangle, got %s", got)
	}
	if got := promptFloat(r, "f", 1.8); got != 1.5 {
		t.Fatalf("expected 1.5, got %v", got)
	}
}

func TestCheckAndSaveRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	cfg := &config.Config{}
	if err := checkAndSave(path, cfg); err == nil {
		t.Fatalf("expected validation error for empty basket")
	}

	cfg.Basket.Instruments = []string{"EUR/USD"}
	if err := checkAndSave(path, cfg); err != nil {
		t.Fatalf("checkAndSave returned error: %v", err)
	}
	if cfg.Strategy.Mode != "" {
		t.Fatalf("defaults leaked into the edited config: %+v", cfg.Strategy)
	}
	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !reflect.DeepEqual(loaded.Basket.Instruments, []string{"EUR/USD"}) {
		t.Fatalf("unexpected saved basket %v", loaded.Basket.Instruments)
	}
}
