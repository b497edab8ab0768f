package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/carloswaibl/algotrader/internal/config"
	"github.com/carloswaibl/algotrader/internal/data"
	"github.com/carloswaibl/algotrader/internal/market"
)

func TestParseDates(t *testing.T) {
	dates, err := parseDates([]string{"2025-06-13"})
	if err != nil || len(dates) != 1 || dates[0] != "2025-06-13" {
		t.Fatalf("single date: %v %v", dates, err)
	}

	dates, err = parseDates([]string{"2025-06-13", "2025-06-16"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2025-06-13", "2025-06-14", "2025-06-15", "2025-06-16"}
	if len(dates) != len(want) {
		t.Fatalf("got %v", dates)
	}
	for i := range want {
		if dates[i] != want[i] {
			t.Errorf("dates[%d] = %s, want %s", i, dates[i], want[i])
		}
	}

	if _, err := parseDates([]string{"2025-06-16", "2025-06-13"}); err == nil {
		t.Error("expected error for reversed range")
	}
	if _, err := parseDates([]string{"06/13/2025"}); err == nil {
		t.Error("expected error for bad format")
	}
}

func TestContractTypes(t *testing.T) {
	types, err := contractTypes([]string{"put", "CALL"})
	if err != nil {
		t.Fatal(err)
	}
	if types[0] != market.Put || types[1] != market.Call {
		t.Errorf("got %v", types)
	}
	if _, err := contractTypes([]string{"straddle"}); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestStrategyParams(t *testing.T) {
	c := &config.Config{
		Backtest: config.BacktestConfig{Stake: 3},
		Strategy: config.StrategyConfig{
			EntryTime:       "10:30",
			ExitTime:        "15:45",
			SpreadWidth:     10,
			DeltaTarget:     0.16,
			RSIPeriod:       14,
			RSIOverbought:   60,
			RSIOversold:     40,
			ProfitTargetPct: 0.5,
			StopLossPct:     1,
			FallbackCredit:  1.5,
		},
	}
	p, err := strategyParams(c)
	if err != nil {
		t.Fatal(err)
	}
	if p.EntryTime != market.NewClock(10, 30) || p.ExitTime != market.NewClock(15, 45) {
		t.Errorf("times = %s %s", p.EntryTime, p.ExitTime)
	}
	if p.Stake != 3 || p.SpreadWidth != 10 {
		t.Errorf("unexpected params %+v", p)
	}

	c.Strategy.ExitTime = "10:00"
	if _, err := strategyParams(c); err == nil {
		t.Error("expected error when exit precedes entry")
	}
}

func TestExportPaths(t *testing.T) {
	dir := t.TempDir()
	bars := filepath.Join(dir, "SPX_20250613.parquet")
	if err := os.WriteFile(bars, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	paths, err := exportPaths(dir, "I:SPX", []string{"2025-06-13", "other/NDX_20250613.parquet"})
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 || paths[0] != bars || paths[1] != "other/NDX_20250613.parquet" {
		t.Errorf("got %v", paths)
	}

	if _, err := exportPaths(dir, "I:SPX", []string{"2025-06-16"}); !errors.Is(err, data.ErrNotFound) {
		t.Errorf("missing session error = %v", err)
	}
}

func TestDateLabel(t *testing.T) {
	if got := dateLabel([]string{"2025-06-13"}); got != "2025-06-13" {
		t.Errorf("got %q", got)
	}
	if got := dateLabel([]string{"2025-06-13", "2025-06-16"}); got != "2025-06-13 to 2025-06-16" {
		t.Errorf("got %q", got)
	}
}
