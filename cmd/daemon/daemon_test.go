package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carloswaibl/algotrader/internal/market"
)

func TestSchedulerIsDue(t *testing.T) {
	s := NewScheduler(market.NewClock(16, 30))

	// 2025-06-13 16:29 New York is 20:29 UTC
	s.now = func() time.Time { return time.Date(2025, 6, 13, 20, 29, 0, 0, time.UTC) }
	if s.IsDue() {
		t.Error("16:29 should not be due")
	}
	s.now = func() time.Time { return time.Date(2025, 6, 13, 20, 30, 0, 0, time.UTC) }
	if !s.IsDue() {
		t.Error("16:30 should be due")
	}
	if got := s.TodayDate(); got != "2025-06-13" {
		t.Errorf("TodayDate = %s", got)
	}
}

func TestSchedulerTodayUsesNewYork(t *testing.T) {
	s := NewScheduler(market.NewClock(16, 30))
	// 02:00 UTC on the 14th is still the 13th in New York
	s.now = func() time.Time { return time.Date(2025, 6, 14, 2, 0, 0, 0, time.UTC) }
	if got := s.TodayDate(); got != "2025-06-13" {
		t.Errorf("TodayDate = %s, want 2025-06-13", got)
	}
}

func TestSchedulerMarketDay(t *testing.T) {
	s := NewScheduler(market.NewClock(16, 30))
	if !s.IsMarketDay("2025-06-13") {
		t.Error("Friday 2025-06-13 is a trading day")
	}
	if s.IsMarketDay("2025-06-14") {
		t.Error("Saturday is not a trading day")
	}
	if s.IsMarketDay("2025-12-25") {
		t.Error("Christmas is not a trading day")
	}
}

func TestDownloadTracker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", ".download_state.json")
	tracker := NewDownloadTracker(path)

	if got := tracker.GetLastDownloadDate(); got != "" {
		t.Errorf("fresh tracker = %q", got)
	}
	if err := tracker.SetLastDownloadDate("2025-06-13"); err != nil {
		t.Fatal(err)
	}
	if !tracker.AlreadyDownloaded("2025-06-13") {
		t.Error("expected date to be recorded")
	}
	if tracker.AlreadyDownloaded("2025-06-16") {
		t.Error("unexpected match for another date")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary state file left behind")
	}
}

func TestDownloadTrackerCorruptState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("2025-06-13\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if got := NewDownloadTracker(path).GetLastDownloadDate(); got != "" {
		t.Errorf("corrupt state = %q, want empty", got)
	}
}
