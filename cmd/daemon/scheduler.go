package main

import (
	"time"

	"github.com/carloswaibl/algotrader/internal/market"
)

// Scheduler decides when the daily download is due, in New York time.
type Scheduler struct {
	at  market.Clock
	now func() time.Time
}

func NewScheduler(at market.Clock) *Scheduler {
	return &Scheduler{at: at, now: time.Now}
}

// IsDue reports whether the scheduled time has passed today
func (s *Scheduler) IsDue() bool {
	return market.ClockOf(s.now()) >= s.at
}

// TodayDate returns today's date in YYYY-MM-DD format in New York
func (s *Scheduler) TodayDate() string {
	return market.SessionDate(s.now())
}

// IsMarketDay checks if the given date is a trading day (not weekend/holiday)
func (s *Scheduler) IsMarketDay(date string) bool {
	return market.IsTradingDay(date)
}

// Schedule is the configured New York clock time.
func (s *Scheduler) Schedule() market.Clock {
	return s.at
}
