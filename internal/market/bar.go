package market

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // session clocks must not depend on the host zoneinfo
)

const (
	dateLayout     = "2006-01-02"
	compactLayout  = "20060102"
	indexPrefix    = "I:"
	sessionZone    = "America/New_York"
	sessionOpenMin = 9*60 + 30
)

// SessionMinutes is the length of the regular cash session.
const SessionMinutes = 390

// Bar is a one-minute (or coarser) OHLCV bar of the underlying.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	VWAP      float64
	Trades    int64
}

// EquityPoint is one observation of a backtest equity curve.
type EquityPoint struct {
	Date   time.Time
	Equity float64
}

var newYork = loadNewYork()

func loadNewYork() *time.Location {
	loc, err := time.LoadLocation(sessionZone)
	if err != nil {
		panic(fmt.Sprintf("market: loading %s: %v", sessionZone, err))
	}
	return loc
}

// NewYork returns the exchange time zone used for session clocks.
func NewYork() *time.Location {
	return newYork
}

// SessionDate returns the New York calendar date of t as YYYY-MM-DD.
func SessionDate(t time.Time) string {
	return t.In(newYork).Format(dateLayout)
}

// SessionOpen returns 09:30 New York on the given YYYY-MM-DD date.
func SessionOpen(date string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, date, newYork)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing session date %q: %w", date, err)
	}
	return d.Add(sessionOpenMin * time.Minute), nil
}

// Root strips the vendor index prefix: "I:NDX" -> "NDX".
func Root(ticker string) string {
	return strings.TrimPrefix(ticker, indexPrefix)
}

// CompactDate converts YYYY-MM-DD into YYYYMMDD.
func CompactDate(date string) (string, error) {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", date, err)
	}
	return d.Format(compactLayout), nil
}

// BarsFileName names the underlying bar file, e.g. NDX_20240510.parquet.
func BarsFileName(ticker, date string) (string, error) {
	compact, err := CompactDate(date)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s.parquet", Root(ticker), compact), nil
}

// OptionsFileName names the options chain file, e.g. NDX_OPTIONS_20240510.parquet.
func OptionsFileName(ticker, date string) (string, error) {
	compact, err := CompactDate(date)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_OPTIONS_%s.parquet", Root(ticker), compact), nil
}
