package market

import (
	"fmt"
	"time"

	"github.com/scmhub/calendar"
)

var nyse = calendar.XNYS()

// IsTradingDay reports whether the YYYY-MM-DD date is an NYSE business day.
func IsTradingDay(date string) bool {
	// noon New York avoids zone edges
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" 12:00", newYork)
	if err != nil {
		return false
	}
	return nyse.IsBusinessDay(t)
}

// TradingDays returns the NYSE business days from start to end inclusive.
func TradingDays(start, end string) ([]string, error) {
	from, err := time.Parse(dateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	to, err := time.Parse(dateLayout, end)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("end date %s is before start date %s", end, start)
	}

	var days []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		date := d.Format(dateLayout)
		if IsTradingDay(date) {
			days = append(days, date)
		}
	}
	return days, nil
}
