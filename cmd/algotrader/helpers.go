package main

import (
	"fmt"
	"time"

	"github.com/carloswaibl/algotrader/internal/config"
	"github.com/carloswaibl/algotrader/internal/market"
	"github.com/carloswaibl/algotrader/internal/mock"
	"github.com/carloswaibl/algotrader/internal/notify"
	"github.com/carloswaibl/algotrader/internal/strategy"
)

// parseDates parses date arguments and returns a list of dates
func parseDates(args []string) ([]string, error) {
	const layout = "2006-01-02"

	start, err := time.Parse(layout, args[0])
	if err != nil {
		return nil, fmt.Errorf("invalid start date format (use YYYY-MM-DD): %w", err)
	}

	if len(args) == 1 {
		return []string{args[0]}, nil
	}

	end, err := time.Parse(layout, args[1])
	if err != nil {
		return nil, fmt.Errorf("invalid end date format (use YYYY-MM-DD): %w", err)
	}

	if end.Before(start) {
		return nil, fmt.Errorf("end date must be after start date")
	}

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(layout))
	}

	return dates, nil
}

func contractTypes(names []string) ([]market.ContractType, error) {
	types := make([]market.ContractType, 0, len(names))
	for _, name := range names {
		ct, err := market.ParseContractType(name)
		if err != nil {
			return nil, err
		}
		types = append(types, ct)
	}
	return types, nil
}

// strategyParams maps the strategy and backtest sections onto strategy.Params.
func strategyParams(c *config.Config) (strategy.Params, error) {
	s := c.Strategy
	if err := s.Validate(); err != nil {
		return strategy.Params{}, err
	}
	entry, _ := market.ParseClock(s.EntryTime)
	exit, _ := market.ParseClock(s.ExitTime)

	return strategy.Params{
		EntryTime:       entry,
		ExitTime:        exit,
		SpreadWidth:     s.SpreadWidth,
		DeltaTarget:     s.DeltaTarget,
		RSIPeriod:       s.RSIPeriod,
		RSIOverbought:   s.RSIOverbought,
		RSIOversold:     s.RSIOversold,
		ProfitTargetPct: s.ProfitTargetPct,
		StopLossPct:     s.StopLossPct,
		FallbackCredit:  s.FallbackCredit,
		Stake:           c.Backtest.Stake,
	}, nil
}

func mockConfig(c *config.Config) (mock.Config, error) {
	m := c.Mock
	types, err := contractTypes(m.ContractTypes)
	if err != nil {
		return mock.Config{}, err
	}
	return mock.Config{
		Ticker:         c.Underlying,
		Date:           m.Date,
		Seed:           m.Seed,
		StartPrice:     m.StartPrice,
		Step:           m.Step,
		Minutes:        m.Minutes,
		SampleEvery:    m.SampleEvery,
		StrikeStep:     m.StrikeStep,
		StrikeOffsets:  m.StrikeOffsets,
		ContractTypes:  types,
		Volatility:     m.Volatility,
		RiskFreeRate:   m.RiskFreeRate,
		HalfSpread:     m.HalfSpread,
		EquityStart:    m.EquityStart,
		EquityEnd:      m.EquityEnd,
		StartingEquity: m.StartingEquity,
		EquityStep:     m.EquityStep,
	}, nil
}

func newNotifier(c *config.Config) (notify.Notifier, error) {
	nc := &notify.Config{
		Enabled:  c.Notify.Enabled,
		Server:   c.Notify.Server,
		Topic:    c.Notify.Topic,
		Priority: c.Notify.Priority,
		Tags:     c.Notify.Tags,
		Token:    c.Notify.Token,
	}
	if err := nc.Validate(); err != nil {
		return nil, err
	}
	return notify.New(nc, logger), nil
}

func dateLabel(dates []string) string {
	if len(dates) == 1 {
		return dates[0]
	}
	return dates[0] + " to " + dates[len(dates)-1]
}
