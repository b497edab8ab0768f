package backtest

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/carloswaibl/algotrader/internal/market"
)

type Result struct {
	StartingCash float64
	FinalValue   float64
	Trades       []Trade
	Orders       []Order
	EquityCurve  []market.EquityPoint
	Stats        Stats
}

// Changed reports whether the run moved the account at all.
func (r *Result) Changed() bool {
	return math.Abs(r.FinalValue-r.StartingCash) > 1e-9
}

type Stats struct {
	TotalReturn  float64 // fraction of starting cash
	MeanReturn   float64 // per bar
	StdDevReturn float64 // per bar
	MaxDrawdown  float64 // fraction of the running peak
	NetPnL       float64
	Commission   float64
	Trades       int
	Wins         int
	Losses       int
	WinRate      float64
}

func ComputeStats(startingCash float64, curve []market.EquityPoint, trades []Trade) Stats {
	var s Stats
	if len(curve) > 0 && startingCash != 0 {
		s.TotalReturn = curve[len(curve)-1].Equity/startingCash - 1
	}

	returns := make(stats.Float64Data, 0, len(curve))
	prev := startingCash
	peak := startingCash
	for _, p := range curve {
		if prev != 0 {
			returns = append(returns, p.Equity/prev-1)
		}
		prev = p.Equity
		peak = math.Max(peak, p.Equity)
		if peak > 0 {
			s.MaxDrawdown = math.Max(s.MaxDrawdown, (peak-p.Equity)/peak)
		}
	}
	if len(returns) > 0 {
		s.MeanReturn, _ = stats.Mean(returns)
		s.StdDevReturn, _ = stats.StandardDeviation(returns)
	}

	pnls := make(stats.Float64Data, 0, len(trades))
	fees := make(stats.Float64Data, 0, len(trades))
	for _, t := range trades {
		pnls = append(pnls, t.PnL)
		fees = append(fees, t.Commission)
		if t.PnL > 0 {
			s.Wins++
		} else {
			s.Losses++
		}
	}
	s.Trades = len(trades)
	if s.Trades > 0 {
		s.NetPnL, _ = stats.Sum(pnls)
		s.Commission, _ = stats.Sum(fees)
		s.WinRate = float64(s.Wins) / float64(s.Trades)
	}
	return s
}
