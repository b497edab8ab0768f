package report

import (
	"time"

	"github.com/carloswaibl/algotrader/internal/backtest"
	"github.com/carloswaibl/algotrader/internal/data"
	"github.com/carloswaibl/algotrader/internal/market"
)

const stampLayout = "2006-01-02 15:04:05"

func clock(t time.Time) string {
	return t.In(market.NewYork()).Format(stampLayout)
}

type TradeRecord struct {
	ID          string  `csv:"id"`
	OpenedAt    string  `csv:"opened_at"`
	ClosedAt    string  `csv:"closed_at"`
	Type        string  `csv:"type"`
	Expiration  string  `csv:"expiration"`
	ShortStrike float64 `csv:"short_strike"`
	LongStrike  float64 `csv:"long_strike"`
	Quantity    int     `csv:"quantity"`
	Credit      float64 `csv:"credit"`
	Debit       float64 `csv:"debit"`
	Commission  float64 `csv:"commission"`
	PnL         float64 `csv:"pnl"`
	ExitReason  string  `csv:"exit_reason"`
}

// EquityRow is one bar of the intraday equity curve.
type EquityRow struct {
	Timestamp string  `csv:"timestamp"`
	Equity    float64 `csv:"equity"`
}

// WriteTradeLog writes one row per round trip. An empty run still gets a
// header-only file.
func WriteTradeLog(path string, trades []backtest.Trade) error {
	rows := make([]TradeRecord, len(trades))
	for i, t := range trades {
		rows[i] = TradeRecord{
			ID:          t.ID,
			OpenedAt:    clock(t.OpenedAt),
			ClosedAt:    clock(t.ClosedAt),
			Type:        string(t.Spread.Type),
			Expiration:  t.Spread.Expiration,
			ShortStrike: t.Spread.ShortStrike,
			LongStrike:  t.Spread.LongStrike,
			Quantity:    t.Quantity,
			Credit:      t.Credit,
			Debit:       t.Debit,
			Commission:  t.Commission,
			PnL:         t.PnL,
			ExitReason:  t.ExitReason,
		}
	}
	return data.WriteCSV(path, &rows)
}

// WriteEquityCurve writes the per-bar marked equity in New York time.
func WriteEquityCurve(path string, curve []market.EquityPoint) error {
	rows := make([]EquityRow, len(curve))
	for i, p := range curve {
		rows[i] = EquityRow{Timestamp: clock(p.Date), Equity: p.Equity}
	}
	return data.WriteCSV(path, &rows)
}
