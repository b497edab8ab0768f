// Package report renders backtest results as a console table, CSV files
// and a PNG chart.
package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/carloswaibl/algotrader/internal/backtest"
)

var printer = message.NewPrinter(language.English)

func money(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// Summary writes the headline numbers of a run as a two-column table.
func Summary(w io.Writer, title string, r *backtest.Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{title, ""})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)

	s := r.Stats
	table.Append([]string{"Starting value", money(r.StartingCash)})
	table.Append([]string{"Final value", money(r.FinalValue)})
	table.Append([]string{"Total return", pct(s.TotalReturn)})
	table.Append([]string{"Net P&L", money(s.NetPnL)})
	table.Append([]string{"Commission", money(s.Commission)})
	table.Append([]string{"Trades", fmt.Sprintf("%d (%d won, %d lost)", s.Trades, s.Wins, s.Losses)})
	table.Append([]string{"Win rate", pct(s.WinRate)})
	table.Append([]string{"Max drawdown", pct(s.MaxDrawdown)})
	table.Append([]string{"Per-bar return", fmt.Sprintf("%.6f ± %.6f", s.MeanReturn, s.StdDevReturn)})
	table.Render()
}

// Trades lists every round trip.
func Trades(w io.Writer, trades []backtest.Trade) {
	if len(trades) == 0 {
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Opened", "Closed", "Spread", "Qty", "Credit", "Debit", "P&L", "Exit"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, t := range trades {
		table.Append([]string{
			clock(t.OpenedAt),
			clock(t.ClosedAt),
			t.Spread.String(),
			fmt.Sprintf("%d", t.Quantity),
			fmt.Sprintf("%.2f", t.Credit),
			fmt.Sprintf("%.2f", t.Debit),
			money(t.PnL),
			t.ExitReason,
		})
	}
	table.Render()
}
