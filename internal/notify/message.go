package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/carloswaibl/algotrader/internal/backtest"
	"github.com/carloswaibl/algotrader/internal/download"
)

// FormatSuccessMessage creates a success notification body.
func FormatSuccessMessage(result *download.BatchResult, duration time.Duration) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Total: %d datasets\n", result.Total))
	sb.WriteString(fmt.Sprintf("Success: %d\n", result.Success))
	sb.WriteString(fmt.Sprintf("Rows: %d\n", result.Rows))
	sb.WriteString(fmt.Sprintf("Skipped: %d\n", result.Skipped))
	sb.WriteString(fmt.Sprintf("Not Found: %d\n", result.NotFound))
	sb.WriteString(fmt.Sprintf("Duration: %s", duration.Round(time.Second)))

	return sb.String()
}

// FormatFailureMessage creates a failure notification body.
func FormatFailureMessage(result *download.BatchResult, duration time.Duration, err error) string {
	var sb strings.Builder

	if result != nil {
		sb.WriteString(fmt.Sprintf("Total: %d datasets\n", result.Total))
		sb.WriteString(fmt.Sprintf("Success: %d\n", result.Success))
		sb.WriteString(fmt.Sprintf("Failed: %d\n", result.Failed))
		sb.WriteString(fmt.Sprintf("Skipped: %d\n", result.Skipped))
	}
	sb.WriteString(fmt.Sprintf("Duration: %s", duration.Round(time.Second)))

	if err != nil {
		sb.WriteString(fmt.Sprintf("\n\nError: %v", err))
	}

	// Include first 3 error messages if available
	if result != nil && len(result.Errors) > 0 {
		sb.WriteString("\n\nErrors:\n")
		limit := 3
		if len(result.Errors) < limit {
			limit = len(result.Errors)
		}
		for i := 0; i < limit; i++ {
			sb.WriteString(fmt.Sprintf("- %s\n", result.Errors[i]))
		}
		if len(result.Errors) > 3 {
			sb.WriteString(fmt.Sprintf("... and %d more errors", len(result.Errors)-3))
		}
	}

	return sb.String()
}

// FormatBacktestMessage summarises a finished run.
func FormatBacktestMessage(r *backtest.Result) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Start: %.2f\n", r.StartingCash))
	sb.WriteString(fmt.Sprintf("Final: %.2f\n", r.FinalValue))
	sb.WriteString(fmt.Sprintf("Return: %.2f%%\n", r.Stats.TotalReturn*100))
	sb.WriteString(fmt.Sprintf("Trades: %d", r.Stats.Trades))
	for _, t := range r.Trades {
		sb.WriteString(fmt.Sprintf("\n- %s x%d %s: %.2f", t.Spread, t.Quantity, t.ExitReason, t.PnL))
	}

	return sb.String()
}
