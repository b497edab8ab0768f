package data

import (
	"time"

	"github.com/carloswaibl/algotrader/internal/market"
)

// ReplayFrame is one bar of a session replay with the chain snapshot in force
// at that bar.
type ReplayFrame struct {
	Root  string         `json:"root"`
	Date  string         `json:"date"`
	Index int            `json:"index"`
	Total int            `json:"total"`
	Bar   BarRecord      `json:"bar"`
	Chain []OptionRecord `json:"chain,omitempty"`
}

// NewReplayFrame builds the frame for bars[idx]. chain may be nil.
func NewReplayFrame(root, date string, idx int, bars []market.Bar, chain *Chain, maxAge time.Duration) ReplayFrame {
	bar := bars[idx]
	frame := ReplayFrame{
		Root:  root,
		Date:  date,
		Index: idx,
		Total: len(bars),
		Bar:   NewBarRecord(bar),
	}
	if rows := chain.AsOf(bar.Timestamp, maxAge); len(rows) > 0 {
		frame.Chain = OptionRecords(rows)
	}
	return frame
}

// OptionRecords converts chain rows for serving; close and volume are left empty.
func OptionRecords(rows []market.ChainRow) []OptionRecord {
	out := make([]OptionRecord, len(rows))
	for i, row := range rows {
		out[i] = NewOptionRecord(row, 0, 0)
	}
	return out
}
