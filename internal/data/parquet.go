package data

import (
	"fmt"
	"io"
	"sort"

	"github.com/parquet-go/parquet-go"

	"github.com/carloswaibl/algotrader/internal/market"
)

// WriteBars encodes bars as a Parquet file.
func WriteBars(w io.Writer, bars []market.Bar) error {
	rows := make([]BarRecord, len(bars))
	for i, b := range bars {
		rows[i] = NewBarRecord(b)
	}
	if err := parquet.Write(w, rows); err != nil {
		return fmt.Errorf("writing bar parquet: %w", err)
	}
	return nil
}

// WriteOptions encodes option records as a Parquet file.
func WriteOptions(w io.Writer, rows []OptionRecord) error {
	if err := parquet.Write(w, rows); err != nil {
		return fmt.Errorf("writing options parquet: %w", err)
	}
	return nil
}

// ReadBarRecords reads the raw records of a bar file.
func ReadBarRecords(path string) ([]BarRecord, error) {
	rows, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rows, nil
}

// ReadOptionRecords reads the raw records of an options file.
func ReadOptionRecords(path string) ([]OptionRecord, error) {
	rows, err := parquet.ReadFile[OptionRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rows, nil
}

// ReadBars reads a bar file and returns bars in strictly increasing time order.
// The second result is the number of duplicate timestamps dropped.
func ReadBars(path string) ([]market.Bar, int, error) {
	rows, err := ReadBarRecords(path)
	if err != nil {
		return nil, 0, err
	}
	bars := make([]market.Bar, len(rows))
	for i, r := range rows {
		bars[i] = r.Bar()
	}
	bars, dropped := SortBars(bars)
	return bars, dropped, nil
}

// ReadChain reads an options file into chain rows. Rows with a non-positive
// strike or an unknown contract type are rejected.
func ReadChain(path string) ([]market.ChainRow, error) {
	recs, err := ReadOptionRecords(path)
	if err != nil {
		return nil, err
	}
	rows := make([]market.ChainRow, 0, len(recs))
	for i, rec := range recs {
		if rec.Strike <= 0 {
			return nil, fmt.Errorf("%s row %d: non-positive strike %v", path, i, rec.Strike)
		}
		row, err := rec.ChainRow()
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SortBars orders bars by time and keeps the first bar of each timestamp.
func SortBars(bars []market.Bar) ([]market.Bar, int) {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	out := bars[:0]
	dropped := 0
	for i, b := range bars {
		if i > 0 && b.Timestamp.Equal(out[len(out)-1].Timestamp) {
			dropped++
			continue
		}
		out = append(out, b)
	}
	return out, dropped
}
