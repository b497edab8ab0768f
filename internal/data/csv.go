package data

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/carloswaibl/algotrader/internal/market"
)

// WriteCSV marshals a slice of csv-tagged structs to path, creating parent
// directories. rows must be a pointer to a slice.
func WriteCSV(path string, rows interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := gocsv.MarshalFile(rows, file); err != nil {
		return fmt.Errorf("marshalling CSV: %w", err)
	}
	return nil
}

// WriteEquityCSV writes a date,equity curve.
func WriteEquityCSV(path string, points []market.EquityPoint) error {
	rows := make([]EquityRecord, len(points))
	for i, p := range points {
		rows[i] = EquityRecord{Date: p.Date.Format("2006-01-02"), Equity: p.Equity}
	}
	return WriteCSV(path, &rows)
}

// ReadEquityCSV reads a date,equity curve.
func ReadEquityCSV(path string) ([]EquityRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var rows []EquityRecord
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return rows, nil
}

// IsOptionsFile reports whether a Parquet file name is an options chain.
func IsOptionsFile(path string) bool {
	return strings.Contains(filepath.Base(path), "_OPTIONS_")
}

// ExportCSV converts a bar or options Parquet file into CSV.
func ExportCSV(parquetPath, csvPath string) (int, error) {
	if IsOptionsFile(parquetPath) {
		rows, err := ReadOptionRecords(parquetPath)
		if err != nil {
			return 0, err
		}
		return len(rows), WriteCSV(csvPath, &rows)
	}

	rows, err := ReadBarRecords(parquetPath)
	if err != nil {
		return 0, err
	}
	return len(rows), WriteCSV(csvPath, &rows)
}
