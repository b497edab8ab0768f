package download

import (
	"fmt"
	"path/filepath"

	"github.com/carloswaibl/algotrader/internal/market"
)

// Dataset selects what a task downloads for its ticker and date.
type Dataset string

const (
	DatasetBars    Dataset = "bars"
	DatasetOptions Dataset = "options"
)

type Task struct {
	Ticker  string
	Dataset Dataset
	Date    string
}

// FileName is the Parquet file the task produces.
func (t Task) FileName() (string, error) {
	if t.Dataset == DatasetOptions {
		return market.OptionsFileName(t.Ticker, t.Date)
	}
	return market.BarsFileName(t.Ticker, t.Date)
}

func (t Task) OutputPath(baseDir string) string {
	name, err := t.FileName()
	if err != nil {
		// unparseable dates still get a unique, obviously wrong name
		name = fmt.Sprintf("%s_%s_%s.invalid", market.Root(t.Ticker), t.Dataset, t.Date)
	}
	return filepath.Join(baseDir, name)
}

// ArchivePath is the zstd JSONL audit copy next to the Parquet output.
func (t Task) ArchivePath(baseDir string) string {
	return t.OutputPath(baseDir) + ".jsonl.zst"
}

func (t Task) String() string {
	return fmt.Sprintf("%s/%s/%s", t.Date, t.Ticker, t.Dataset)
}

type TaskResult struct {
	Task      Task
	Success   bool
	Skipped   bool
	NotFound  bool
	Rows      int
	BytesSize int64
	Error     error
}
