package data

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/market"
)

var (
	ErrNotFound = errors.New("data not found")
	ErrNoBars   = errors.New("bar file contains no bars")
)

// Loader provides access to stored bars and chains for an underlying and date.
type Loader interface {
	// LoadBars returns the session's bars in strictly increasing time order
	LoadBars(ticker, date string) ([]market.Bar, error)

	// LoadChain returns the session's options chain index
	LoadChain(ticker, date string) (*Chain, error)

	// Exists checks if bars exist for the given underlying and date
	Exists(ticker, date string) bool

	// Dates lists the YYYY-MM-DD dates with bar files for the underlying
	Dates(ticker string) ([]string, error)
}

// FileLoader reads Parquet files from a flat data directory.
type FileLoader struct {
	dir    string
	logger *zap.Logger
}

// Compile-time interface verification
var _ Loader = (*FileLoader)(nil)

func NewFileLoader(dir string, logger *zap.Logger) *FileLoader {
	return &FileLoader{dir: dir, logger: logger}
}

// Dir returns the data directory.
func (l *FileLoader) Dir() string {
	return l.dir
}

// BarsPath is the location of the bar file for ticker/date.
func (l *FileLoader) BarsPath(ticker, date string) (string, error) {
	name, err := market.BarsFileName(ticker, date)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.dir, name), nil
}

// OptionsPath is the location of the chain file for ticker/date.
func (l *FileLoader) OptionsPath(ticker, date string) (string, error) {
	name, err := market.OptionsFileName(ticker, date)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.dir, name), nil
}

func (l *FileLoader) LoadBars(ticker, date string) ([]market.Bar, error) {
	path, err := l.BarsPath(ticker, date)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: bar file %s", ErrNotFound, path)
	}

	bars, dropped, err := ReadBars(path)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		l.logger.Warn("dropped duplicate bar timestamps", zap.String("path", path), zap.Int("dropped", dropped))
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBars, path)
	}

	l.logger.Info("loaded bars", zap.String("path", path), zap.Int("count", len(bars)))
	return bars, nil
}

func (l *FileLoader) LoadChain(ticker, date string) (*Chain, error) {
	path, err := l.OptionsPath(ticker, date)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: options file %s", ErrNotFound, path)
	}

	rows, err := ReadChain(path)
	if err != nil {
		return nil, err
	}

	chain := NewChain(rows)
	l.logger.Info("loaded options chain",
		zap.String("path", path),
		zap.Int("rows", chain.Len()),
		zap.Int("contracts", chain.Contracts()),
	)
	return chain, nil
}

func (l *FileLoader) Exists(ticker, date string) bool {
	path, err := l.BarsPath(ticker, date)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func (l *FileLoader) Dates(ticker string) ([]string, error) {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(market.Root(ticker)) + `_(\d{8})\.parquet$`)

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}

	var dates []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := pattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		d, err := time.Parse("20060102", m[1])
		if err != nil {
			continue
		}
		dates = append(dates, d.Format("2006-01-02"))
	}
	sort.Strings(dates)
	return dates, nil
}
