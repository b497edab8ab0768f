package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/api"
	"github.com/carloswaibl/algotrader/internal/data"
	"github.com/carloswaibl/algotrader/internal/market"
	"github.com/carloswaibl/algotrader/internal/pricing"
	"github.com/carloswaibl/algotrader/internal/staging"
)

// Options controls what the service requests from the vendor.
type Options struct {
	Tickers       []string
	Options       bool
	ContractTypes []market.ContractType
	// StrikeRange keeps contracts within this many points of the session's
	// opening price. Zero keeps every listed strike.
	StrikeRange  float64
	RiskFreeRate float64
	ArchiveRaw   bool
	// Resume skips tasks whose output file already exists.
	Resume bool
}

// Service turns vendor aggregates into the Parquet files the backtester reads.
type Service struct {
	client  api.Client
	staging *staging.Manager
	manager *Manager
	opts    Options
	logger  *zap.Logger
}

var _ Fetcher = (*Service)(nil)

func NewService(client api.Client, stg *staging.Manager, workers int, opts Options, logger *zap.Logger) *Service {
	if len(opts.ContractTypes) == 0 {
		opts.ContractTypes = []market.ContractType{market.Call, market.Put}
	}
	s := &Service{
		client:  client,
		staging: stg,
		opts:    opts,
		logger:  logger,
	}
	s.manager = NewManager(s, stg, workers, logger)
	s.manager.SetResume(opts.Resume)
	return s
}

// FilterTradingDays drops dates that are not NYSE business days.
func FilterTradingDays(dates []string, logger *zap.Logger) []string {
	var days []string
	for _, date := range dates {
		if market.IsTradingDay(date) {
			days = append(days, date)
		} else {
			logger.Warn("skipping non-market day", zap.String("date", date))
		}
	}
	return days
}

// Tasks builds the task list for dates: bars for every ticker and, when
// enabled, the options chain.
func (s *Service) Tasks(dates []string, datasets ...Dataset) []Task {
	if len(datasets) == 0 {
		datasets = []Dataset{DatasetBars}
		if s.opts.Options {
			datasets = append(datasets, DatasetOptions)
		}
	}

	var tasks []Task
	for _, date := range dates {
		for _, ticker := range s.opts.Tickers {
			for _, ds := range datasets {
				tasks = append(tasks, Task{Ticker: ticker, Dataset: ds, Date: date})
			}
		}
	}
	return tasks
}

// Run downloads every configured dataset for the trading days among dates.
func (s *Service) Run(ctx context.Context, dates []string) (*BatchResult, error) {
	return s.run(ctx, dates)
}

// DownloadUnderlying fetches the minute bars of every ticker on date.
func (s *Service) DownloadUnderlying(ctx context.Context, date string) (*BatchResult, error) {
	return s.run(ctx, []string{date}, DatasetBars)
}

// DownloadOptions fetches the 0DTE chain of every ticker on date.
func (s *Service) DownloadOptions(ctx context.Context, date string) (*BatchResult, error) {
	return s.run(ctx, []string{date}, DatasetOptions)
}

func (s *Service) run(ctx context.Context, dates []string, datasets ...Dataset) (*BatchResult, error) {
	days := FilterTradingDays(dates, s.logger)
	tasks := s.Tasks(days, datasets...)
	s.logger.Info("generated tasks", zap.Int("count", len(tasks)))

	result, err := s.manager.Execute(ctx, tasks)

	// Commit whatever was fully written, even when others failed
	for _, date := range days {
		if commitErr := s.staging.CommitStaging(date); commitErr != nil {
			s.logger.Warn("failed to commit staging", zap.String("date", date), zap.Error(commitErr))
		}
		if cleanErr := s.staging.CleanupStaging(date); cleanErr != nil {
			s.logger.Warn("failed to cleanup staging", zap.String("date", date), zap.Error(cleanErr))
		}
	}

	return result, err
}

// Fetch implements Fetcher.
func (s *Service) Fetch(ctx context.Context, task Task, w io.Writer) (int, error) {
	switch task.Dataset {
	case DatasetBars:
		return s.fetchBars(ctx, task, w)
	case DatasetOptions:
		return s.fetchOptions(ctx, task, w)
	}
	return 0, fmt.Errorf("unknown dataset %q", task.Dataset)
}

func (s *Service) fetchBars(ctx context.Context, task Task, w io.Writer) (int, error) {
	bars, err := s.client.MinuteBars(ctx, task.Ticker, task.Date)
	if err != nil {
		return 0, err
	}
	bars, dropped := data.SortBars(bars)
	if dropped > 0 {
		s.logger.Warn("dropped duplicate bars", zap.String("task", task.String()), zap.Int("dropped", dropped))
	}

	if err := data.WriteBars(w, bars); err != nil {
		return 0, err
	}

	if s.opts.ArchiveRaw {
		recs := make([]data.BarRecord, len(bars))
		for i, b := range bars {
			recs[i] = data.NewBarRecord(b)
		}
		archiveRows(s, task, recs)
	}
	return len(bars), nil
}

func (s *Service) fetchOptions(ctx context.Context, task Task, w io.Writer) (int, error) {
	underlying, err := s.client.MinuteBars(ctx, task.Ticker, task.Date)
	if err != nil {
		return 0, fmt.Errorf("underlying bars: %w", err)
	}
	underlying, _ = data.SortBars(underlying)
	if len(underlying) == 0 {
		return 0, api.ErrNotFound
	}

	contracts, err := s.client.OptionContracts(ctx, task.Ticker, task.Date)
	if err != nil {
		return 0, fmt.Errorf("listing contracts: %w", err)
	}
	contracts = s.filterContracts(contracts, underlying[0].Open)
	s.logger.Info("listed contracts",
		zap.String("task", task.String()),
		zap.Int("contracts", len(contracts)))

	var recs []data.OptionRecord
	for _, c := range contracts {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		bars, err := s.client.MinuteBars(ctx, c.Ticker, task.Date)
		if errors.Is(err, api.ErrNotFound) {
			// listed but never traded
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("contract %s: %w", c.Ticker, err)
		}
		for _, b := range bars {
			row := s.chainRow(c, b, underlying)
			recs = append(recs, data.NewOptionRecord(row, b.Close, b.Volume))
		}
	}
	if len(recs) == 0 {
		return 0, api.ErrNotFound
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Timestamp != recs[j].Timestamp {
			return recs[i].Timestamp < recs[j].Timestamp
		}
		return recs[i].ContractTicker < recs[j].ContractTicker
	})

	if err := data.WriteOptions(w, recs); err != nil {
		return 0, err
	}
	if s.opts.ArchiveRaw {
		archiveRows(s, task, recs)
	}
	return len(recs), nil
}

func (s *Service) filterContracts(contracts []market.Contract, reference float64) []market.Contract {
	wanted := make(map[market.ContractType]bool, len(s.opts.ContractTypes))
	for _, ct := range s.opts.ContractTypes {
		wanted[ct] = true
	}

	var out []market.Contract
	for _, c := range contracts {
		if !wanted[c.Type] || c.Strike <= 0 {
			continue
		}
		if s.opts.StrikeRange > 0 && math.Abs(c.Strike-reference) > s.opts.StrikeRange {
			continue
		}
		out = append(out, c)
	}
	return out
}

// chainRow flattens one contract bar. Aggregates carry no quotes, so bid
// and ask both take the close and delta comes from the close's implied vol.
func (s *Service) chainRow(c market.Contract, b market.Bar, underlying []market.Bar) market.ChainRow {
	spot := spotAt(underlying, b.Timestamp)
	row := market.ChainRow{
		Timestamp:       b.Timestamp,
		UnderlyingPrice: spot,
		Ticker:          c.Ticker,
		Type:            c.Type,
		Expiration:      c.Expiration,
		Strike:          c.Strike,
		Bid:             b.Close,
		Ask:             b.Close,
		Delta:           math.NaN(),
	}

	years, err := pricing.YearsUntil(b.Timestamp, c.Expiration)
	if err != nil || spot <= 0 {
		return row
	}
	in := pricing.Inputs{Type: c.Type, Spot: spot, Strike: c.Strike, Years: years, Rate: s.opts.RiskFreeRate}
	if vol, err := pricing.ImpliedVol(in, b.Close); err == nil {
		row.Delta = pricing.Delta(in, vol)
	}
	return row
}

// spotAt returns the close of the latest underlying bar at or before t.
func spotAt(bars []market.Bar, t time.Time) float64 {
	i := sort.Search(len(bars), func(i int) bool { return bars[i].Timestamp.After(t) })
	if i == 0 {
		if len(bars) == 0 {
			return 0
		}
		return bars[0].Open
	}
	return bars[i-1].Close
}

// archiveRows keeps a zstd JSONL copy of the flattened vendor rows. Failures
// are logged and do not fail the task.
func archiveRows[T any](s *Service, task Task, rows []T) {
	path := task.ArchivePath(s.staging.StagingDir(task.Date))
	_, err := s.staging.WriteToStaging(path, func(w io.Writer) error {
		aw, err := data.NewArchiveWriter(w)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if err := aw.Write(r); err != nil {
				_ = aw.Close()
				return err
			}
		}
		return aw.Close()
	})
	if err != nil {
		s.logger.Warn("failed to write raw archive", zap.String("task", task.String()), zap.Error(err))
	}
}
