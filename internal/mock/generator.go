// Package mock generates deterministic synthetic sessions: a random-walk
// minute series for the underlying, a sparse 0DTE option grid priced with
// Black-Scholes, and a daily equity curve.
package mock

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/data"
	"github.com/carloswaibl/algotrader/internal/market"
	"github.com/carloswaibl/algotrader/internal/pricing"
	"github.com/carloswaibl/algotrader/internal/staging"
)

const (
	minVolume   = 1000
	volumeRange = 4000

	// EquityFileName is the mock backtest log written next to the bars.
	EquityFileName = "backtest_results_log.csv"
)

type Config struct {
	Ticker         string
	Date           string
	Seed           int64
	StartPrice     float64
	Step           float64
	Minutes        int
	SampleEvery    int
	StrikeStep     float64
	StrikeOffsets  []float64
	ContractTypes  []market.ContractType
	Volatility     float64
	RiskFreeRate   float64
	HalfSpread     float64
	EquityStart    string
	EquityEnd      string
	StartingEquity float64
	EquityStep     float64
}

func (c Config) validate() error {
	if c.Minutes < 1 {
		return fmt.Errorf("minutes must be >= 1")
	}
	if c.SampleEvery < 1 {
		return fmt.Errorf("sample_every must be >= 1")
	}
	if c.StrikeStep <= 0 {
		return fmt.Errorf("strike_step must be > 0")
	}
	if c.StartPrice <= 0 {
		return fmt.Errorf("start_price must be > 0")
	}
	return nil
}

type Generator struct {
	cfg    Config
	rng    *rand.Rand
	logger *zap.Logger
}

func NewGenerator(cfg Config, logger *zap.Logger) (*Generator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("mock config: %w", err)
	}
	return &Generator{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		logger: logger,
	}, nil
}

// Bars builds the session: one bar per minute from 09:30, OHLC all equal to
// the walk's level.
func (g *Generator) Bars() ([]market.Bar, error) {
	open, err := market.SessionOpen(g.cfg.Date)
	if err != nil {
		return nil, err
	}

	bars := make([]market.Bar, g.cfg.Minutes)
	price := g.cfg.StartPrice
	for i := range bars {
		price += g.rng.NormFloat64() * g.cfg.Step
		bars[i] = market.Bar{
			Timestamp: open.Add(time.Duration(i) * time.Minute).UTC(),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    float64(minVolume + g.rng.Intn(volumeRange)),
		}
	}
	return bars, nil
}

// Options samples every SampleEvery-th bar and quotes strikes around the
// nearest StrikeStep multiple of the underlying.
func (g *Generator) Options(bars []market.Bar) []market.ChainRow {
	var rows []market.ChainRow
	for i := 0; i < len(bars); i += g.cfg.SampleEvery {
		b := bars[i]
		atm := math.Round(b.Close/g.cfg.StrikeStep) * g.cfg.StrikeStep
		years, err := pricing.YearsUntil(b.Timestamp, g.cfg.Date)
		if err != nil {
			continue
		}
		for _, ct := range g.cfg.ContractTypes {
			for _, off := range g.cfg.StrikeOffsets {
				strike := atm + off
				if strike <= 0 {
					continue
				}
				in := pricing.Inputs{Type: ct, Spot: b.Close, Strike: strike, Years: years, Rate: g.cfg.RiskFreeRate}
				fair := pricing.Price(in, g.cfg.Volatility)
				rows = append(rows, market.ChainRow{
					Timestamp:       b.Timestamp,
					UnderlyingPrice: b.Close,
					Ticker:          market.OptionTicker(g.cfg.Ticker, g.cfg.Date, ct, strike),
					Type:            ct,
					Expiration:      g.cfg.Date,
					Strike:          strike,
					Bid:             math.Max(fair-g.cfg.HalfSpread, 0),
					Ask:             fair + g.cfg.HalfSpread,
					Delta:           pricing.Delta(in, g.cfg.Volatility),
				})
			}
		}
	}
	return rows
}

// EquityCurve walks equity across the NYSE business days of the range.
func (g *Generator) EquityCurve() ([]market.EquityPoint, error) {
	days, err := market.TradingDays(g.cfg.EquityStart, g.cfg.EquityEnd)
	if err != nil {
		return nil, err
	}

	points := make([]market.EquityPoint, len(days))
	cum := 0.0
	for i, d := range days {
		cum += g.rng.NormFloat64()
		date, _ := time.Parse("2006-01-02", d)
		points[i] = market.EquityPoint{
			Date:   date,
			Equity: g.cfg.StartingEquity * (1 + cum*g.cfg.EquityStep),
		}
	}
	return points, nil
}

// Output lists what WriteAll produced.
type Output struct {
	BarsPath     string
	OptionsPath  string
	EquityPath   string
	Bars         int
	OptionRows   int
	EquityPoints int
}

// WriteAll generates every dataset and writes the bar and option Parquet
// files into dataDir and the equity CSV into resultsDir.
func (g *Generator) WriteAll(dataDir, resultsDir string) (*Output, error) {
	bars, err := g.Bars()
	if err != nil {
		return nil, err
	}
	rows := g.Options(bars)
	curve, err := g.EquityCurve()
	if err != nil {
		return nil, err
	}

	barsName, err := market.BarsFileName(g.cfg.Ticker, g.cfg.Date)
	if err != nil {
		return nil, err
	}
	optsName, err := market.OptionsFileName(g.cfg.Ticker, g.cfg.Date)
	if err != nil {
		return nil, err
	}

	out := &Output{
		BarsPath:     filepath.Join(dataDir, barsName),
		OptionsPath:  filepath.Join(dataDir, optsName),
		EquityPath:   filepath.Join(resultsDir, EquityFileName),
		Bars:         len(bars),
		OptionRows:   len(rows),
		EquityPoints: len(curve),
	}

	stg := staging.NewManager(dataDir)
	if _, err := stg.WriteToStaging(out.BarsPath, func(w io.Writer) error {
		return data.WriteBars(w, bars)
	}); err != nil {
		return nil, fmt.Errorf("writing mock bars: %w", err)
	}

	recs := make([]data.OptionRecord, len(rows))
	for i, r := range rows {
		recs[i] = data.NewOptionRecord(r, r.Mid(), 0)
	}
	if _, err := stg.WriteToStaging(out.OptionsPath, func(w io.Writer) error {
		return data.WriteOptions(w, recs)
	}); err != nil {
		return nil, fmt.Errorf("writing mock options: %w", err)
	}

	if err := data.WriteEquityCSV(out.EquityPath, curve); err != nil {
		return nil, fmt.Errorf("writing mock equity: %w", err)
	}

	g.logger.Info("mock data written",
		zap.String("bars", out.BarsPath),
		zap.Int("bar_count", out.Bars),
		zap.String("options", out.OptionsPath),
		zap.Int("option_rows", out.OptionRows),
		zap.String("equity", out.EquityPath),
		zap.Int("equity_points", out.EquityPoints))

	return out, nil
}
