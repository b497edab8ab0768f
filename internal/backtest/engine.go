// Package backtest replays minute bars through a strategy against a
// simulated options broker.
package backtest

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/market"
)

var ErrNoBars = errors.New("no bars to backtest")

// Strategy reacts to bars with order requests and is told about every
// order state change.
type Strategy interface {
	OnBar(bar market.Bar) []OrderRequest
	OnOrder(o Order)
}

type Engine struct {
	broker   *Broker
	strategy Strategy
	logger   *zap.Logger
}

func NewEngine(broker *Broker, strategy Strategy, logger *zap.Logger) *Engine {
	return &Engine{broker: broker, strategy: strategy, logger: logger}
}

// Run feeds bars in order. Fills for orders from bar t happen before the
// strategy sees bar t+1. Open spreads are settled on the last bar.
func (e *Engine) Run(ctx context.Context, bars []market.Bar) (*Result, error) {
	if len(bars) == 0 {
		return nil, ErrNoBars
	}

	e.logger.Info("backtest starting",
		zap.Int("bars", len(bars)),
		zap.Time("from", bars[0].Timestamp),
		zap.Time("to", bars[len(bars)-1].Timestamp),
		zap.Float64("cash", e.broker.StartingCash()))

	curve := make([]market.EquityPoint, 0, len(bars))
	for _, bar := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, o := range e.broker.Process(bar) {
			e.strategy.OnOrder(o)
		}

		for _, req := range e.strategy.OnBar(bar) {
			e.strategy.OnOrder(e.broker.Submit(req, bar.Timestamp))
		}

		curve = append(curve, market.EquityPoint{Date: bar.Timestamp, Equity: e.broker.Value(bar)})
	}

	last := bars[len(bars)-1]
	for _, o := range e.broker.Settle(last) {
		e.strategy.OnOrder(o)
	}
	curve[len(curve)-1].Equity = e.broker.Cash()

	result := &Result{
		StartingCash: e.broker.StartingCash(),
		FinalValue:   e.broker.Cash(),
		Trades:       e.broker.Trades(),
		Orders:       e.broker.Orders(),
		EquityCurve:  curve,
	}
	result.Stats = ComputeStats(result.StartingCash, curve, result.Trades)

	e.logger.Info("backtest finished",
		zap.Float64("final_value", result.FinalValue),
		zap.Int("trades", len(result.Trades)))

	return result, nil
}
