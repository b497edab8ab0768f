// Package strategy implements the zero-DTE credit spread: one entry check
// per session at the entry time, then profit target, stop loss and a
// time exit while the spread is open.
package strategy

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/backtest"
	"github.com/carloswaibl/algotrader/internal/data"
	"github.com/carloswaibl/algotrader/internal/market"
)

type Params struct {
	EntryTime       market.Clock
	ExitTime        market.Clock
	SpreadWidth     float64
	DeltaTarget     float64
	RSIPeriod       int
	RSIOverbought   float64
	RSIOversold     float64
	ProfitTargetPct float64
	StopLossPct     float64
	FallbackCredit  float64
	Stake           int
}

func DefaultParams() Params {
	return Params{
		EntryTime:       market.NewClock(10, 30),
		ExitTime:        market.NewClock(15, 45),
		SpreadWidth:     10,
		DeltaTarget:     0.16,
		RSIPeriod:       14,
		RSIOverbought:   60,
		RSIOversold:     40,
		ProfitTargetPct: 0.50,
		StopLossPct:     1.0,
		FallbackCredit:  1.50,
		Stake:           10,
	}
}

type State int

const (
	Idle State = iota
	AwaitingEntry
	OpenSpread
	AwaitingExit
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case AwaitingEntry:
		return "AwaitingEntry"
	case OpenSpread:
		return "OpenSpread"
	case AwaitingExit:
		return "AwaitingExit"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ZeroDTESpread sells at most one vertical spread per session.
type ZeroDTESpread struct {
	params   Params
	selector Selector
	quoter   data.Quoter
	logger   *zap.Logger

	state       State
	closes      []float64
	session     string
	sessionOpen float64
	evaluated   bool
	spread      market.Spread
	quantity    int
}

var _ backtest.Strategy = (*ZeroDTESpread)(nil)

// New builds the strategy. quoter may be nil, in which case only the time
// exit closes the spread.
func New(p Params, selector Selector, quoter data.Quoter, logger *zap.Logger) *ZeroDTESpread {
	return &ZeroDTESpread{
		params:   p,
		selector: selector,
		quoter:   quoter,
		logger:   logger,
	}
}

func (s *ZeroDTESpread) State() State {
	return s.state
}

func (s *ZeroDTESpread) OnBar(bar market.Bar) []backtest.OrderRequest {
	date := market.SessionDate(bar.Timestamp)
	if date != s.session {
		s.session = date
		s.sessionOpen = bar.Open
		s.evaluated = false
	}
	s.closes = append(s.closes, bar.Close)

	switch s.state {
	case Idle:
		return s.maybeEnter(bar)
	case OpenSpread:
		return s.maybeExit(bar, date)
	}
	return nil
}

func (s *ZeroDTESpread) maybeEnter(bar market.Bar) []backtest.OrderRequest {
	clock := market.ClockOf(bar.Timestamp)
	if s.evaluated || clock < s.params.EntryTime {
		return nil
	}
	s.evaluated = true
	if clock >= s.params.ExitTime {
		return nil
	}

	sig, rsi, ok := Evaluate(s.closes, s.sessionOpen, s.params)
	if !ok {
		s.logger.Info("not enough bars for RSI",
			zap.String("session", s.session),
			zap.Int("bars", len(s.closes)),
			zap.Int("period", s.params.RSIPeriod))
		return nil
	}

	s.logger.Info("entry check",
		zap.Time("at", bar.Timestamp),
		zap.Float64("direction", bar.Close-s.sessionOpen),
		zap.Float64("rsi", rsi),
		zap.String("signal", sig.String()))

	var ct market.ContractType
	switch sig {
	case Bearish:
		ct = market.Call
	case Bullish:
		ct = market.Put
	default:
		return nil
	}

	spread, err := s.selector.Select(bar.Timestamp, bar.Close, ct)
	if err != nil {
		s.logger.Warn("no spread selected", zap.String("type", string(ct)), zap.Error(err))
		return nil
	}

	s.logger.Info("selling spread",
		zap.String("spread", spread.String()),
		zap.Float64("max_loss", spread.MaxLoss()),
		zap.Int("quantity", s.params.Stake))

	s.state = AwaitingEntry
	return []backtest.OrderRequest{{
		Side:     backtest.Open,
		Spread:   spread,
		Quantity: s.params.Stake,
		Reason:   sig.String(),
	}}
}

func (s *ZeroDTESpread) maybeExit(bar market.Bar, date string) []backtest.OrderRequest {
	reason := ""
	switch {
	case s.spread.Expiration != "" && s.spread.Expiration < date:
		reason = "expired"
	case market.ClockOf(bar.Timestamp) >= s.params.ExitTime:
		reason = "exit time"
	case s.quoter != nil:
		if debit, ok := s.quoter.CloseDebit(bar.Timestamp, s.spread); ok {
			switch {
			case debit <= s.spread.Credit*(1-s.params.ProfitTargetPct):
				reason = "profit target"
			case debit >= s.spread.Credit*(1+s.params.StopLossPct):
				reason = "stop loss"
			}
		}
	}
	if reason == "" {
		return nil
	}

	s.logger.Info("closing spread",
		zap.Time("at", bar.Timestamp),
		zap.String("spread", s.spread.String()),
		zap.String("reason", reason))

	s.state = AwaitingExit
	return []backtest.OrderRequest{{
		Side:     backtest.Close,
		Spread:   s.spread,
		Quantity: s.quantity,
		Reason:   reason,
	}}
}

func (s *ZeroDTESpread) OnOrder(o backtest.Order) {
	if o.Status.Alive() {
		return
	}

	switch o.Request.Side {
	case backtest.Open:
		if o.Status == backtest.Completed {
			s.spread = o.Request.Spread
			s.spread.Credit = o.Price
			s.quantity = o.Request.Quantity
			s.state = OpenSpread
			return
		}
		// no re-entry this session
		s.logger.Info("entry order not filled",
			zap.String("status", o.Status.String()),
			zap.String("note", o.Note))
		s.state = Idle

	case backtest.Close:
		if o.Status == backtest.Completed {
			s.spread = market.Spread{}
			s.quantity = 0
			s.state = Idle
			return
		}
		s.logger.Warn("exit order not filled, retrying next bar",
			zap.String("status", o.Status.String()),
			zap.String("note", o.Note))
		s.state = OpenSpread
	}
}

// Describe summarises the parameters for logs and reports.
func (p Params) Describe() string {
	return fmt.Sprintf("entry %s exit %s width %.0f delta %.2f rsi %d (%.0f/%.0f) stake %d",
		p.EntryTime, p.ExitTime, p.SpreadWidth, p.DeltaTarget, p.RSIPeriod,
		p.RSIOversold, p.RSIOverbought, p.Stake)
}
