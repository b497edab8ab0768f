package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/data"
	"github.com/carloswaibl/algotrader/internal/market"
)

var t0 = time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC) // 10:30 New York

func bar(minute int, close float64) market.Bar {
	return market.Bar{Timestamp: t0.Add(time.Duration(minute) * time.Minute), Open: close, High: close, Low: close, Close: close}
}

func put(minute int, strike, bid, ask float64) market.ChainRow {
	return market.ChainRow{
		Timestamp:  t0.Add(time.Duration(minute) * time.Minute),
		Ticker:     market.OptionTicker("SPX", "2024-05-10", market.Put, strike),
		Type:       market.Put,
		Expiration: "2024-05-10",
		Strike:     strike,
		Bid:        bid,
		Ask:        ask,
		Delta:      math.NaN(),
	}
}

func putSpread() market.Spread {
	return market.Spread{Type: market.Put, Expiration: "2024-05-10", ShortStrike: 100, LongStrike: 90, Credit: 1.5}
}

func testChain() *data.Chain {
	return data.NewChain([]market.ChainRow{
		put(0, 100, 2.0, 2.25),
		put(0, 90, 0.75, 1.0),
		put(2, 100, 0.5, 0.75),
		put(2, 90, 0.25, 0.5),
	})
}

func TestBrokerRoundTripAtChainPrices(t *testing.T) {
	b := NewBroker(100000, 0.65, data.NewChainQuoter(testChain(), 30*time.Minute), zap.NewNop())

	o := b.Submit(OrderRequest{Side: Open, Spread: putSpread(), Quantity: 10}, t0)
	require.Equal(t, Accepted, o.Status)
	assert.NotEmpty(t, o.ID)

	// fills on the next bar, as of the minute-0 quotes
	fills := b.Process(bar(1, 105))
	require.Len(t, fills, 1)
	assert.Equal(t, Completed, fills[0].Status)
	assert.InDelta(t, 1.0, fills[0].Price, 1e-9)
	assert.InDelta(t, 100987, b.Cash(), 1e-6)
	assert.True(t, b.HasPosition())

	// marked at the minute-0 close debit: 2.25 - 0.75
	assert.InDelta(t, 100987-1500, b.Value(bar(1, 105)), 1e-6)

	b.Submit(OrderRequest{Side: Close, Spread: putSpread(), Quantity: 10, Reason: "exit time"}, t0.Add(2*time.Minute))
	fills = b.Process(bar(3, 106))
	require.Len(t, fills, 1)
	assert.InDelta(t, 0.5, fills[0].Price, 1e-9)
	assert.False(t, b.HasPosition())
	assert.InDelta(t, 100987-500-13, b.Cash(), 1e-6)

	trades := b.Trades()
	require.Len(t, trades, 1)
	assert.InDelta(t, 474, trades[0].PnL, 1e-6)
	assert.InDelta(t, 26, trades[0].Commission, 1e-9)
	assert.Equal(t, "exit time", trades[0].ExitReason)
}

func TestBrokerWithoutQuotes(t *testing.T) {
	b := NewBroker(100000, 0, nil, zap.NewNop())

	b.Submit(OrderRequest{Side: Open, Spread: putSpread(), Quantity: 1}, t0)
	fills := b.Process(bar(1, 120))
	require.Len(t, fills, 1)
	assert.InDelta(t, 1.5, fills[0].Price, 1e-9, "falls back to the requested credit")

	// settles at intrinsic: put 100/90 with spot 95 costs 5
	settled := b.Settle(bar(2, 95))
	require.Len(t, settled, 1)
	assert.Equal(t, "settlement", settled[0].Request.Reason)
	assert.InDelta(t, 100000+150-500, b.Cash(), 1e-6)
}

func TestBrokerIntrinsicCappedAtWidth(t *testing.T) {
	b := NewBroker(100000, 0, nil, zap.NewNop())
	b.Submit(OrderRequest{Side: Open, Spread: putSpread(), Quantity: 1}, t0)
	b.Process(bar(1, 120))

	b.Settle(bar(2, 10))
	assert.InDelta(t, 100000+150-1000, b.Cash(), 1e-6)
}

func TestBrokerMargin(t *testing.T) {
	b := NewBroker(500, 0.65, nil, zap.NewNop())

	o := b.Submit(OrderRequest{Side: Open, Spread: putSpread(), Quantity: 1}, t0)
	assert.Equal(t, Margin, o.Status)
	assert.Empty(t, b.Process(bar(1, 100)))
	assert.InDelta(t, 500, b.Cash(), 1e-9)
}

func TestBrokerRejections(t *testing.T) {
	b := NewBroker(100000, 0, nil, zap.NewNop())

	assert.Equal(t, Rejected, b.Submit(OrderRequest{Side: Close, Spread: putSpread(), Quantity: 1}, t0).Status)
	assert.Equal(t, Rejected, b.Submit(OrderRequest{Side: Open, Spread: putSpread(), Quantity: 0}, t0).Status)

	assert.Equal(t, Accepted, b.Submit(OrderRequest{Side: Open, Spread: putSpread(), Quantity: 1}, t0).Status)
	assert.Equal(t, Rejected, b.Submit(OrderRequest{Side: Open, Spread: putSpread(), Quantity: 1}, t0).Status)
	assert.Len(t, b.Orders(), 4)
}

func TestBrokerCancelsNonPositiveCredit(t *testing.T) {
	chain := data.NewChain([]market.ChainRow{
		put(0, 100, 0.5, 0.75),
		put(0, 90, 0.75, 1.0),
	})
	b := NewBroker(100000, 0, data.NewChainQuoter(chain, 0), zap.NewNop())

	b.Submit(OrderRequest{Side: Open, Spread: putSpread(), Quantity: 1}, t0)
	fills := b.Process(bar(1, 100))
	require.Len(t, fills, 1)
	assert.Equal(t, Canceled, fills[0].Status)
	assert.False(t, b.HasPosition())
}

type scripted struct {
	requests map[int][]OrderRequest
	seen     []Order
	bars     int
}

func (s *scripted) OnBar(b market.Bar) []OrderRequest {
	reqs := s.requests[s.bars]
	s.bars++
	return reqs
}

func (s *scripted) OnOrder(o Order) {
	s.seen = append(s.seen, o)
}

func TestEngineRun(t *testing.T) {
	strat := &scripted{requests: map[int][]OrderRequest{
		0: {{Side: Open, Spread: putSpread(), Quantity: 10}},
		2: {{Side: Close, Spread: putSpread(), Quantity: 10, Reason: "exit time"}},
	}}
	broker := NewBroker(100000, 0.65, data.NewChainQuoter(testChain(), 30*time.Minute), zap.NewNop())

	bars := []market.Bar{bar(0, 105), bar(1, 105), bar(2, 106), bar(3, 106), bar(4, 107)}
	result, err := NewEngine(broker, strat, zap.NewNop()).Run(context.Background(), bars)
	require.NoError(t, err)

	assert.Equal(t, 5, strat.bars)
	// accepted + completed for each side
	require.Len(t, strat.seen, 4)
	assert.Equal(t, Accepted, strat.seen[0].Status)
	assert.Equal(t, Completed, strat.seen[1].Status)

	assert.InDelta(t, 100000, result.StartingCash, 1e-9)
	assert.InDelta(t, 100474, result.FinalValue, 1e-6)
	assert.True(t, result.Changed())
	require.Len(t, result.EquityCurve, 5)
	assert.InDelta(t, result.FinalValue, result.EquityCurve[4].Equity, 1e-9)

	assert.Equal(t, 1, result.Stats.Trades)
	assert.Equal(t, 1, result.Stats.Wins)
	assert.InDelta(t, 1.0, result.Stats.WinRate, 1e-9)
	assert.InDelta(t, 474, result.Stats.NetPnL, 1e-6)
	assert.InDelta(t, 0.00474, result.Stats.TotalReturn, 1e-9)
}

func TestEngineNoTrades(t *testing.T) {
	broker := NewBroker(100000, 0.65, nil, zap.NewNop())
	result, err := NewEngine(broker, &scripted{}, zap.NewNop()).Run(context.Background(), []market.Bar{bar(0, 1), bar(1, 2)})
	require.NoError(t, err)
	assert.False(t, result.Changed())
	assert.Zero(t, result.Stats.Trades)
	assert.Zero(t, result.Stats.MaxDrawdown)
}

func TestEngineNoBars(t *testing.T) {
	_, err := NewEngine(NewBroker(1, 0, nil, zap.NewNop()), &scripted{}, zap.NewNop()).Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoBars)
}

func TestComputeStatsDrawdown(t *testing.T) {
	curve := []market.EquityPoint{
		{Equity: 110}, {Equity: 99}, {Equity: 120}, {Equity: 108},
	}
	s := ComputeStats(100, curve, []Trade{{PnL: 10}, {PnL: -2}})
	assert.InDelta(t, 0.1, s.MaxDrawdown, 1e-9)
	assert.InDelta(t, 0.08, s.TotalReturn, 1e-9)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 8, s.NetPnL, 1e-9)
	assert.Greater(t, s.StdDevReturn, 0.0)
}
