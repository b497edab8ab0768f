package data

import (
	"time"

	"github.com/carloswaibl/algotrader/internal/market"
)

// Quoter prices a vertical spread from stored quotes. ok is false when a
// leg has no quote.
type Quoter interface {
	OpenCredit(at time.Time, s market.Spread) (credit float64, ok bool)
	CloseDebit(at time.Time, s market.Spread) (debit float64, ok bool)
}

// ChainQuoter quotes against a Chain with as-of semantics. A nil chain
// never quotes.
type ChainQuoter struct {
	chain  *Chain
	maxAge time.Duration
}

var _ Quoter = (*ChainQuoter)(nil)

func NewChainQuoter(chain *Chain, maxAge time.Duration) *ChainQuoter {
	return &ChainQuoter{chain: chain, maxAge: maxAge}
}

func (q *ChainQuoter) legs(at time.Time, s market.Spread) (short, long market.ChainRow, ok bool) {
	if q.chain == nil {
		return short, long, false
	}
	short, ok = q.chain.Find(at, q.maxAge, s.Type, s.ShortStrike)
	if !ok {
		return short, long, false
	}
	long, ok = q.chain.Find(at, q.maxAge, s.Type, s.LongStrike)
	return short, long, ok
}

// OpenCredit is what selling the spread collects: short bid minus long ask.
func (q *ChainQuoter) OpenCredit(at time.Time, s market.Spread) (float64, bool) {
	short, long, ok := q.legs(at, s)
	if !ok {
		return 0, false
	}
	return short.Bid - long.Ask, true
}

// CloseDebit is what buying the spread back costs: short ask minus long bid.
func (q *ChainQuoter) CloseDebit(at time.Time, s market.Spread) (float64, bool) {
	short, long, ok := q.legs(at, s)
	if !ok {
		return 0, false
	}
	return short.Ask - long.Bid, true
}
