package strategy

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/carloswaibl/algotrader/internal/data"
	"github.com/carloswaibl/algotrader/internal/market"
)

var (
	ErrNoChain   = errors.New("no option chain at this time")
	ErrNoStrikes = errors.New("no strike with a usable delta")
	ErrNoLongLeg = errors.New("long leg strike not listed")
	ErrNoCredit  = errors.New("spread does not collect a credit")
)

// Selector picks the strikes of the spread to sell.
type Selector interface {
	Select(at time.Time, spot float64, ct market.ContractType) (market.Spread, error)
}

// ChainSelector sells the listed 0DTE strike whose |delta| is closest to
// the target and buys the strike one width further out of the money. Only
// shorts whose long leg is listed at the same time are candidates.
type ChainSelector struct {
	chain  *data.Chain
	maxAge time.Duration
	width  float64
	delta  float64
}

var _ Selector = (*ChainSelector)(nil)

func NewChainSelector(chain *data.Chain, maxAge time.Duration, width, delta float64) *ChainSelector {
	return &ChainSelector{chain: chain, maxAge: maxAge, width: width, delta: delta}
}

func (s *ChainSelector) Select(at time.Time, spot float64, ct market.ContractType) (market.Spread, error) {
	rows := s.chain.AsOf(at, s.maxAge)
	if len(rows) == 0 {
		return market.Spread{}, ErrNoChain
	}

	var short, long market.ChainRow
	found := false
	withDelta := 0
	best := math.Inf(1)
	// nearest target strike without a listed long leg, for the error
	unlisted, unlistedDist := 0.0, math.Inf(1)
	for _, r := range rows {
		if r.Type != ct || !r.HasDelta() {
			continue
		}
		withDelta++
		dist := math.Abs(math.Abs(r.Delta) - s.delta)
		l, ok := market.Lookup(rows, ct, s.longStrike(ct, r.Strike))
		if !ok {
			if dist < unlistedDist {
				unlisted, unlistedDist = r.Strike, dist
			}
			continue
		}
		switch {
		case dist < best:
		case dist == best && furtherOTM(ct, r.Strike, short.Strike):
		default:
			continue
		}
		short, long, best, found = r, l, dist, true
	}
	switch {
	case withDelta == 0:
		return market.Spread{}, ErrNoStrikes
	case !found:
		return market.Spread{}, fmt.Errorf("%w: %s %.2f", ErrNoLongLeg, ct, s.longStrike(ct, unlisted))
	}

	credit := short.Bid - long.Ask
	if credit <= 0 {
		return market.Spread{}, fmt.Errorf("%w: %.2f", ErrNoCredit, credit)
	}

	return market.Spread{
		Type:        ct,
		Expiration:  short.Expiration,
		ShortStrike: short.Strike,
		LongStrike:  long.Strike,
		Credit:      credit,
	}, nil
}

func (s *ChainSelector) longStrike(ct market.ContractType, short float64) float64 {
	if ct == market.Call {
		return short + s.width
	}
	return short - s.width
}

func furtherOTM(ct market.ContractType, strike, than float64) bool {
	if ct == market.Call {
		return strike > than
	}
	return strike < than
}

// ApproxSelector places the short strike a fixed fraction of spot away from
// the money and assumes a constant credit. It needs no chain.
type ApproxSelector struct {
	width  float64
	delta  float64
	credit float64
}

var _ Selector = (*ApproxSelector)(nil)

func NewApproxSelector(width, delta, credit float64) *ApproxSelector {
	return &ApproxSelector{width: width, delta: delta, credit: credit}
}

func (s *ApproxSelector) Select(at time.Time, spot float64, ct market.ContractType) (market.Spread, error) {
	if spot <= 0 {
		return market.Spread{}, fmt.Errorf("%w: spot %.2f", ErrNoStrikes, spot)
	}
	sp := market.Spread{
		Type:       ct,
		Expiration: market.SessionDate(at),
		Credit:     s.credit,
	}
	if ct == market.Call {
		sp.ShortStrike = float64(int(spot * (1 + s.delta/2)))
		sp.LongStrike = sp.ShortStrike + s.width
	} else {
		sp.ShortStrike = float64(int(spot * (1 - s.delta/2)))
		sp.LongStrike = sp.ShortStrike - s.width
	}
	return sp, nil
}

// NewSelector prefers the chain and falls back to the approximation when
// no chain was loaded.
func NewSelector(chain *data.Chain, maxAge time.Duration, p Params) Selector {
	if chain != nil && chain.Len() > 0 {
		return NewChainSelector(chain, maxAge, p.SpreadWidth, p.DeltaTarget)
	}
	return NewApproxSelector(p.SpreadWidth, p.DeltaTarget, p.FallbackCredit)
}
