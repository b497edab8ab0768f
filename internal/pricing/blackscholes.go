// Package pricing holds the Black-Scholes model used to give synthetic and
// downloaded option rows a price and a delta.
package pricing

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/carloswaibl/algotrader/internal/market"
)

const (
	minutesPerYear = 365 * 24 * 60
	minYears       = 1.0 / minutesPerYear

	volLow        = 1e-4
	volHigh       = 5.0
	ivTolerance   = 1e-6
	ivMaxIterates = 200
)

var ErrNoImpliedVol = errors.New("price outside model bounds, no implied volatility")

// Inputs describes one option under the model.
type Inputs struct {
	Type   market.ContractType
	Spot   float64
	Strike float64
	Years  float64 // time to expiry
	Rate   float64 // continuously compounded
}

func (in Inputs) valid() bool {
	return in.Spot > 0 && in.Strike > 0
}

func (in Inputs) years() float64 {
	return math.Max(in.Years, minYears)
}

func (in Inputs) d1d2(vol float64) (float64, float64) {
	t := in.years()
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(in.Spot/in.Strike) + (in.Rate+0.5*vol*vol)*t) / (vol * sqrtT)
	return d1, d1 - vol*sqrtT
}

// Price returns the model value of the option.
func Price(in Inputs, vol float64) float64 {
	if !in.valid() {
		return 0
	}
	if vol <= 0 {
		return market.Intrinsic(in.Type, in.Strike, in.Spot)
	}
	d1, d2 := in.d1d2(vol)
	discount := math.Exp(-in.Rate * in.years())
	if in.Type == market.Call {
		return in.Spot*distuv.UnitNormal.CDF(d1) - in.Strike*discount*distuv.UnitNormal.CDF(d2)
	}
	return in.Strike*discount*distuv.UnitNormal.CDF(-d2) - in.Spot*distuv.UnitNormal.CDF(-d1)
}

// Delta returns dV/dS; negative for puts.
func Delta(in Inputs, vol float64) float64 {
	if !in.valid() || vol <= 0 {
		return math.NaN()
	}
	d1, _ := in.d1d2(vol)
	if in.Type == market.Call {
		return distuv.UnitNormal.CDF(d1)
	}
	return distuv.UnitNormal.CDF(d1) - 1
}

// ImpliedVol inverts Price by bisection. Prices at or below intrinsic, or above
// the no-arbitrage bound, return ErrNoImpliedVol.
func ImpliedVol(in Inputs, price float64) (float64, error) {
	if !in.valid() || price <= 0 {
		return 0, ErrNoImpliedVol
	}

	lo, hi := volLow, volHigh
	if price <= Price(in, lo) || price >= Price(in, hi) {
		return 0, ErrNoImpliedVol
	}

	for i := 0; i < ivMaxIterates; i++ {
		mid := (lo + hi) / 2
		if Price(in, mid) < price {
			lo = mid
		} else {
			hi = mid
		}
		if hi-lo < ivTolerance {
			break
		}
	}
	return (lo + hi) / 2, nil
}

// YearsUntil is the year fraction from t to the 16:00 New York close of expiration.
func YearsUntil(t time.Time, expiration string) (float64, error) {
	day, err := time.ParseInLocation("2006-01-02", expiration, market.NewYork())
	if err != nil {
		return 0, err
	}
	expiry := market.NewClock(16, 0).On(day)
	years := expiry.Sub(t).Minutes() / minutesPerYear
	return math.Max(years, minYears), nil
}
