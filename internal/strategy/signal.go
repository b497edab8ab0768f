package strategy

import (
	"github.com/thrasher-corp/gct-ta/indicators"
)

type Signal int

const (
	NoSignal Signal = iota
	Bearish
	Bullish
)

func (s Signal) String() string {
	switch s {
	case Bearish:
		return "bearish"
	case Bullish:
		return "bullish"
	}
	return "none"
}

// Evaluate combines the session move with RSI. ok is false when there are
// not yet enough closes for the RSI period.
func Evaluate(closes []float64, sessionOpen float64, p Params) (sig Signal, rsi float64, ok bool) {
	if len(closes) <= p.RSIPeriod {
		return NoSignal, 0, false
	}
	values := indicators.RSI(closes, p.RSIPeriod)
	rsi = values[len(values)-1]

	direction := closes[len(closes)-1] - sessionOpen
	switch {
	case direction > 0 && rsi > p.RSIOverbought:
		return Bearish, rsi, true
	case direction < 0 && rsi < p.RSIOversold:
		return Bullish, rsi, true
	}
	return NoSignal, rsi, true
}
