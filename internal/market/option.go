package market

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ContractMultiplier is the number of shares one index option contract controls.
const ContractMultiplier = 100

// ContractType is the option right.
type ContractType string

const (
	Call ContractType = "call"
	Put  ContractType = "put"
)

// ParseContractType accepts "call"/"put" in any case.
func ParseContractType(s string) (ContractType, error) {
	switch ContractType(strings.ToLower(strings.TrimSpace(s))) {
	case Call:
		return Call, nil
	case Put:
		return Put, nil
	}
	return "", fmt.Errorf("invalid contract type %q (use call or put)", s)
}

// Contract is a listed option contract.
type Contract struct {
	Ticker     string
	Underlying string
	Type       ContractType
	Expiration string // YYYY-MM-DD
	Strike     float64
}

// ChainRow is one contract observed at one instant. Delta is NaN when unknown.
type ChainRow struct {
	Timestamp       time.Time
	UnderlyingPrice float64
	Ticker          string
	Type            ContractType
	Expiration      string
	Strike          float64
	Bid             float64
	Ask             float64
	Delta           float64
}

// HasDelta reports whether the row carries a usable delta.
func (r ChainRow) HasDelta() bool {
	return !math.IsNaN(r.Delta) && !math.IsInf(r.Delta, 0)
}

// Mid is the midpoint of bid and ask.
func (r ChainRow) Mid() float64 {
	return (r.Bid + r.Ask) / 2
}

// Intrinsic returns the exercise value of an option at spot.
func Intrinsic(t ContractType, strike, spot float64) float64 {
	if t == Call {
		return math.Max(spot-strike, 0)
	}
	return math.Max(strike-spot, 0)
}

// OptionTicker builds the vendor's option symbol, e.g. O:SPX250613P05200000.
func OptionTicker(root, expiration string, t ContractType, strike float64) string {
	exp, err := time.Parse("2006-01-02", expiration)
	if err != nil {
		return ""
	}
	right := "C"
	if t == Put {
		right = "P"
	}
	return fmt.Sprintf("O:%s%s%s%08d", Root(root), exp.Format("060102"), right, int64(math.Round(strike*1000)))
}

// Lookup finds the row for a contract type and strike.
func Lookup(rows []ChainRow, t ContractType, strike float64) (ChainRow, bool) {
	for _, r := range rows {
		if r.Type == t && r.Strike == strike {
			return r, true
		}
	}
	return ChainRow{}, false
}

// Spread is a vertical credit spread: short the nearer strike, long the farther one.
type Spread struct {
	Type        ContractType
	Expiration  string
	ShortStrike float64
	LongStrike  float64
	Credit      float64 // per share
}

// Width is the distance between the strikes.
func (s Spread) Width() float64 {
	return math.Abs(s.ShortStrike - s.LongStrike)
}

// MaxLoss is the worst-case loss per share at expiry.
func (s Spread) MaxLoss() float64 {
	return math.Max(s.Width()-s.Credit, 0)
}

// IntrinsicDebit is the cost per share to close the spread at its exercise value.
func (s Spread) IntrinsicDebit(spot float64) float64 {
	return Intrinsic(s.Type, s.ShortStrike, spot) - Intrinsic(s.Type, s.LongStrike, spot)
}

func (s Spread) String() string {
	return fmt.Sprintf("%s %.0f/%.0f @ %.2f", s.Type, s.ShortStrike, s.LongStrike, s.Credit)
}
