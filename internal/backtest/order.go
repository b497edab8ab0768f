package backtest

import (
	"fmt"
	"time"

	"github.com/carloswaibl/algotrader/internal/market"
)

type OrderStatus int

const (
	Submitted OrderStatus = iota
	Accepted
	Completed
	Canceled
	Margin
	Rejected
)

func (s OrderStatus) String() string {
	switch s {
	case Submitted:
		return "Submitted"
	case Accepted:
		return "Accepted"
	case Completed:
		return "Completed"
	case Canceled:
		return "Canceled"
	case Margin:
		return "Margin"
	case Rejected:
		return "Rejected"
	}
	return fmt.Sprintf("OrderStatus(%d)", int(s))
}

// Alive reports whether the order can still fill.
func (s OrderStatus) Alive() bool {
	return s == Submitted || s == Accepted
}

// Side says whether an order opens or closes the spread.
type Side int

const (
	Open Side = iota
	Close
)

func (s Side) String() string {
	if s == Close {
		return "close"
	}
	return "open"
}

// OrderRequest is what a strategy asks the broker to do.
type OrderRequest struct {
	Side     Side
	Spread   market.Spread
	Quantity int
	Reason   string
}

// Order is a request as tracked by the broker. Price is the per-share
// credit received (Open) or debit paid (Close).
type Order struct {
	ID          string
	Request     OrderRequest
	Status      OrderStatus
	SubmittedAt time.Time
	FilledAt    time.Time
	Price       float64
	Commission  float64
	Note        string
}

func (o Order) String() string {
	return fmt.Sprintf("%s %s x%d %s", o.Request.Side, o.Request.Spread, o.Request.Quantity, o.Status)
}

// Trade is one round trip of a spread.
type Trade struct {
	ID         string
	Spread     market.Spread
	Quantity   int
	OpenedAt   time.Time
	ClosedAt   time.Time
	Credit     float64
	Debit      float64
	Commission float64
	PnL        float64
	ExitReason string
}
