package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/data"
	"github.com/carloswaibl/algotrader/internal/market"
)

var multiplier = decimal.NewFromInt(market.ContractMultiplier)

// position is the single open spread the broker carries.
type position struct {
	orderID    string
	spread     market.Spread
	quantity   int
	openedAt   time.Time
	credit     float64
	commission decimal.Decimal
}

// Broker simulates order handling for vertical spreads. Orders submitted
// on one bar fill on the next at quoted prices. Closing orders fall back
// to intrinsic value when a leg has no quote; opening orders fall back to
// the credit the strategy asked for.
type Broker struct {
	startingCash decimal.Decimal
	cash         decimal.Decimal
	commission   decimal.Decimal // per contract per leg
	quoter       data.Quoter
	pending      []*Order
	orders       []*Order
	open         *position
	trades       []Trade
	logger       *zap.Logger
}

func NewBroker(cash, commission float64, quoter data.Quoter, logger *zap.Logger) *Broker {
	if quoter == nil {
		quoter = data.NewChainQuoter(nil, 0)
	}
	c := decimal.NewFromFloat(cash)
	return &Broker{
		startingCash: c,
		cash:         c,
		commission:   decimal.NewFromFloat(commission),
		quoter:       quoter,
		logger:       logger,
	}
}

func (b *Broker) StartingCash() float64 {
	return b.startingCash.InexactFloat64()
}

func (b *Broker) Cash() float64 {
	return b.cash.InexactFloat64()
}

// HasPosition reports whether a spread is open.
func (b *Broker) HasPosition() bool {
	return b.open != nil
}

func (b *Broker) Trades() []Trade {
	return b.trades
}

// Orders returns every order ever submitted, in submission order.
func (b *Broker) Orders() []Order {
	out := make([]Order, len(b.orders))
	for i, o := range b.orders {
		out[i] = *o
	}
	return out
}

func (b *Broker) legCommission(quantity int) decimal.Decimal {
	// two legs per spread
	return b.commission.Mul(decimal.NewFromInt(int64(2 * quantity)))
}

func notional(perShare float64, quantity int) decimal.Decimal {
	return decimal.NewFromFloat(perShare).Mul(multiplier).Mul(decimal.NewFromInt(int64(quantity)))
}

// Submit checks an order against the account and queues it for the next
// bar. The returned order is either Accepted, Margin or Rejected.
func (b *Broker) Submit(req OrderRequest, at time.Time) Order {
	o := &Order{
		ID:          uuid.NewString(),
		Request:     req,
		Status:      Submitted,
		SubmittedAt: at,
	}
	b.orders = append(b.orders, o)

	switch {
	case req.Quantity < 1:
		b.reject(o, Rejected, "quantity must be positive")
	case req.Side == Open && (b.open != nil || b.hasPending(Open)):
		b.reject(o, Rejected, "a spread is already open")
	case req.Side == Open && req.Spread.Width() <= 0:
		b.reject(o, Rejected, "spread has no width")
	case req.Side == Close && b.open == nil:
		b.reject(o, Rejected, "no open spread")
	case req.Side == Close && b.hasPending(Close):
		b.reject(o, Rejected, "close already pending")
	case req.Side == Open && b.marginRequired(req).GreaterThan(b.cash):
		b.reject(o, Margin, fmt.Sprintf("max loss %s exceeds cash %s",
			b.marginRequired(req).StringFixed(2), b.cash.StringFixed(2)))
	default:
		o.Status = Accepted
		b.pending = append(b.pending, o)
		b.logger.Debug("order accepted", zap.String("id", o.ID), zap.String("order", o.String()))
	}
	return *o
}

// marginRequired is the worst-case loss plus commissions on both sides.
func (b *Broker) marginRequired(req OrderRequest) decimal.Decimal {
	return notional(req.Spread.Width(), req.Quantity).Add(b.legCommission(req.Quantity).Mul(decimal.NewFromInt(2)))
}

func (b *Broker) hasPending(side Side) bool {
	for _, o := range b.pending {
		if o.Request.Side == side {
			return true
		}
	}
	return false
}

func (b *Broker) reject(o *Order, status OrderStatus, note string) {
	o.Status = status
	o.Note = note
	b.logger.Info("order not accepted",
		zap.String("id", o.ID),
		zap.String("order", o.String()),
		zap.String("reason", note))
}

// Process fills the orders queued before bar and returns their final state.
func (b *Broker) Process(bar market.Bar) []Order {
	if len(b.pending) == 0 {
		return nil
	}
	queued := b.pending
	b.pending = nil

	out := make([]Order, 0, len(queued))
	for _, o := range queued {
		switch o.Request.Side {
		case Open:
			b.fillOpen(o, bar)
		case Close:
			b.fillClose(o, bar)
		}
		out = append(out, *o)
	}
	return out
}

func (b *Broker) fillOpen(o *Order, bar market.Bar) {
	req := o.Request
	credit, ok := b.quoter.OpenCredit(bar.Timestamp, req.Spread)
	if !ok {
		credit = req.Spread.Credit
	}
	if credit <= 0 {
		b.reject(o, Canceled, fmt.Sprintf("no credit at fill (%.2f)", credit))
		return
	}

	fee := b.legCommission(req.Quantity)
	b.cash = b.cash.Add(notional(credit, req.Quantity)).Sub(fee)

	spread := req.Spread
	spread.Credit = credit
	b.open = &position{
		orderID:    o.ID,
		spread:     spread,
		quantity:   req.Quantity,
		openedAt:   bar.Timestamp,
		credit:     credit,
		commission: fee,
	}

	o.Status = Completed
	o.FilledAt = bar.Timestamp
	o.Price = credit
	o.Commission = fee.InexactFloat64()
	b.logger.Info("spread opened",
		zap.String("id", o.ID),
		zap.String("spread", spread.String()),
		zap.Int("quantity", req.Quantity),
		zap.Float64("credit", credit),
		zap.String("cash", b.cash.StringFixed(2)))
}

func (b *Broker) fillClose(o *Order, bar market.Bar) {
	if b.open == nil {
		b.reject(o, Canceled, "spread already closed")
		return
	}
	debit := b.closeDebit(bar)
	b.closePosition(o, bar.Timestamp, debit, o.Request.Reason)
}

// closeDebit prices buying the open spread back on bar, clamped to its
// exercise range.
func (b *Broker) closeDebit(bar market.Bar) float64 {
	s := b.open.spread
	debit, ok := b.quoter.CloseDebit(bar.Timestamp, s)
	if !ok {
		debit = s.IntrinsicDebit(bar.Close)
	}
	return math.Min(math.Max(debit, 0), s.Width())
}

func (b *Broker) closePosition(o *Order, at time.Time, debit float64, reason string) {
	p := b.open
	fee := b.legCommission(p.quantity)
	b.cash = b.cash.Sub(notional(debit, p.quantity)).Sub(fee)

	pnl := notional(p.credit-debit, p.quantity).Sub(p.commission).Sub(fee)
	b.trades = append(b.trades, Trade{
		ID:         p.orderID,
		Spread:     p.spread,
		Quantity:   p.quantity,
		OpenedAt:   p.openedAt,
		ClosedAt:   at,
		Credit:     p.credit,
		Debit:      debit,
		Commission: p.commission.Add(fee).InexactFloat64(),
		PnL:        pnl.InexactFloat64(),
		ExitReason: reason,
	})
	b.open = nil

	o.Status = Completed
	o.FilledAt = at
	o.Price = debit
	o.Commission = fee.InexactFloat64()
	b.logger.Info("spread closed",
		zap.String("id", o.ID),
		zap.String("reason", reason),
		zap.Float64("debit", debit),
		zap.String("pnl", pnl.StringFixed(2)),
		zap.String("cash", b.cash.StringFixed(2)))
}

// Settle closes any open spread at intrinsic value on the final bar and
// cancels orders that never filled.
func (b *Broker) Settle(bar market.Bar) []Order {
	var out []Order
	for _, o := range b.pending {
		b.reject(o, Canceled, "end of data")
		out = append(out, *o)
	}
	b.pending = nil

	if b.open == nil {
		return out
	}
	o := &Order{
		ID:          uuid.NewString(),
		Request:     OrderRequest{Side: Close, Spread: b.open.spread, Quantity: b.open.quantity, Reason: "settlement"},
		Status:      Accepted,
		SubmittedAt: bar.Timestamp,
	}
	b.orders = append(b.orders, o)
	debit := math.Min(math.Max(b.open.spread.IntrinsicDebit(bar.Close), 0), b.open.spread.Width())
	b.closePosition(o, bar.Timestamp, debit, "settlement")
	return append(out, *o)
}

// Value marks the account to market at bar.
func (b *Broker) Value(bar market.Bar) float64 {
	if b.open == nil {
		return b.cash.InexactFloat64()
	}
	liability := notional(b.closeDebit(bar), b.open.quantity)
	return b.cash.Sub(liability).InexactFloat64()
}
