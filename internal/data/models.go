package data

import (
	"math"
	"time"

	"github.com/carloswaibl/algotrader/internal/market"
)

// BarRecord is the on-disk row of an underlying bar file.
type BarRecord struct {
	Timestamp    int64   `parquet:"timestamp" json:"timestamp" csv:"timestamp"`
	Open         float64 `parquet:"open" json:"open" csv:"open"`
	High         float64 `parquet:"high" json:"high" csv:"high"`
	Low          float64 `parquet:"low" json:"low" csv:"low"`
	Close        float64 `parquet:"close" json:"close" csv:"close"`
	Volume       float64 `parquet:"volume" json:"volume" csv:"volume"`
	VWAP         float64 `parquet:"vwap,optional" json:"vwap,omitempty" csv:"vwap"`
	Transactions int64   `parquet:"transactions,optional" json:"transactions,omitempty" csv:"transactions"`
}

// OptionRecord is the on-disk row of an options chain file.
type OptionRecord struct {
	Timestamp       int64    `parquet:"timestamp" json:"timestamp" csv:"timestamp"`
	UnderlyingPrice float64  `parquet:"underlying_price" json:"underlying_price" csv:"underlying_price"`
	ContractTicker  string   `parquet:"contract_ticker" json:"contract_ticker" csv:"contract_ticker"`
	ContractType    string   `parquet:"contract_type" json:"contract_type" csv:"contract_type"`
	Expiration      string   `parquet:"expiration" json:"expiration" csv:"expiration"`
	Strike          float64  `parquet:"strike" json:"strike" csv:"strike"`
	Bid             float64  `parquet:"bid" json:"bid" csv:"bid"`
	Ask             float64  `parquet:"ask" json:"ask" csv:"ask"`
	Delta           *float64 `parquet:"delta,optional" json:"delta,omitempty" csv:"delta"`
	Close           float64  `parquet:"close,optional" json:"close,omitempty" csv:"close"`
	Volume          float64  `parquet:"volume,optional" json:"volume,omitempty" csv:"volume"`
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// NewBarRecord converts a domain bar.
func NewBarRecord(b market.Bar) BarRecord {
	return BarRecord{
		Timestamp:    millis(b.Timestamp),
		Open:         b.Open,
		High:         b.High,
		Low:          b.Low,
		Close:        b.Close,
		Volume:       b.Volume,
		VWAP:         b.VWAP,
		Transactions: b.Trades,
	}
}

// Bar converts back to the domain type.
func (r BarRecord) Bar() market.Bar {
	return market.Bar{
		Timestamp: fromMillis(r.Timestamp),
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
		VWAP:      r.VWAP,
		Trades:    r.Transactions,
	}
}

// NewOptionRecord converts a chain row. close and volume are the contract's
// bar values when the row came from aggregates.
func NewOptionRecord(row market.ChainRow, close, volume float64) OptionRecord {
	rec := OptionRecord{
		Timestamp:       millis(row.Timestamp),
		UnderlyingPrice: row.UnderlyingPrice,
		ContractTicker:  row.Ticker,
		ContractType:    string(row.Type),
		Expiration:      row.Expiration,
		Strike:          row.Strike,
		Bid:             row.Bid,
		Ask:             row.Ask,
		Close:           close,
		Volume:          volume,
	}
	if row.HasDelta() {
		d := row.Delta
		rec.Delta = &d
	}
	return rec
}

// ChainRow converts back to the domain type.
func (r OptionRecord) ChainRow() (market.ChainRow, error) {
	ct, err := market.ParseContractType(r.ContractType)
	if err != nil {
		return market.ChainRow{}, err
	}
	delta := math.NaN()
	if r.Delta != nil {
		delta = *r.Delta
	}
	return market.ChainRow{
		Timestamp:       fromMillis(r.Timestamp),
		UnderlyingPrice: r.UnderlyingPrice,
		Ticker:          r.ContractTicker,
		Type:            ct,
		Expiration:      r.Expiration,
		Strike:          r.Strike,
		Bid:             r.Bid,
		Ask:             r.Ask,
		Delta:           delta,
	}, nil
}

// EquityRecord is one line of the equity curve CSV.
type EquityRecord struct {
	Date   string  `csv:"date"`
	Equity float64 `csv:"equity"`
}
