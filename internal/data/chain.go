package data

import (
	"fmt"
	"sort"
	"time"

	"github.com/carloswaibl/algotrader/internal/market"
)

// Chain indexes options rows by contract and time so a strategy can ask for the
// chain as it looked at a given instant.
type Chain struct {
	byContract map[string][]market.ChainRow // sorted by Timestamp
	times      []time.Time
	size       int
}

// NewChain builds the index. Rows without a ticker are keyed by type and strike.
func NewChain(rows []market.ChainRow) *Chain {
	c := &Chain{byContract: make(map[string][]market.ChainRow)}
	seen := make(map[int64]struct{})

	for _, r := range rows {
		key := r.Ticker
		if key == "" {
			key = fmt.Sprintf("%s/%s/%g", r.Expiration, r.Type, r.Strike)
		}
		c.byContract[key] = append(c.byContract[key], r)
		if _, ok := seen[r.Timestamp.UnixMilli()]; !ok {
			seen[r.Timestamp.UnixMilli()] = struct{}{}
			c.times = append(c.times, r.Timestamp)
		}
		c.size++
	}

	for k := range c.byContract {
		series := c.byContract[k]
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].Timestamp.Before(series[j].Timestamp)
		})
	}
	sort.Slice(c.times, func(i, j int) bool { return c.times[i].Before(c.times[j]) })

	return c
}

// Len is the total number of rows.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return c.size
}

// Contracts is the number of distinct contracts.
func (c *Chain) Contracts() int {
	if c == nil {
		return 0
	}
	return len(c.byContract)
}

// Timestamps returns every distinct observation time in order.
func (c *Chain) Timestamps() []time.Time {
	if c == nil {
		return nil
	}
	return c.times
}

// At returns the rows observed exactly at t.
func (c *Chain) At(t time.Time) []market.ChainRow {
	if c == nil {
		return nil
	}
	var out []market.ChainRow
	for _, series := range c.byContract {
		i := sort.Search(len(series), func(i int) bool { return !series[i].Timestamp.Before(t) })
		if i < len(series) && series[i].Timestamp.Equal(t) {
			out = append(out, series[i])
		}
	}
	sortRows(out)
	return out
}

// AsOf returns, for every contract, its latest row at or before t. Rows older
// than maxAge are left out; maxAge <= 0 disables the age limit.
func (c *Chain) AsOf(t time.Time, maxAge time.Duration) []market.ChainRow {
	if c == nil {
		return nil
	}
	var out []market.ChainRow
	for _, series := range c.byContract {
		i := sort.Search(len(series), func(i int) bool { return series[i].Timestamp.After(t) })
		if i == 0 {
			continue
		}
		row := series[i-1]
		if maxAge > 0 && t.Sub(row.Timestamp) > maxAge {
			continue
		}
		out = append(out, row)
	}
	sortRows(out)
	return out
}

// Find returns the as-of row for one contract type and strike.
func (c *Chain) Find(t time.Time, maxAge time.Duration, ct market.ContractType, strike float64) (market.ChainRow, bool) {
	return market.Lookup(c.AsOf(t, maxAge), ct, strike)
}

// Rows returns every row ordered by time, type and strike.
func (c *Chain) Rows() []market.ChainRow {
	if c == nil {
		return nil
	}
	out := make([]market.ChainRow, 0, c.size)
	for _, series := range c.byContract {
		out = append(out, series...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return lessRow(out[i], out[j])
	})
	return out
}

func sortRows(rows []market.ChainRow) {
	sort.Slice(rows, func(i, j int) bool { return lessRow(rows[i], rows[j]) })
}

func lessRow(a, b market.ChainRow) bool {
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	if a.Strike != b.Strike {
		return a.Strike < b.Strike
	}
	return a.Expiration < b.Expiration
}
