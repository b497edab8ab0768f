package data

import (
	"sync"

	"github.com/carloswaibl/algotrader/internal/market"
)

// MemoryLoader keeps every loaded session in memory so repeated reads (the
// replay server) do not decode Parquet again.
type MemoryLoader struct {
	next   Loader
	mu     sync.RWMutex
	bars   map[string][]market.Bar
	chains map[string]*Chain
}

var _ Loader = (*MemoryLoader)(nil)

func NewMemoryLoader(next Loader) *MemoryLoader {
	return &MemoryLoader{
		next:   next,
		bars:   make(map[string][]market.Bar),
		chains: make(map[string]*Chain),
	}
}

// DataKey creates a unique key for ticker/date
func DataKey(ticker, date string) string {
	return market.Root(ticker) + "/" + date
}

func (m *MemoryLoader) LoadBars(ticker, date string) ([]market.Bar, error) {
	key := DataKey(ticker, date)

	m.mu.RLock()
	bars, ok := m.bars[key]
	m.mu.RUnlock()
	if ok {
		return bars, nil
	}

	bars, err := m.next.LoadBars(ticker, date)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.bars[key] = bars
	m.mu.Unlock()
	return bars, nil
}

func (m *MemoryLoader) LoadChain(ticker, date string) (*Chain, error) {
	key := DataKey(ticker, date)

	m.mu.RLock()
	chain, ok := m.chains[key]
	m.mu.RUnlock()
	if ok {
		return chain, nil
	}

	chain, err := m.next.LoadChain(ticker, date)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.chains[key] = chain
	m.mu.Unlock()
	return chain, nil
}

func (m *MemoryLoader) Exists(ticker, date string) bool {
	m.mu.RLock()
	_, ok := m.bars[DataKey(ticker, date)]
	m.mu.RUnlock()
	return ok || m.next.Exists(ticker, date)
}

func (m *MemoryLoader) Dates(ticker string) ([]string, error) {
	return m.next.Dates(ticker)
}

// GetLoadedKeys returns all cached ticker/date keys
func (m *MemoryLoader) GetLoadedKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.bars))
	for k := range m.bars {
		keys = append(keys, k)
	}
	return keys
}
