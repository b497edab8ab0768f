package data

import (
	"strings"
	"sync"
)

// CacheMode defines what a replay cursor does at the end of a session
type CacheMode string

const (
	CacheModeExhaust  CacheMode = "exhaust"  // stop at the last bar
	CacheModeRotation CacheMode = "rotation" // wrap to the first bar
)

// ParseCacheMode accepts "exhaust" or "rotation"; anything else is exhaust.
func ParseCacheMode(s string) CacheMode {
	if CacheMode(strings.ToLower(s)) == CacheModeRotation {
		return CacheModeRotation
	}
	return CacheModeExhaust
}

// IndexCache tracks replay positions per client, one cursor per root/date/client.
type IndexCache struct {
	mu      sync.RWMutex
	indexes map[string]int
	mode    CacheMode
}

func NewIndexCache(mode CacheMode) *IndexCache {
	return &IndexCache{
		indexes: make(map[string]int),
		mode:    mode,
	}
}

// Mode returns the end-of-session behavior.
func (c *IndexCache) Mode() CacheMode {
	return c.mode
}

// CacheKey creates the composite cursor key
func CacheKey(root, date, client string) string {
	return root + "/" + date + "/" + client
}

// GetAndAdvance returns the current bar index and advances the cursor.
// Returns (index, isExhausted)
func (c *IndexCache) GetAndAdvance(key string, length int) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexes[key]
	if length <= 0 || (c.mode == CacheModeExhaust && idx >= length) {
		return idx, true
	}

	if c.mode == CacheModeRotation {
		idx %= length
		c.indexes[key] = (idx + 1) % length
		return idx, false
	}

	c.indexes[key] = idx + 1
	return idx, false
}

// Reset drops the cursors of one client, or every cursor when client is empty.
func (c *IndexCache) Reset(client string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client == "" {
		count := len(c.indexes)
		c.indexes = make(map[string]int)
		return count
	}

	suffix := "/" + client
	count := 0
	for k := range c.indexes {
		if strings.HasSuffix(k, suffix) {
			delete(c.indexes, k)
			count++
		}
	}
	return count
}

// GetIndex returns the current position without advancing
func (c *IndexCache) GetIndex(key string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexes[key]
}
