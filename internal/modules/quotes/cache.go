package quotes

import (
	"context"
	"sync"
	"time"

	"github.com/finvoice/riskengine/internal/domain"
)

// Entry is a cached quote with its expiry. Backends keep entries past expiry
// (for the stale retention window) so the adapter can fall back to them.
type Entry struct {
	ExpiresAt time.Time
	Quote     domain.Quote
}

// Fresh reports whether the entry is still within its TTL at now.
func (e Entry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Cache stores quotes keyed by symbol. Set is last-write-wins.
type Cache interface {
	GetMany(ctx context.Context, symbols []string) (map[string]Entry, error)
	Set(ctx context.Context, quote domain.Quote, ttl time.Duration) error
}

// Purger is implemented by backends that need expired entries removed
// explicitly. Redis expires keys on its own.
type Purger interface {
	Purge(ctx context.Context, retention time.Duration) (int64, error)
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryCache creates an empty in-memory quote cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// GetMany returns the entries present for symbols, fresh or not.
func (c *MemoryCache) GetMany(_ context.Context, symbols []string) (map[string]Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]Entry, len(symbols))
	for _, s := range symbols {
		if e, ok := c.entries[s]; ok {
			result[s] = e
		}
	}
	return result, nil
}

// Set stores quote with expiry now + ttl.
func (c *MemoryCache) Set(_ context.Context, quote domain.Quote, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[quote.Symbol] = Entry{Quote: quote, ExpiresAt: c.now().Add(ttl)}
	return nil
}

// Purge drops entries that expired more than retention ago and returns how many were removed.
func (c *MemoryCache) Purge(_ context.Context, retention time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-retention)
	var removed int64
	for symbol, e := range c.entries {
		if e.ExpiresAt.Before(cutoff) {
			delete(c.entries, symbol)
			removed++
		}
	}
	return removed, nil
}
