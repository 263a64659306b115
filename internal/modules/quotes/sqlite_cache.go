package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finvoice/riskengine/internal/clientdata"
	"github.com/finvoice/riskengine/internal/domain"
)

// SQLiteCache stores quotes in the clientdata "quotes" table.
type SQLiteCache struct {
	repo *clientdata.Repository
}

// NewSQLiteCache creates a quote cache backed by the client data repository
func NewSQLiteCache(repo *clientdata.Repository) *SQLiteCache {
	return &SQLiteCache{repo: repo}
}

// GetMany returns the entries present for symbols, fresh or not.
// Rows that no longer decode are ignored.
func (c *SQLiteCache) GetMany(ctx context.Context, symbols []string) (map[string]Entry, error) {
	records, err := c.repo.GetMany(ctx, clientdata.TableQuotes, symbols)
	if err != nil {
		return nil, err
	}

	result := make(map[string]Entry, len(records))
	for symbol, record := range records {
		var quote domain.Quote
		if err := json.Unmarshal(record.Data, &quote); err != nil {
			continue
		}
		result[symbol] = Entry{Quote: quote, ExpiresAt: record.ExpiresAt}
	}
	return result, nil
}

// Set stores quote with expiry now + ttl.
func (c *SQLiteCache) Set(ctx context.Context, quote domain.Quote, ttl time.Duration) error {
	if err := c.repo.Store(ctx, clientdata.TableQuotes, quote.Symbol, quote, ttl); err != nil {
		return fmt.Errorf("failed to cache quote for %s: %w", quote.Symbol, err)
	}
	return nil
}

// Purge deletes rows that expired more than retention ago.
func (c *SQLiteCache) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	return c.repo.DeleteExpired(ctx, clientdata.TableQuotes, retention)
}
