package quotes

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/finvoice/riskengine/internal/clientdata"
	"github.com/finvoice/riskengine/internal/domain"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteCache_SetAndGetMany(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`CREATE TABLE quotes (symbol TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL)`)
	require.NoError(t, err)

	cache := NewSQLiteCache(clientdata.NewRepository(db))
	ctx := context.Background()

	q := domain.Quote{Symbol: "TCS.NS", Price: decimal.RequireFromString("3850.25"), Currency: "INR", Source: "yahoo", FetchedAt: time.Now().UTC()}
	require.NoError(t, cache.Set(ctx, q, 5*time.Minute))

	entries, err := cache.GetMany(ctx, []string{"TCS.NS", "NOPE"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, q.Price.Equal(entries["TCS.NS"].Quote.Price))
	assert.True(t, entries["TCS.NS"].Fresh(time.Now()))

	removed, err := cache.Purge(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
