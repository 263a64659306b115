package snapshots

import (
	"context"
	"testing"
	"time"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/finvoice/riskengine/internal/modules/risk"
	"github.com/finvoice/riskengine/internal/modules/valuation"
	testhelpers "github.com/finvoice/riskengine/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, at time.Time) *Store {
	db := testhelpers.NewTestDB(t, "portfolio")
	store := NewStore(db.Conn(), zerolog.Nop())
	store.now = func() time.Time { return at }
	return store
}

func testValuation(portfolioID string, total int64) *valuation.PortfolioValuation {
	return &valuation.PortfolioValuation{
		PortfolioID:  portfolioID,
		MarketStatus: valuation.MarketClosed,
		Holdings: []valuation.ValuedHolding{{
			Symbol:       "AAA",
			AssetClass:   domain.AssetClassEquity,
			Quantity:     decimal.NewFromInt(10),
			Price:        decimal.NewFromInt(total / 10),
			CurrentValue: decimal.NewFromInt(total),
			Weight:       1,
			QuoteSource:  "yahoo",
		}},
		AssetClassBreakdown: map[domain.AssetClass]float64{domain.AssetClassEquity: 1},
		SectorBreakdown:     map[string]float64{"Other": 1},
		TotalValue:          decimal.NewFromInt(total),
		TotalInvested:       decimal.NewFromInt(1000),
		TotalPnL:            decimal.NewFromInt(total - 1000),
		DayChange:           decimal.RequireFromString("18"),
		TotalPnLPercent:     20,
		DayChangePercent:    1.5,
		HoldingCount:        1,
	}
}

func TestAppendAndQuery_RoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	store := newTestStore(t, at)
	ctx := context.Background()

	id, err := store.Append(ctx, testValuation("p1", 1200), nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	snaps, err := store.Query(ctx, "p1", at.Add(-time.Hour), time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	snap := snaps[0]
	assert.Equal(t, id, snap.ID)
	assert.True(t, decimal.NewFromInt(1200).Equal(snap.TotalValue))
	assert.True(t, decimal.NewFromInt(200).Equal(snap.TotalPnL))
	assert.Equal(t, 20.0, snap.TotalPnLPercent)
	assert.Equal(t, 1.0, snap.AllocationBreakdown[domain.AssetClassEquity])
	require.Len(t, snap.HoldingsSummary, 1)
	assert.Equal(t, "AAA", snap.HoldingsSummary[0].Symbol)
	assert.Equal(t, at, snap.CreatedAt)
	assert.Empty(t, snap.AssessmentID)
}

func TestQuery_NewestFirstPreservesAppendOrder(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	store := newTestStore(t, at)
	ctx := context.Background()

	first, err := store.Append(ctx, testValuation("p1", 1100), nil)
	require.NoError(t, err)
	second, err := store.Append(ctx, testValuation("p1", 1200), nil)
	require.NoError(t, err)

	store.now = func() time.Time { return at.Add(time.Minute) }
	third, err := store.Append(ctx, testValuation("p1", 1300), nil)
	require.NoError(t, err)

	snaps, err := store.Query(ctx, "p1", at.Add(-time.Hour), time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, []string{third, second, first}, []string{snaps[0].ID, snaps[1].ID, snaps[2].ID})
	assert.Greater(t, snaps[1].Seq, snaps[2].Seq)
}

func TestQuery_ClockStepBackKeepsAppendOrder(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	store := newTestStore(t, at)
	ctx := context.Background()

	first, err := store.Append(ctx, testValuation("p1", 1100), nil)
	require.NoError(t, err)

	store.now = func() time.Time { return at.Add(-30 * time.Second) }
	second, err := store.Append(ctx, testValuation("p1", 1200), nil)
	require.NoError(t, err)

	snaps, err := store.Query(ctx, "p1", at.Add(-time.Hour), time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, second, snaps[0].ID)
	assert.Equal(t, first, snaps[1].ID)
	assert.True(t, snaps[0].CreatedAt.Before(snaps[1].CreatedAt))
}

func TestQuery_FiltersByPortfolioRangeAndLimit(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(t, base)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		i := i
		store.now = func() time.Time { return base.AddDate(0, 0, i) }
		_, err := store.Append(ctx, testValuation("p1", 1000+int64(i)), nil)
		require.NoError(t, err)
	}
	_, err := store.Append(ctx, testValuation("other", 5000), nil)
	require.NoError(t, err)

	snaps, err := store.Query(ctx, "p1", base.AddDate(0, 0, 1), base.AddDate(0, 0, 3), 0)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.True(t, decimal.NewFromInt(1003).Equal(snaps[0].TotalValue))

	limited, err := store.Query(ctx, "p1", base, time.Time{}, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	ids, err := store.ListPortfolioIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"other", "p1"}, ids)
}

func TestAppend_WithAssessment(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	store := newTestStore(t, at)
	ctx := context.Background()

	a := &risk.Assessment{
		ID:           "a-1",
		PortfolioID:  "p1",
		OverallScore: 42.5,
		Category:     risk.CategoryModerate,
		Degraded:     true,
	}
	_, err := store.Append(ctx, testValuation("p1", 1200), a)
	require.NoError(t, err)

	snaps, err := store.Query(ctx, "p1", at.Add(-time.Minute), time.Time{}, 1)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "a-1", snaps[0].AssessmentID)

	loaded, err := store.GetAssessment(ctx, "a-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 42.5, loaded.OverallScore)
	assert.True(t, loaded.Degraded)

	missing, err := store.GetAssessment(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAppend_FailureWrapsPersistenceError(t *testing.T) {
	db := testhelpers.NewTestDB(t, "portfolio")
	store := NewStore(db.Conn(), zerolog.Nop())
	require.NoError(t, db.Conn().Close())

	_, err := store.Append(context.Background(), testValuation("p1", 1200), nil)
	assert.ErrorIs(t, err, domain.ErrSnapshotPersistence)
}

func TestHistory_ClampsWindow(t *testing.T) {
	now := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	store := newTestStore(t, now.AddDate(0, 0, -40))
	ctx := context.Background()

	_, err := store.Append(ctx, testValuation("p1", 1000), nil)
	require.NoError(t, err)
	store.now = func() time.Time { return now.AddDate(0, 0, -5) }
	_, err = store.Append(ctx, testValuation("p1", 1100), nil)
	require.NoError(t, err)

	store.now = func() time.Time { return now }
	recent, err := store.History(ctx, "p1", 0)
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	all, err := store.History(ctx, "p1", 90)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestClampHistoryDays(t *testing.T) {
	assert.Equal(t, DefaultHistoryDays, ClampHistoryDays(0))
	assert.Equal(t, DefaultHistoryDays, ClampHistoryDays(-3))
	assert.Equal(t, 7, ClampHistoryDays(7))
	assert.Equal(t, MaxHistoryDays, ClampHistoryDays(100000))
}
