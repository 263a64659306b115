package holdings

import (
	"context"
	"testing"
	"time"

	"github.com/finvoice/riskengine/internal/domain"
	testhelpers "github.com/finvoice/riskengine/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	db := testhelpers.NewTestDB(t, "portfolio")
	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestUpsertAndList(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, h := range testhelpers.NewHoldingFixtures() {
		_, err := repo.Upsert(ctx, h)
		require.NoError(t, err)
	}

	holdings, err := repo.ListActiveHoldings(ctx, testhelpers.FixturePortfolioID)
	require.NoError(t, err)
	require.Len(t, holdings, 4)

	assert.Equal(t, "GOLDBEES.NS", holdings[0].Symbol)
	assert.Equal(t, domain.AssetClassCommodity, holdings[0].AssetClass)
	assert.True(t, decimal.NewFromInt(40).Equal(holdings[0].Quantity))
	assert.Equal(t, "USD", holdings[1].Currency)
	assert.True(t, decimal.RequireFromString("108.5").Equal(holdings[1].AveragePrice))
}

func TestUpsert_UpdatesActiveHoldingInPlace(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	h := testhelpers.NewHoldingFixtures()[0]
	id, err := repo.Upsert(ctx, h)
	require.NoError(t, err)

	h.Quantity = decimal.NewFromInt(25)
	h.AveragePrice = decimal.NewFromInt(2900)
	again, err := repo.Upsert(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	holdings, err := repo.ListActiveHoldings(ctx, h.PortfolioID)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.True(t, decimal.NewFromInt(25).Equal(holdings[0].Quantity))
}

func TestUpsert_NormalizesAndValidates(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, domain.Holding{
		PortfolioID:  "p1",
		Symbol:       " AAA ",
		AssetClass:   "Stocks",
		Currency:     "usd",
		Quantity:     decimal.NewFromInt(1),
		AveragePrice: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	holdings, err := repo.ListActiveHoldings(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "AAA", holdings[0].Symbol)
	assert.Equal(t, domain.AssetClassEquity, holdings[0].AssetClass)
	assert.Equal(t, "USD", holdings[0].Currency)

	_, err = repo.Upsert(ctx, domain.Holding{PortfolioID: "p1", Symbol: "BBB", AssetClass: "equity", Currency: "INR"})
	assert.Error(t, err)
	_, err = repo.Upsert(ctx, domain.Holding{PortfolioID: "p1", Symbol: "BBB", AssetClass: "spaceships", Currency: "INR", Quantity: decimal.NewFromInt(1)})
	assert.Error(t, err)
}

func TestRetire(t *testing.T) {
	repo := newTestRepository(t)
	repo.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	for _, h := range testhelpers.NewHoldingFixtures() {
		_, err := repo.Upsert(ctx, h)
		require.NoError(t, err)
	}

	require.NoError(t, repo.Retire(ctx, testhelpers.FixturePortfolioID, "TCS.NS"))
	assert.ErrorIs(t, repo.Retire(ctx, testhelpers.FixturePortfolioID, "TCS.NS"), ErrHoldingNotFound)

	holdings, err := repo.ListActiveHoldings(ctx, testhelpers.FixturePortfolioID)
	require.NoError(t, err)
	assert.Len(t, holdings, 3)

	// A retired symbol can be bought again as a new holding.
	h := testhelpers.NewHoldingFixtures()[1]
	_, err = repo.Upsert(ctx, h)
	require.NoError(t, err)
	holdings, err = repo.ListActiveHoldings(ctx, testhelpers.FixturePortfolioID)
	require.NoError(t, err)
	assert.Len(t, holdings, 4)
}

func TestListPortfolioIDs_ExcludesFullyRetired(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, pid := range []string{"b", "a"} {
		_, err := repo.Upsert(ctx, domain.Holding{
			PortfolioID: pid, Symbol: "AAA", AssetClass: domain.AssetClassEquity,
			Currency: "INR", Quantity: decimal.NewFromInt(1), AveragePrice: decimal.NewFromInt(1),
		})
		require.NoError(t, err)
	}
	require.NoError(t, repo.Retire(ctx, "b", "AAA"))

	ids, err := repo.ListPortfolioIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}
