package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/finvoice/riskengine/internal/modules/allocation"
	"github.com/finvoice/riskengine/internal/modules/quotes"
	"github.com/finvoice/riskengine/internal/modules/risk"
	"github.com/finvoice/riskengine/internal/modules/snapshots"
	"github.com/finvoice/riskengine/internal/modules/stress"
	"github.com/finvoice/riskengine/internal/modules/valuation"
	testhelpers "github.com/finvoice/riskengine/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHoldings struct {
	byPortfolio map[string][]domain.Holding
	calls       int
	err         error
}

func (f *fakeHoldings) ListActiveHoldings(ctx context.Context, portfolioID string) ([]domain.Holding, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.byPortfolio[portfolioID], nil
}

func (f *fakeHoldings) ListPortfolioIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.byPortfolio))
	for id := range f.byPortfolio {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeFeed struct {
	events []domain.CrisisEvent
	err    error
}

func (f *fakeFeed) ListActiveEvents(ctx context.Context) ([]domain.CrisisEvent, error) {
	return f.events, f.err
}

type fakeQuotes struct {
	prices map[string]decimal.Decimal
}

func (f *fakeQuotes) GetQuotes(ctx context.Context, symbols []string, forceRefresh bool) (*quotes.QuoteSet, error) {
	set := &quotes.QuoteSet{AsOf: time.Now(), Quotes: map[string]domain.Quote{}}
	for _, s := range symbols {
		set.Quotes[s] = domain.Quote{Symbol: s, Price: f.prices[s], Currency: "INR", Source: "fake"}
	}
	return set, nil
}

type failingStore struct{}

func (failingStore) Append(ctx context.Context, v *valuation.PortfolioValuation, a *risk.Assessment) (string, error) {
	return "", errors.New("disk full")
}

func (failingStore) History(ctx context.Context, portfolioID string, days int) ([]snapshots.Snapshot, error) {
	return nil, errors.New("disk full")
}

func aaaHolding() domain.Holding {
	return domain.Holding{
		PortfolioID:  "p1",
		Symbol:       "AAA",
		AssetClass:   domain.AssetClassEquity,
		Currency:     "INR",
		Quantity:     decimal.NewFromInt(10),
		AveragePrice: decimal.NewFromInt(100),
	}
}

func newTestEngine(t *testing.T, holdings *fakeHoldings, feed domain.CrisisFeed, store SnapshotStore) *Engine {
	log := zerolog.Nop()
	calc := valuation.NewCalculator(
		&fakeQuotes{prices: map[string]decimal.Decimal{"AAA": decimal.NewFromInt(120)}},
		nil,
		valuation.Config{BaseCurrency: "INR"},
		log,
	)
	stressEngine := stress.NewEngine(stress.DefaultScenarios(), log)
	if store == nil {
		db := testhelpers.NewTestDB(t, "portfolio")
		store = snapshots.NewStore(db.Conn(), log)
	}
	return NewEngine(Dependencies{
		Holdings:  holdings,
		Crisis:    feed,
		Valuator:  calc,
		Risk:      risk.NewEngine(risk.DefaultConfig("INR"), stressEngine, log),
		Stress:    stressEngine,
		Optimizer: allocation.NewOptimizer(allocation.DefaultTables(), allocation.DefaultUniverse(), risk.DefaultVolatilityModel(), risk.DefaultCorrelationModel(), log),
		Snapshots: store,
	}, log)
}

func TestValuation_EndToEnd(t *testing.T) {
	holdings := &fakeHoldings{byPortfolio: map[string][]domain.Holding{"p1": {aaaHolding()}}}
	engine := newTestEngine(t, holdings, &fakeFeed{}, nil)

	v, err := engine.Valuation(context.Background(), "p1", false)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1200).Equal(v.TotalValue))
	assert.True(t, decimal.NewFromInt(1000).Equal(v.TotalInvested))
	assert.InDelta(t, 20.0, v.TotalPnLPercent, 1e-9)
	assert.InDelta(t, 1.0, v.AssetClassBreakdown[domain.AssetClassEquity], 1e-9)
}

func TestValuation_UnknownPortfolioIsEmpty(t *testing.T) {
	engine := newTestEngine(t, &fakeHoldings{}, &fakeFeed{}, nil)

	v, err := engine.Valuation(context.Background(), "nobody", false)
	require.NoError(t, err)
	assert.True(t, v.IsEmpty())
	assert.True(t, v.TotalValue.IsZero())
}

func TestAnalyze_UsesOneValuation(t *testing.T) {
	holdings := &fakeHoldings{byPortfolio: map[string][]domain.Holding{"p1": {aaaHolding()}}}
	engine := newTestEngine(t, holdings, &fakeFeed{events: []domain.CrisisEvent{testhelpers.NewCrisisFixture("c1", 7)}}, nil)

	a, err := engine.Analyze(context.Background(), "p1")
	require.NoError(t, err)
	assert.Same(t, a.Stress, a.Assessment.Stress)
	assert.Equal(t, a.Valuation.ComputedAt, a.Assessment.ValuationAt)
	assert.Len(t, a.Events, 1)
	assert.NotEmpty(t, a.Assessment.ID)
}

func TestAnalyze_CrisisFeedFailureDegradesToNoEvents(t *testing.T) {
	holdings := &fakeHoldings{byPortfolio: map[string][]domain.Holding{"p1": {aaaHolding()}}}
	engine := newTestEngine(t, holdings, &fakeFeed{err: errors.New("feed down")}, nil)

	a, err := engine.Analyze(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, a.Events)
}

func TestAnalyze_HoldingsFailure(t *testing.T) {
	engine := newTestEngine(t, &fakeHoldings{err: errors.New("db locked")}, &fakeFeed{}, nil)

	_, err := engine.Analyze(context.Background(), "p1")
	assert.ErrorContains(t, err, "db locked")
}

func TestOptimize_RejectsInvalidInputBeforeLoading(t *testing.T) {
	holdings := &fakeHoldings{byPortfolio: map[string][]domain.Holding{"p1": {aaaHolding()}}}
	engine := newTestEngine(t, holdings, &fakeFeed{}, nil)
	ctx := context.Background()

	_, err := engine.Optimize(ctx, "p1", allocation.Request{RiskTolerance: "wild", HorizonMonths: 12})
	assert.ErrorIs(t, err, domain.ErrInvalidRiskTolerance)
	_, err = engine.Optimize(ctx, "p1", allocation.Request{RiskTolerance: "moderate", HorizonMonths: 1000})
	assert.ErrorIs(t, err, domain.ErrInvalidHorizon)
	assert.Zero(t, holdings.calls)

	result, err := engine.Optimize(ctx, "p1", allocation.Request{RiskTolerance: "moderate", HorizonMonths: 24})
	require.NoError(t, err)
	assert.Equal(t, "p1", result.PortfolioID)
	assert.NotEmpty(t, result.Targets)
}

func TestSnapshot_PersistsAndAppearsInHistory(t *testing.T) {
	holdings := &fakeHoldings{byPortfolio: map[string][]domain.Holding{"p1": {aaaHolding()}}}
	engine := newTestEngine(t, holdings, &fakeFeed{}, nil)
	ctx := context.Background()

	res, err := engine.Snapshot(ctx, "p1", true)
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	assert.NotEmpty(t, res.SnapshotID)
	require.NotNil(t, res.Assessment)

	history, err := engine.History(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, res.SnapshotID, history[0].ID)
	assert.Equal(t, res.Assessment.ID, history[0].AssessmentID)
}

func TestSnapshot_PersistenceFailureStillReturnsValuation(t *testing.T) {
	holdings := &fakeHoldings{byPortfolio: map[string][]domain.Holding{"p1": {aaaHolding()}}}
	engine := newTestEngine(t, holdings, &fakeFeed{}, failingStore{})

	res, err := engine.Snapshot(context.Background(), "p1", false)
	assert.ErrorIs(t, err, domain.ErrSnapshotPersistence)
	require.NotNil(t, res)
	assert.False(t, res.Persisted)
	assert.Contains(t, res.Error, "disk full")
	assert.True(t, decimal.NewFromInt(1200).Equal(res.Valuation.TotalValue))
	assert.Nil(t, res.Assessment)
}

func TestSnapshotAll(t *testing.T) {
	holdings := &fakeHoldings{byPortfolio: map[string][]domain.Holding{
		"p1": {aaaHolding()},
		"p2": {aaaHolding()},
	}}
	engine := newTestEngine(t, holdings, &fakeFeed{}, nil)

	stored, err := engine.SnapshotAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stored)
}
