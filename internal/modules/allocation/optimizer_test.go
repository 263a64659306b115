package allocation

import (
	"testing"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/finvoice/riskengine/internal/modules/risk"
	"github.com/finvoice/riskengine/internal/modules/valuation"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOptimizer() *Optimizer {
	return NewOptimizer(DefaultTables(), DefaultUniverse(), risk.DefaultVolatilityModel(), risk.DefaultCorrelationModel(), zerolog.Nop())
}

func portfolio() *valuation.PortfolioValuation {
	return &valuation.PortfolioValuation{
		PortfolioID: "p1",
		TotalValue:  decimal.NewFromInt(100000),
		Holdings: []valuation.ValuedHolding{
			{Symbol: "RELIANCE.NS", AssetClass: domain.AssetClassEquity, Weight: 0.6},
			{Symbol: "CASH", AssetClass: domain.AssetClassCash, Weight: 0.4},
		},
		HoldingCount: 2,
	}
}

func TestOptimize_ConservativeSevereCrisisRaisesCash(t *testing.T) {
	events := []domain.CrisisEvent{{Category: "economic", Description: "Banking collapse", Severity: 9}}

	result, err := newOptimizer().Optimize(portfolio(), Request{RiskTolerance: "conservative", HorizonMonths: 36}, events)
	require.NoError(t, err)

	assert.InDelta(t, 0.7, result.CrisisAdjustments.BlendWeight, 1e-12)
	assert.Equal(t, TierExtreme, result.CrisisAdjustments.Tier)
	assert.Greater(t, result.TargetAllocation[BucketCash], 0.05)
	assert.InDelta(t, 0.155, result.TargetAllocation[BucketCash], 1e-9)
	assert.Len(t, result.CrisisAdjustments.RecommendedChanges, 5)
}

func TestOptimize_TargetsSumToOne(t *testing.T) {
	for _, tol := range []string{"conservative", "moderate", "aggressive"} {
		result, err := newOptimizer().Optimize(portfolio(), Request{RiskTolerance: tol, HorizonMonths: 12}, nil)
		require.NoError(t, err)

		total := 0.0
		for _, target := range result.Targets {
			assert.GreaterOrEqual(t, target.TargetWeight, 0.0)
			total += target.TargetWeight
		}
		assert.InDelta(t, 1.0, total, 1e-6, tol)
		assert.Zero(t, result.CrisisAdjustments.BlendWeight)
	}
}

func TestOptimize_EquitySplitByTolerance(t *testing.T) {
	result, err := newOptimizer().Optimize(portfolio(), Request{RiskTolerance: "aggressive", HorizonMonths: 120}, nil)
	require.NoError(t, err)

	segments := map[string]float64{}
	for _, target := range result.Targets {
		segments[target.Segment] += target.TargetWeight
	}
	assert.InDelta(t, 0.70*0.5, segments["equity_large_cap"], 1e-9)
	assert.InDelta(t, 0.70*0.3, segments["equity_mid_cap"], 1e-9)
	assert.InDelta(t, 0.70*0.2, segments["equity_small_cap"], 1e-9)
	assert.InDelta(t, 0.20*0.7, segments["debt_government"], 1e-9)
	assert.InDelta(t, 0.20*0.3, segments["debt_corporate"], 1e-9)
}

func TestOptimize_RebalanceUsesCurrentWeights(t *testing.T) {
	result, err := newOptimizer().Optimize(portfolio(), Request{RiskTolerance: "moderate", HorizonMonths: 60}, nil)
	require.NoError(t, err)

	for _, ins := range result.Rebalance.Instructions {
		if ins.Symbol == "CASH" {
			assert.Equal(t, ActionSell, ins.Action)
			assert.InDelta(t, 0.4, ins.CurrentWeight, 1e-12)
			assert.InDelta(t, 0.1, ins.TargetWeight, 1e-12)
			return
		}
	}
	t.Fatal("expected an instruction for CASH")
}

func TestOptimize_RejectsInvalidInput(t *testing.T) {
	o := newOptimizer()

	_, err := o.Optimize(portfolio(), Request{RiskTolerance: "reckless", HorizonMonths: 12}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRiskTolerance)

	_, err = o.Optimize(portfolio(), Request{RiskTolerance: "moderate", HorizonMonths: 0}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidHorizon)
}

func TestOptimize_ExpectedPerformance(t *testing.T) {
	result, err := newOptimizer().Optimize(portfolio(), Request{RiskTolerance: "moderate", HorizonMonths: 60}, nil)
	require.NoError(t, err)

	perf := result.ExpectedPerformance
	assert.InDelta(t, 0.5*0.12+0.3*0.06+0.1*0.08+0.1*0.04, perf.ExpectedReturn, 1e-9)
	assert.Greater(t, perf.ExpectedVolatility, 0.0)
	assert.InDelta(t, (perf.ExpectedReturn-RiskFreeRate)/perf.ExpectedVolatility, perf.SharpeRatio, 1e-9)
}

func TestPlanHedges(t *testing.T) {
	total := decimal.NewFromInt(100000)

	hedges := PlanHedges(nil, total)
	require.Len(t, hedges, 1)
	assert.Equal(t, "Currency Protection", hedges[0].Name)
	assert.True(t, decimal.NewFromInt(1500).Equal(hedges[0].EstimatedCost))

	events := []domain.CrisisEvent{
		{Category: "market_volatility", Description: "VIX spike"},
		{Category: "geopolitical", Description: "Armed conflict near border"},
		{Category: "economic", Description: "Inflation at decade high"},
	}
	names := []string{}
	for _, h := range PlanHedges(events, total) {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"Volatility Protection", "Currency Protection", "Geopolitical Risk Hedge", "Inflation Protection"}, names)
}

func TestPlanHedges_KeywordVariants(t *testing.T) {
	tests := []struct {
		description string
		want        string
	}{
		{"Military conflicts escalate in region", "Geopolitical Risk Hedge"},
		{"Trade warfare deepens", "Geopolitical Risk Hedge"},
		{"Civil war in neighbouring state", "Geopolitical Risk Hedge"},
		{"Inflationary pressure surges", "Inflation Protection"},
		{"INFLATION print beats forecast", "Inflation Protection"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			events := []domain.CrisisEvent{{Category: "economic", Description: tt.description}}
			names := []string{}
			for _, h := range PlanHedges(events, decimal.NewFromInt(1000)) {
				names = append(names, h.Name)
			}
			assert.Equal(t, []string{"Currency Protection", tt.want}, names)
		})
	}
}

func TestPlanHedges_KeywordsMatchWholeWords(t *testing.T) {
	events := []domain.CrisisEvent{{Category: "economic", Description: "Software warranty dispute"}}
	for _, h := range PlanHedges(events, decimal.NewFromInt(1)) {
		assert.NotEqual(t, "Geopolitical Risk Hedge", h.Name)
	}
}
