// Package allocation produces crisis-adjusted target allocations, hedging
// overlays and rebalancing instructions for a valued portfolio.
package allocation

import (
	"time"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/finvoice/riskengine/internal/modules/risk"
	"github.com/finvoice/riskengine/internal/modules/valuation"
	"github.com/rs/zerolog"
)

// Request holds the caller supplied optimizer inputs.
type Request struct {
	RiskTolerance string `json:"risk_tolerance"`
	HorizonMonths int    `json:"horizon_months"`
}

// CrisisAdjustments describes how active crisis events moved the allocation.
type CrisisAdjustments struct {
	TriggeredBy        []string     `json:"triggered_by"`
	RecommendedChanges []string     `json:"recommended_changes"`
	Emergency          Allocation   `json:"emergency_allocation,omitempty"`
	Tier               SeverityTier `json:"severity_tier,omitempty"`
	Severity           float64      `json:"severity_level"`
	BlendWeight        float64      `json:"blend_weight"`
}

// Performance is the expected behaviour of the target allocation.
type Performance struct {
	ConfidenceInterval [2]float64 `json:"confidence_interval"`
	ExpectedReturn     float64    `json:"expected_annual_return"`
	ExpectedVolatility float64    `json:"expected_volatility"`
	SharpeRatio        float64    `json:"expected_sharpe_ratio"`
}

// Result is one optimizer run.
type Result struct {
	ComputedAt          time.Time         `json:"computed_at"`
	PortfolioID         string            `json:"portfolio_id"`
	RiskTolerance       RiskTolerance     `json:"risk_tolerance"`
	BaseAllocation      Allocation        `json:"base_allocation"`
	TargetAllocation    Allocation        `json:"target_allocation"`
	Targets             []Target          `json:"targets"`
	Hedges              []HedgeStrategy   `json:"hedges"`
	Rebalance           Plan              `json:"rebalance"`
	CrisisAdjustments   CrisisAdjustments `json:"crisis_adjustments"`
	ExpectedPerformance Performance       `json:"expected_performance"`
	HorizonMonths       int               `json:"horizon_months"`
	Degraded            bool              `json:"degraded"`
}

// ExpectedReturns are the annual return assumptions per bucket.
var ExpectedReturns = map[Bucket]float64{
	BucketEquity: 0.12,
	BucketDebt:   0.06,
	BucketGold:   0.08,
	BucketCash:   0.04,
}

// RiskFreeRate is the Sharpe ratio hurdle.
const RiskFreeRate = 0.04

// Optimizer builds target allocations
type Optimizer struct {
	tables   Tables
	universe Universe
	vol      risk.VolatilityModel
	corr     risk.CorrelationModel
	log      zerolog.Logger
	now      func() time.Time
}

// NewOptimizer creates an optimizer over tables and universe, using the risk
// models to estimate expected volatility.
func NewOptimizer(tables Tables, universe Universe, vol risk.VolatilityModel, corr risk.CorrelationModel, log zerolog.Logger) *Optimizer {
	return &Optimizer{
		tables:   tables,
		universe: universe,
		vol:      vol,
		corr:     corr,
		log:      log.With().Str("component", "allocation").Logger(),
		now:      time.Now,
	}
}

// Optimize validates req and computes targets, hedges and a rebalance plan
// for v. Malformed input is rejected with a validation error.
func (o *Optimizer) Optimize(v *valuation.PortfolioValuation, req Request, events []domain.CrisisEvent) (*Result, error) {
	tolerance, err := ParseRiskTolerance(req.RiskTolerance)
	if err != nil {
		return nil, err
	}
	if err := ValidateHorizon(req.HorizonMonths); err != nil {
		return nil, err
	}

	base := o.tables.Base[tolerance].Clone()
	adjustments := o.crisisAdjustments(events)

	target := base.Normalize()
	if len(events) > 0 {
		target = Blend(base, adjustments.Emergency, adjustments.BlendWeight)
	}

	current := v.SymbolWeights()
	targets := o.instrumentTargets(target, tolerance, current)

	result := &Result{
		ComputedAt:          o.now().UTC(),
		PortfolioID:         v.PortfolioID,
		RiskTolerance:       tolerance,
		HorizonMonths:       req.HorizonMonths,
		BaseAllocation:      base,
		TargetAllocation:    target,
		Targets:             targets,
		Hedges:              PlanHedges(events, v.TotalValue),
		Rebalance:           Rebalance(targets, current, v.TotalValue),
		CrisisAdjustments:   adjustments,
		ExpectedPerformance: o.expectedPerformance(target),
		Degraded:            v.Degraded,
	}

	o.log.Debug().
		Str("portfolio_id", v.PortfolioID).
		Str("risk_tolerance", string(tolerance)).
		Float64("blend_weight", adjustments.BlendWeight).
		Int("trades", result.Rebalance.TotalTrades).
		Msg("Allocation optimized")

	return result, nil
}

func (o *Optimizer) crisisAdjustments(events []domain.CrisisEvent) CrisisAdjustments {
	adj := CrisisAdjustments{
		TriggeredBy:        []string{},
		RecommendedChanges: []string{},
	}
	if len(events) == 0 {
		return adj
	}

	severity := domain.MaxSeverity(events)
	adj.Severity = severity
	adj.Tier = TierFor(severity)
	adj.BlendWeight = BlendWeight(severity)
	adj.Emergency = o.tables.Emergency[adj.Tier].Clone()

	for i, e := range events {
		if i == 3 {
			break
		}
		adj.TriggeredBy = append(adj.TriggeredBy, e.Description)
	}

	switch {
	case severity >= 8:
		adj.RecommendedChanges = []string{
			"Increase cash allocation to 20%",
			"Add 15% gold and precious metals",
			"Reduce equity exposure to 35%",
			"Add government bonds for stability",
			"Activate currency hedging",
		}
	case severity >= 6:
		adj.RecommendedChanges = []string{
			"Increase cash allocation to 15%",
			"Add 10% defensive assets",
			"Reduce high-beta positions",
			"Add inflation hedging",
		}
	case severity >= 4:
		adj.RecommendedChanges = []string{
			"Monitor positions closely",
			"Consider defensive sector rotation",
			"Maintain higher cash buffer",
		}
	}
	return adj
}

// instrumentTargets spreads each bucket weight over its universe segments and
// each segment weight equally over the segment's instruments.
func (o *Optimizer) instrumentTargets(alloc Allocation, tolerance RiskTolerance, current map[string]float64) []Target {
	var targets []Target
	for _, seg := range o.universe {
		if len(seg.Instruments) == 0 {
			continue
		}
		segWeight := alloc[seg.Bucket] * o.tables.segmentShare(seg, tolerance)
		each := segWeight / float64(len(seg.Instruments))
		for _, inst := range seg.Instruments {
			cur := current[inst.Symbol]
			targets = append(targets, Target{
				Segment:       seg.Key(),
				Symbol:        inst.Symbol,
				Name:          inst.Name,
				Rationale:     seg.Rationale,
				CurrentWeight: cur,
				TargetWeight:  each,
				Action:        actionFor(cur, each),
			})
		}
	}
	return targets
}

func (o *Optimizer) expectedPerformance(alloc Allocation) Performance {
	ret := 0.0
	classWeights := make(map[domain.AssetClass]float64, len(alloc))
	for _, b := range Buckets {
		ret += alloc[b] * ExpectedReturns[b]
		classWeights[b.AssetClass()] += alloc[b]
	}

	vol := risk.ClassVolatility(classWeights, o.vol, o.corr)
	perf := Performance{
		ExpectedReturn:     ret,
		ExpectedVolatility: vol,
		ConfidenceInterval: [2]float64{ret - 1.96*vol, ret + 1.96*vol},
	}
	if vol > 0 {
		perf.SharpeRatio = (ret - RiskFreeRate) / vol
	}
	return perf
}
