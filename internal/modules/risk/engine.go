// Package risk computes threshold-classified risk metrics for a valued
// portfolio and combines them with stress results into an overall score.
package risk

import (
	"strings"
	"time"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/finvoice/riskengine/internal/modules/stress"
	"github.com/finvoice/riskengine/internal/modules/valuation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metric is one classified risk dimension.
type Metric struct {
	Name           string     `json:"name"`
	Label          string     `json:"label"`
	Level          Level      `json:"risk_level"`
	Recommendation string     `json:"recommendation"`
	Thresholds     Thresholds `json:"thresholds"`
	Value          float64    `json:"current_value"`
}

// Assessment is the result of one risk run. Assessments are never updated;
// a new run produces a new assessment.
type Assessment struct {
	ComputedAt      time.Time       `json:"computed_at"`
	ValuationAt     time.Time       `json:"valuation_at"`
	Stress          *stress.Summary `json:"stress"`
	ID              string          `json:"id"`
	PortfolioID     string          `json:"portfolio_id"`
	Category        string          `json:"risk_category"`
	Metrics         []Metric        `json:"metrics"`
	Scenarios       []Scenario      `json:"scenarios"`
	Recommendations []string        `json:"recommendations"`
	OverallScore    float64         `json:"overall_score"`
	Degraded        bool            `json:"degraded"`
}

// Metric returns the named metric, if present.
func (a *Assessment) Metric(name string) (Metric, bool) {
	for _, m := range a.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}

// Config is the immutable configuration of an Engine.
type Config struct {
	Thresholds      map[string]Thresholds
	MetricWeights   map[string]float64
	LiquidityScores map[domain.AssetClass]float64
	Volatility      VolatilityModel
	Correlation     CorrelationModel
	BaseCurrency    string
	// StressBlend is the share of the overall score taken from the stress test.
	StressBlend float64
}

// DefaultLiquidityScores maps asset classes to how readily they convert to cash.
func DefaultLiquidityScores() map[domain.AssetClass]float64 {
	return map[domain.AssetClass]float64{
		domain.AssetClassCash:        1.0,
		domain.AssetClassEquity:      0.9,
		domain.AssetClassDebt:        0.85,
		domain.AssetClassCommodity:   0.5,
		domain.AssetClassAlternative: 0.1,
	}
}

// DefaultConfig returns the standard tables for baseCurrency.
func DefaultConfig(baseCurrency string) Config {
	return Config{
		Thresholds:      DefaultThresholds(),
		MetricWeights:   DefaultMetricWeights(),
		LiquidityScores: DefaultLiquidityScores(),
		Volatility:      DefaultVolatilityModel(),
		Correlation:     DefaultCorrelationModel(),
		BaseCurrency:    strings.ToUpper(baseCurrency),
		StressBlend:     0.3,
	}
}

// Engine computes risk assessments
type Engine struct {
	cfg    Config
	stress *stress.Engine
	log    zerolog.Logger
	now    func() time.Time
}

// NewEngine creates a risk engine. stressEngine is used by Assess; callers
// that already ran a stress test use AssessWithStress.
func NewEngine(cfg Config, stressEngine *stress.Engine, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		stress: stressEngine,
		log:    log.With().Str("component", "risk").Logger(),
		now:    time.Now,
	}
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Assess runs the stress library and computes the assessment for v.
func (e *Engine) Assess(v *valuation.PortfolioValuation, events []domain.CrisisEvent) *Assessment {
	return e.AssessWithStress(v, e.stress.Run(v), events)
}

// AssessWithStress computes the assessment for v using a precomputed stress summary.
func (e *Engine) AssessWithStress(v *valuation.PortfolioValuation, summary *stress.Summary, events []domain.CrisisEvent) *Assessment {
	metrics := e.Metrics(v)

	base := 0.0
	totalWeight := 0.0
	for _, m := range metrics {
		w := e.cfg.MetricWeights[m.Name]
		base += w * m.Level.Score()
		totalWeight += w
	}
	if totalWeight > 0 {
		base /= totalWeight
	} else {
		base = 50
	}

	stressScore := 50.0
	worst := 0.0
	if summary != nil {
		stressScore = summary.StressScore
		worst = summary.WorstCaseLoss
	}

	overall := base*(1-e.cfg.StressBlend) + (100-stressScore)*e.cfg.StressBlend
	overall = clamp(overall, 0, 100)

	scenarios := analyzeScenarios(v.TotalValue, events)

	a := &Assessment{
		ID:              uuid.NewString(),
		PortfolioID:     v.PortfolioID,
		ComputedAt:      e.now().UTC(),
		ValuationAt:     v.ComputedAt,
		OverallScore:    overall,
		Category:        Category(overall),
		Metrics:         metrics,
		Stress:          summary,
		Scenarios:       scenarios,
		Recommendations: consolidate(metrics, worst, scenarios, len(events) > 0),
		Degraded:        v.Degraded,
	}

	e.log.Debug().
		Str("portfolio_id", v.PortfolioID).
		Float64("score", a.OverallScore).
		Str("category", a.Category).
		Msg("Risk assessment computed")

	return a
}

// Metrics computes the six classified metrics in MetricOrder.
func (e *Engine) Metrics(v *valuation.PortfolioValuation) []Metric {
	values := map[string]float64{
		MetricVolatility:    e.volatility(v),
		MetricConcentration: concentration(v),
		MetricSector:        maxWeight(v.SectorBreakdown),
		MetricLiquidity:     e.liquidity(v),
		MetricCurrency:      e.currency(v),
		MetricCorrelation:   e.correlation(v),
	}

	metrics := make([]Metric, 0, len(MetricOrder))
	for _, name := range MetricOrder {
		t := e.cfg.Thresholds[name]
		level := t.Classify(values[name])
		metrics = append(metrics, Metric{
			Name:           name,
			Label:          metricLabels[name],
			Value:          values[name],
			Thresholds:     t,
			Level:          level,
			Recommendation: Recommendation(name, level),
		})
	}
	return metrics
}

func (e *Engine) volatility(v *valuation.PortfolioValuation) float64 {
	weights := make([]float64, len(v.Holdings))
	classes := make([]domain.AssetClass, len(v.Holdings))
	for i, h := range v.Holdings {
		weights[i] = h.Weight
		classes[i] = h.AssetClass
	}
	return PortfolioVolatility(weights, classes, e.cfg.Volatility, e.cfg.Correlation)
}

func concentration(v *valuation.PortfolioValuation) float64 {
	weights := v.SymbolWeights()
	highest := 0.0
	for _, w := range weights {
		if w > highest {
			highest = w
		}
	}
	return highest
}

func maxWeight(breakdown map[string]float64) float64 {
	highest := 0.0
	for _, w := range breakdown {
		if w > highest {
			highest = w
		}
	}
	return highest
}

// liquidity is the weighted average illiquidity (1 - score).
func (e *Engine) liquidity(v *valuation.PortfolioValuation) float64 {
	if len(v.Holdings) == 0 {
		return 0
	}
	weights := make([]float64, len(v.Holdings))
	illiquidity := make([]float64, len(v.Holdings))
	for i, h := range v.Holdings {
		score, ok := e.cfg.LiquidityScores[h.AssetClass]
		if !ok {
			score = 0.5
		}
		weights[i] = h.Weight
		illiquidity[i] = 1 - score
	}
	if floats.Sum(weights) <= 0 {
		return 0
	}
	return stat.Mean(illiquidity, weights)
}

// currency is the share of value held in instruments not denominated in the base currency.
func (e *Engine) currency(v *valuation.PortfolioValuation) float64 {
	foreign := 0.0
	for _, h := range v.Holdings {
		if h.Currency != "" && !strings.EqualFold(h.Currency, e.cfg.BaseCurrency) {
			foreign += h.Weight
		}
	}
	return foreign
}

// correlation is the mean class correlation over all holding pairs.
func (e *Engine) correlation(v *valuation.PortfolioValuation) float64 {
	n := len(v.Holdings)
	if n < 2 {
		return 0
	}
	pairs := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, e.cfg.Correlation.Correlation(v.Holdings[i].AssetClass, v.Holdings[j].AssetClass))
		}
	}
	return stat.Mean(pairs, nil)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
