// Package stress applies a library of macro shock scenarios to a valued
// portfolio and summarizes the projected losses.
package stress

import (
	"strings"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/finvoice/riskengine/internal/modules/valuation"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Resilience labels
const (
	HighlyResilient     = "Highly Resilient"
	ModeratelyResilient = "Moderately Resilient"
	Vulnerable          = "Vulnerable"
	HighRisk            = "High Risk"
)

// Result is the projected outcome of one scenario.
type Result struct {
	Scenario                string          `json:"scenario"`
	LossAmount              decimal.Decimal `json:"loss_amount"`
	RecoveryTime            string          `json:"recovery_time"`
	LossFraction            float64         `json:"loss_fraction"`
	MitigationEffectiveness float64         `json:"mitigation_effectiveness"`
}

// Summary aggregates the results of one stress run.
type Summary struct {
	Resilience    string   `json:"resilience"`
	Results       []Result `json:"results"`
	WorstCaseLoss float64  `json:"worst_case_loss"`
	AverageLoss   float64  `json:"average_loss"`
	StressScore   float64  `json:"stress_score"`
	Degraded      bool     `json:"degraded"`
}

// Engine runs the scenario library against valuations
type Engine struct {
	scenarios []Scenario
	log       zerolog.Logger
}

// NewEngine creates a stress engine. A nil library uses DefaultScenarios.
func NewEngine(scenarios []Scenario, log zerolog.Logger) *Engine {
	if scenarios == nil {
		scenarios = DefaultScenarios()
	}
	return &Engine{
		scenarios: scenarios,
		log:       log.With().Str("component", "stress").Logger(),
	}
}

// Scenarios returns the configured library.
func (e *Engine) Scenarios() []Scenario {
	return e.scenarios
}

// Run applies every scenario to v. An empty valuation loses nothing.
func (e *Engine) Run(v *valuation.PortfolioValuation) *Summary {
	mitigation := MitigationEffectiveness(v)

	results := make([]Result, 0, len(e.scenarios))
	losses := make([]float64, 0, len(e.scenarios))
	for _, sc := range e.scenarios {
		loss := LossFraction(v, sc)
		results = append(results, Result{
			Scenario:                sc.Name,
			LossFraction:            loss,
			LossAmount:              v.TotalValue.Mul(decimal.NewFromFloat(loss)).Round(2),
			RecoveryTime:            RecoveryTime(loss),
			MitigationEffectiveness: mitigation,
		})
		losses = append(losses, loss)
	}

	summary := &Summary{Results: results, Degraded: v.Degraded}
	if len(losses) > 0 {
		summary.WorstCaseLoss = floats.Max(losses)
		summary.AverageLoss = stat.Mean(losses, nil)
	}
	summary.StressScore = Score(summary.AverageLoss, summary.WorstCaseLoss)
	summary.Resilience = Resilience(summary.StressScore)

	e.log.Debug().
		Str("portfolio_id", v.PortfolioID).
		Float64("worst_case_loss", summary.WorstCaseLoss).
		Float64("stress_score", summary.StressScore).
		Msg("Stress test complete")

	return summary
}

// LossFraction is the portfolio loss under sc as a fraction of value. Gains
// count as zero loss.
func LossFraction(v *valuation.PortfolioValuation, sc Scenario) float64 {
	impact := 0.0
	for _, h := range v.Holdings {
		impact += h.Weight * sc.Shock(h.AssetClass)
	}
	if impact >= 0 {
		return 0
	}
	return -impact
}

// RecoveryTime buckets a loss fraction into an expected recovery window.
func RecoveryTime(loss float64) string {
	switch {
	case loss <= 0.05:
		return "1-3 months"
	case loss <= 0.10:
		return "6-12 months"
	case loss <= 0.20:
		return "1-2 years"
	case loss <= 0.30:
		return "2-4 years"
	default:
		return "4+ years"
	}
}

// IsDefensive reports whether a holding counts toward mitigation: cash,
// government debt, gold or utilities.
func IsDefensive(h valuation.ValuedHolding) bool {
	if h.AssetClass == domain.AssetClassCash {
		return true
	}
	text := strings.ToLower(h.Sector + " " + h.Name + " " + h.Symbol)
	for _, marker := range []string{"government", "gold", "utilit"} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// MitigationEffectiveness is twice the defensive weight, capped at 1.
func MitigationEffectiveness(v *valuation.PortfolioValuation) float64 {
	defensive := 0.0
	for _, h := range v.Holdings {
		if IsDefensive(h) {
			defensive += h.Weight
		}
	}
	return clamp(defensive*2, 0, 1)
}

// Score maps average and worst-case loss onto 0-100, higher is safer.
func Score(average, worst float64) float64 {
	return clamp(100*(1-(average*0.7+worst*0.3)), 0, 100)
}

// Resilience labels a stress score.
func Resilience(score float64) string {
	switch {
	case score >= 80:
		return HighlyResilient
	case score >= 60:
		return ModeratelyResilient
	case score >= 40:
		return Vulnerable
	default:
		return HighRisk
	}
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
