package risk

import (
	"sort"
	"strings"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/shopspring/decimal"
)

// Scenario is a forward-looking, probability-weighted loss estimate.
type Scenario struct {
	Name                 string          `json:"name"`
	Timeline             string          `json:"timeline"`
	Description          string          `json:"description"`
	MitigationStrategies []string        `json:"mitigation_strategies"`
	PotentialLoss        decimal.Decimal `json:"potential_loss"`
	ExpectedLoss         decimal.Decimal `json:"expected_loss"`
	Probability          float64         `json:"probability"`
	Impact               float64         `json:"impact"`
}

type scenarioTemplate struct {
	name        string
	timeline    string
	description string
	probability float64
	impact      float64
}

var baseScenarios = []scenarioTemplate{
	{"Economic Recession", "6-18 months", "Economic downturn with declining GDP", 0.25, -0.20},
	{"High Inflation Period", "12-24 months", "Sustained high inflation eroding real returns", 0.30, -0.15},
	{"Market Correction", "3-6 months", "10-20% market decline from recent highs", 0.40, -0.12},
}

const maxScenarios = 5

// analyzeScenarios builds the base scenarios plus one per crisis event,
// sorted by expected loss and truncated.
func analyzeScenarios(totalValue decimal.Decimal, events []domain.CrisisEvent) []Scenario {
	templates := append([]scenarioTemplate(nil), baseScenarios...)
	for _, e := range events {
		templates = append(templates, scenarioTemplate{
			name:        "Crisis: " + e.Category,
			timeline:    "1-12 months",
			description: e.Description,
			probability: minFloat(0.6, e.Severity/10),
			impact:      -0.05 * e.Severity,
		})
	}

	scenarios := make([]Scenario, 0, len(templates))
	for _, t := range templates {
		loss := totalValue.Mul(decimal.NewFromFloat(absFloat(t.impact))).Round(2)
		scenarios = append(scenarios, Scenario{
			Name:                 t.name,
			Timeline:             t.timeline,
			Description:          t.description,
			Probability:          t.probability,
			Impact:               t.impact,
			PotentialLoss:        loss,
			ExpectedLoss:         loss.Mul(decimal.NewFromFloat(t.probability)).Round(2),
			MitigationStrategies: mitigationStrategies(t.name),
		})
	}

	sort.SliceStable(scenarios, func(i, j int) bool {
		return scenarios[i].ExpectedLoss.GreaterThan(scenarios[j].ExpectedLoss)
	})

	if len(scenarios) > maxScenarios {
		scenarios = scenarios[:maxScenarios]
	}
	return scenarios
}

func mitigationStrategies(name string) []string {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "recession"):
		return []string{
			"Increase cash allocation to 20%",
			"Focus on defensive dividend stocks",
			"Add government bonds for stability",
			"Reduce cyclical sector exposure",
		}
	case strings.Contains(n, "inflation"):
		return []string{
			"Increase commodity exposure",
			"Add inflation-protected securities (TIPS)",
			"Consider real estate investment",
			"Reduce long-duration bonds",
		}
	case strings.Contains(n, "correction"):
		return []string{
			"Implement stop-loss orders",
			"Dollar-cost average during decline",
			"Increase value stock allocation",
			"Maintain dry powder for opportunities",
		}
	case strings.Contains(n, "crisis"):
		return []string{
			"Increase gold and safe haven allocation",
			"Add volatility hedging instruments",
			"Reduce leverage and margin",
			"Diversify across uncorrelated assets",
		}
	default:
		return []string{
			"Maintain diversified allocation",
			"Regular rebalancing",
			"Monitor risk metrics closely",
			"Keep adequate liquidity",
		}
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
