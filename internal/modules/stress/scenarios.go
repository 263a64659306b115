package stress

import "github.com/finvoice/riskengine/internal/domain"

// Scenario is a named macro shock expressed as a signed return per asset
// class. Classes not listed are unaffected.
type Scenario struct {
	Name   string                        `json:"name"`
	Shocks map[domain.AssetClass]float64 `json:"shocks"`
}

// Shock returns the scenario's shock for class, zero when absent.
func (s Scenario) Shock(class domain.AssetClass) float64 {
	return s.Shocks[class]
}

// DefaultScenarios returns the built-in scenario library in evaluation order.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{
			Name: "market_crash_2008",
			Shocks: map[domain.AssetClass]float64{
				domain.AssetClassEquity:    -0.40,
				domain.AssetClassDebt:      -0.10,
				domain.AssetClassCommodity: 0.15,
			},
		},
		{
			Name: "covid_2020",
			Shocks: map[domain.AssetClass]float64{
				domain.AssetClassEquity:    -0.35,
				domain.AssetClassDebt:      0.05,
				domain.AssetClassCommodity: 0.25,
			},
		},
		{
			Name: "ukraine_war_2022",
			Shocks: map[domain.AssetClass]float64{
				domain.AssetClassEquity:      -0.15,
				domain.AssetClassCommodity:   0.30,
				domain.AssetClassAlternative: -0.10,
			},
		},
		{
			Name: "inflation_shock",
			Shocks: map[domain.AssetClass]float64{
				domain.AssetClassDebt:      -0.20,
				domain.AssetClassCommodity: 0.35,
				domain.AssetClassCash:      -0.15,
			},
		},
		{
			Name: "recession",
			Shocks: map[domain.AssetClass]float64{
				domain.AssetClassEquity:      -0.25,
				domain.AssetClassDebt:        0.10,
				domain.AssetClassAlternative: -0.15,
			},
		},
		{
			Name: "geopolitical_crisis",
			Shocks: map[domain.AssetClass]float64{
				domain.AssetClassEquity:      -0.30,
				domain.AssetClassCommodity:   0.20,
				domain.AssetClassAlternative: -0.20,
			},
		},
	}
}
