package allocation

import (
	"regexp"
	"strings"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/shopspring/decimal"
)

// HedgeAsset is an instrument a hedge adds.
type HedgeAsset struct {
	Symbol    string  `json:"symbol"`
	Rationale string  `json:"rationale"`
	Weight    float64 `json:"weight"`
}

// HedgeReduction is an exposure a hedge trims.
type HedgeReduction struct {
	AssetClass string  `json:"asset_class"`
	Reduction  float64 `json:"reduction"`
}

// HedgeStrategy is a conditional protective overlay.
type HedgeStrategy struct {
	Name               string           `json:"name"`
	AssetsToAdd        []HedgeAsset     `json:"assets_to_add"`
	AssetsToReduce     []HedgeReduction `json:"assets_to_reduce"`
	EstimatedCost      decimal.Decimal  `json:"estimated_cost"`
	HedgingRatio       float64          `json:"hedging_ratio"`
	ExpectedProtection float64          `json:"expected_protection"`
	CostPercentage     float64          `json:"cost_percentage"`
}

var (
	geopoliticalPattern = regexp.MustCompile(`(?i)\b(wars?|warfare|wartime|conflicts?)\b`)
	inflationPattern    = regexp.MustCompile(`(?i)\binflation(ary)?\b`)
)

func volatilityHedge() HedgeStrategy {
	return HedgeStrategy{
		Name:               "Volatility Protection",
		AssetsToAdd:        []HedgeAsset{{Symbol: "^VIX", Weight: 0.05, Rationale: "Direct volatility hedge"}},
		AssetsToReduce:     []HedgeReduction{{AssetClass: "equity_small_cap", Reduction: 0.3}},
		HedgingRatio:       0.3,
		ExpectedProtection: 0.15,
		CostPercentage:     0.02,
	}
}

func currencyHedge() HedgeStrategy {
	return HedgeStrategy{
		Name: "Currency Protection",
		AssetsToAdd: []HedgeAsset{
			{Symbol: "DXY", Weight: 0.08, Rationale: "USD strength hedge"},
			{Symbol: "GC=F", Weight: 0.12, Rationale: "Currency debasement hedge"},
		},
		AssetsToReduce:     []HedgeReduction{},
		HedgingRatio:       0.2,
		ExpectedProtection: 0.10,
		CostPercentage:     0.015,
	}
}

func geopoliticalHedge() HedgeStrategy {
	return HedgeStrategy{
		Name: "Geopolitical Risk Hedge",
		AssetsToAdd: []HedgeAsset{
			{Symbol: "GC=F", Weight: 0.15, Rationale: "Safe haven demand"},
			{Symbol: "CL=F", Weight: 0.08, Rationale: "Energy security"},
			{Symbol: "XLU", Weight: 0.10, Rationale: "Defensive utilities"},
		},
		AssetsToReduce:     []HedgeReduction{{AssetClass: "equity_international", Reduction: 0.5}},
		HedgingRatio:       0.4,
		ExpectedProtection: 0.25,
		CostPercentage:     0.025,
	}
}

func inflationHedge() HedgeStrategy {
	return HedgeStrategy{
		Name: "Inflation Protection",
		AssetsToAdd: []HedgeAsset{
			{Symbol: "TIPS", Weight: 0.15, Rationale: "Inflation-protected securities"},
			{Symbol: "VNQ", Weight: 0.10, Rationale: "Real estate inflation hedge"},
			{Symbol: "DBC", Weight: 0.08, Rationale: "Commodity basket"},
		},
		AssetsToReduce:     []HedgeReduction{{AssetClass: "debt_long_term", Reduction: 0.4}},
		HedgingRatio:       0.35,
		ExpectedProtection: 0.20,
		CostPercentage:     0.02,
	}
}

// PlanHedges selects the hedges warranted by events. The currency hedge is
// always included. Costs are priced against totalValue.
func PlanHedges(events []domain.CrisisEvent, totalValue decimal.Decimal) []HedgeStrategy {
	var volatility, geopolitical, inflation bool
	for _, e := range events {
		if strings.Contains(strings.ToLower(e.Category), "volatility") {
			volatility = true
		}
		text := e.Category + " " + e.Description
		if geopoliticalPattern.MatchString(text) {
			geopolitical = true
		}
		if inflationPattern.MatchString(text) {
			inflation = true
		}
	}

	var hedges []HedgeStrategy
	if volatility {
		hedges = append(hedges, volatilityHedge())
	}
	hedges = append(hedges, currencyHedge())
	if geopolitical {
		hedges = append(hedges, geopoliticalHedge())
	}
	if inflation {
		hedges = append(hedges, inflationHedge())
	}

	for i := range hedges {
		hedges[i].EstimatedCost = totalValue.Mul(decimal.NewFromFloat(hedges[i].CostPercentage)).Round(2)
	}
	return hedges
}
