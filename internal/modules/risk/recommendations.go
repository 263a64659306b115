package risk

// metricRecommendations holds the advice shown for each metric per tier.
var metricRecommendations = map[string]map[Level]string{
	MetricVolatility: {
		LevelLow:     "Portfolio volatility is within acceptable range",
		LevelMedium:  "Portfolio volatility is within acceptable range",
		LevelHigh:    "Monitor volatility and consider rebalancing if it increases further",
		LevelExtreme: "Consider adding defensive assets to reduce portfolio volatility",
	},
	MetricConcentration: {
		LevelLow:     "Concentration risk is well-managed",
		LevelMedium:  "Monitor concentration risk and consider diversification",
		LevelHigh:    "Reduce position size of largest holding to improve diversification",
		LevelExtreme: "Reduce position size of largest holding to improve diversification",
	},
	MetricSector: {
		LevelLow:     "Sector diversification is adequate",
		LevelMedium:  "Sector diversification is adequate",
		LevelHigh:    "Consider adding exposure to underrepresented sectors",
		LevelExtreme: "Diversify across sectors to reduce concentration risk",
	},
	MetricLiquidity: {
		LevelLow:     "Portfolio liquidity is sufficient",
		LevelMedium:  "Portfolio liquidity is sufficient",
		LevelHigh:    "Monitor liquidity needs and maintain adequate cash reserves",
		LevelExtreme: "Increase allocation to liquid assets for better portfolio flexibility",
	},
	MetricCurrency: {
		LevelLow:     "Currency risk is manageable",
		LevelMedium:  "Currency risk is manageable",
		LevelHigh:    "Monitor currency movements and hedge if volatility increases",
		LevelExtreme: "Consider currency hedging for foreign exposures",
	},
	MetricCorrelation: {
		LevelLow:     "Asset correlation provides good diversification benefits",
		LevelMedium:  "Consider assets with lower correlation to existing holdings",
		LevelHigh:    "Consider assets with lower correlation to existing holdings",
		LevelExtreme: "Add uncorrelated assets to improve portfolio diversification",
	},
}

// Recommendation returns the advice for metric at level.
func Recommendation(metric string, level Level) string {
	if byLevel, ok := metricRecommendations[metric]; ok {
		if text, ok := byLevel[level]; ok {
			return text
		}
	}
	return "Monitor risk metrics closely"
}

const maxRecommendations = 8

// consolidate builds the assessment-wide advice list: metric advice for
// high and extreme tiers, tail-loss warnings, mitigations from the top
// scenarios and crisis protocol, deduplicated and capped.
func consolidate(metrics []Metric, worstCaseLoss float64, scenarios []Scenario, crisisActive bool) []string {
	var recs []string
	for _, m := range metrics {
		if m.Level == LevelHigh || m.Level == LevelExtreme {
			recs = append(recs, m.Recommendation)
		}
	}

	if worstCaseLoss > 0.25 {
		recs = append(recs,
			"Consider implementing downside protection strategies",
			"Increase allocation to uncorrelated assets",
		)
	}

	for i, sc := range scenarios {
		if i >= 2 {
			break
		}
		if sc.Probability > 0.3 {
			n := len(sc.MitigationStrategies)
			if n > 2 {
				n = 2
			}
			recs = append(recs, sc.MitigationStrategies[:n]...)
		}
	}

	if crisisActive {
		recs = append(recs,
			"Activate crisis response protocols",
			"Increase monitoring frequency to daily",
		)
	}

	seen := make(map[string]bool, len(recs))
	unique := make([]string, 0, len(recs))
	for _, r := range recs {
		if seen[r] {
			continue
		}
		seen[r] = true
		unique = append(unique, r)
		if len(unique) == maxRecommendations {
			break
		}
	}
	return unique
}
