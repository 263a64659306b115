package risk

// Level is a risk tier.
type Level string

const (
	LevelLow     Level = "low"
	LevelMedium  Level = "medium"
	LevelHigh    Level = "high"
	LevelExtreme Level = "extreme"
)

// Score returns the tier's contribution to the overall score.
func (l Level) Score() float64 {
	switch l {
	case LevelLow:
		return 20
	case LevelMedium:
		return 50
	case LevelHigh:
		return 75
	case LevelExtreme:
		return 95
	}
	return 50
}

// Metric names
const (
	MetricVolatility    = "portfolio_volatility"
	MetricConcentration = "concentration_risk"
	MetricSector        = "sector_concentration"
	MetricLiquidity     = "liquidity_risk"
	MetricCurrency      = "currency_risk"
	MetricCorrelation   = "correlation_risk"
)

// MetricOrder is the order metrics appear in an assessment.
var MetricOrder = []string{
	MetricVolatility,
	MetricConcentration,
	MetricSector,
	MetricLiquidity,
	MetricCurrency,
	MetricCorrelation,
}

var metricLabels = map[string]string{
	MetricVolatility:    "Portfolio Volatility",
	MetricConcentration: "Concentration Risk",
	MetricSector:        "Sector Concentration",
	MetricLiquidity:     "Liquidity Risk",
	MetricCurrency:      "Currency Risk",
	MetricCorrelation:   "Asset Correlation",
}

// Thresholds are the upper bounds of the low, medium and high tiers.
// Anything above High is extreme. Extreme is kept for reporting.
type Thresholds struct {
	Low     float64 `json:"low"`
	Medium  float64 `json:"medium"`
	High    float64 `json:"high"`
	Extreme float64 `json:"extreme"`
}

// Classify maps a metric value onto a tier. It is non-decreasing in value.
func (t Thresholds) Classify(value float64) Level {
	switch {
	case value <= t.Low:
		return LevelLow
	case value <= t.Medium:
		return LevelMedium
	case value <= t.High:
		return LevelHigh
	default:
		return LevelExtreme
	}
}

// DefaultThresholds returns the per-metric threshold tables.
func DefaultThresholds() map[string]Thresholds {
	return map[string]Thresholds{
		MetricVolatility:    {Low: 0.10, Medium: 0.15, High: 0.20, Extreme: 0.30},
		MetricConcentration: {Low: 0.20, Medium: 0.30, High: 0.40, Extreme: 0.60},
		MetricCorrelation:   {Low: 0.30, Medium: 0.50, High: 0.70, Extreme: 0.85},
		MetricLiquidity:     {Low: 0.05, Medium: 0.10, High: 0.20, Extreme: 0.35},
		MetricCurrency:      {Low: 0.03, Medium: 0.08, High: 0.15, Extreme: 0.25},
		MetricSector:        {Low: 0.25, Medium: 0.35, High: 0.50, Extreme: 0.70},
	}
}

// DefaultMetricWeights returns the weight of each metric in the overall score.
func DefaultMetricWeights() map[string]float64 {
	return map[string]float64{
		MetricVolatility:    0.25,
		MetricConcentration: 0.20,
		MetricSector:        0.15,
		MetricLiquidity:     0.15,
		MetricCurrency:      0.10,
		MetricCorrelation:   0.15,
	}
}

// Risk categories
const (
	CategoryLow      = "Low"
	CategoryModerate = "Moderate"
	CategoryHigh     = "High"
	CategoryExtreme  = "Extreme"
)

// Category buckets an overall score.
func Category(score float64) string {
	switch {
	case score <= 25:
		return CategoryLow
	case score <= 50:
		return CategoryModerate
	case score <= 75:
		return CategoryHigh
	default:
		return CategoryExtreme
	}
}
