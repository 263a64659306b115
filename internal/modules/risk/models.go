package risk

import (
	"math"

	"github.com/finvoice/riskengine/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// VolatilityModel gives the annualized volatility assumed for an asset class.
type VolatilityModel interface {
	AssetVolatility(class domain.AssetClass) float64
}

// CorrelationModel gives the correlation assumed between two asset classes.
type CorrelationModel interface {
	Correlation(a, b domain.AssetClass) float64
}

// TableVolatilityModel is a fixed lookup of class volatilities.
type TableVolatilityModel map[domain.AssetClass]float64

// DefaultVolatilityModel returns the built-in class volatilities.
func DefaultVolatilityModel() TableVolatilityModel {
	return TableVolatilityModel{
		domain.AssetClassEquity:      0.20,
		domain.AssetClassDebt:        0.06,
		domain.AssetClassCommodity:   0.16,
		domain.AssetClassCash:        0.01,
		domain.AssetClassAlternative: 0.30,
	}
}

// AssetVolatility returns the class volatility. Unknown classes are treated as equity.
func (m TableVolatilityModel) AssetVolatility(class domain.AssetClass) float64 {
	if v, ok := m[class]; ok {
		return v
	}
	return m[domain.AssetClassEquity]
}

type classPair struct {
	a, b domain.AssetClass
}

// TableCorrelationModel is a fixed symmetric lookup of class correlations.
type TableCorrelationModel struct {
	pairs    map[classPair]float64
	fallback float64
}

// NewTableCorrelationModel builds a symmetric model from one direction of each pair.
func NewTableCorrelationModel(entries map[[2]domain.AssetClass]float64, fallback float64) *TableCorrelationModel {
	m := &TableCorrelationModel{pairs: make(map[classPair]float64, len(entries)*2), fallback: fallback}
	for k, v := range entries {
		m.pairs[classPair{k[0], k[1]}] = v
		m.pairs[classPair{k[1], k[0]}] = v
	}
	return m
}

// DefaultCorrelationModel returns the built-in class correlation table.
func DefaultCorrelationModel() *TableCorrelationModel {
	eq, debt, com, cash, alt := domain.AssetClassEquity, domain.AssetClassDebt, domain.AssetClassCommodity, domain.AssetClassCash, domain.AssetClassAlternative
	return NewTableCorrelationModel(map[[2]domain.AssetClass]float64{
		{eq, eq}:     0.65,
		{debt, debt}: 0.50,
		{com, com}:   0.40,
		{cash, cash}: 0,
		{alt, alt}:   0.50,
		{eq, debt}:   0.10,
		{eq, com}:    0.20,
		{eq, cash}:   0,
		{eq, alt}:    0.50,
		{debt, com}:  0.05,
		{debt, cash}: 0.10,
		{debt, alt}:  0.15,
		{com, cash}:  0,
		{com, alt}:   0.25,
		{cash, alt}:  0,
	}, 0.5)
}

// Correlation returns the correlation between a and b.
func (m *TableCorrelationModel) Correlation(a, b domain.AssetClass) float64 {
	if v, ok := m.pairs[classPair{a, b}]; ok {
		return v
	}
	return m.fallback
}

// PortfolioVolatility computes sqrt(wᵀΣw) where Σij = σi·σj·ρij and ρii = 1.
func PortfolioVolatility(weights []float64, classes []domain.AssetClass, vol VolatilityModel, corr CorrelationModel) float64 {
	n := len(weights)
	if n == 0 || n != len(classes) {
		return 0
	}

	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		si := vol.AssetVolatility(classes[i])
		for j := i; j < n; j++ {
			rho := 1.0
			if i != j {
				rho = corr.Correlation(classes[i], classes[j])
			}
			cov.SetSym(i, j, si*vol.AssetVolatility(classes[j])*rho)
		}
	}

	w := mat.NewVecDense(n, weights)
	variance := mat.Inner(w, cov, w)
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}

// ClassVolatility computes the volatility of an allocation expressed per asset class.
func ClassVolatility(weights map[domain.AssetClass]float64, vol VolatilityModel, corr CorrelationModel) float64 {
	var w []float64
	var classes []domain.AssetClass
	for _, class := range domain.AllAssetClasses {
		if weight, ok := weights[class]; ok && weight > 0 {
			w = append(w, weight)
			classes = append(classes, class)
		}
	}
	return PortfolioVolatility(w, classes, vol, corr)
}
