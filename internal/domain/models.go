// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AssetClass represents the broad class an instrument belongs to
type AssetClass string

const (
	AssetClassEquity      AssetClass = "equity"
	AssetClassDebt        AssetClass = "debt"
	AssetClassCommodity   AssetClass = "commodity"
	AssetClassCash        AssetClass = "cash"
	AssetClassAlternative AssetClass = "alternative"
)

// AllAssetClasses lists every asset class in a stable order.
var AllAssetClasses = []AssetClass{
	AssetClassEquity,
	AssetClassDebt,
	AssetClassCommodity,
	AssetClassCash,
	AssetClassAlternative,
}

// assetClassAliases maps loosely formatted names to their asset class.
var assetClassAliases = map[string]AssetClass{
	"equity":         AssetClassEquity,
	"equities":       AssetClassEquity,
	"stock":          AssetClassEquity,
	"stocks":         AssetClassEquity,
	"debt":           AssetClassDebt,
	"bond":           AssetClassDebt,
	"bonds":          AssetClassDebt,
	"fixed_income":   AssetClassDebt,
	"commodity":      AssetClassCommodity,
	"commodities":    AssetClassCommodity,
	"gold":           AssetClassCommodity,
	"cash":           AssetClassCash,
	"alternative":    AssetClassAlternative,
	"alternatives":   AssetClassAlternative,
	"real_estate":    AssetClassAlternative,
	"private_equity": AssetClassAlternative,
}

// ParseAssetClass resolves an asset class name, accepting common aliases.
func ParseAssetClass(s string) (AssetClass, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	if class, ok := assetClassAliases[key]; ok {
		return class, nil
	}
	return "", fmt.Errorf("unknown asset class %q", s)
}

// Valid reports whether c is one of the known asset classes.
func (c AssetClass) Valid() bool {
	for _, known := range AllAssetClasses {
		if c == known {
			return true
		}
	}
	return false
}

// Holding is a quantity of one instrument owned within a portfolio.
// Holdings are soft-retired on full disposal; RetiredAt is nil while active.
type Holding struct {
	AcquiredAt   time.Time       `json:"acquired_at"`
	RetiredAt    *time.Time      `json:"retired_at,omitempty"`
	PortfolioID  string          `json:"portfolio_id"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	AssetClass   AssetClass      `json:"asset_class"`
	Sector       string          `json:"sector"`
	Currency     string          `json:"currency"`
	Quantity     decimal.Decimal `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
	ID           int64           `json:"id"`
}

// SourceSynthetic marks quotes generated by the deterministic fallback.
const SourceSynthetic = "synthetic"

// Quote is a priced observation of one instrument at a point in time.
// Quotes are never mutated; a newer quote supersedes an older one.
type Quote struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Symbol    string          `json:"symbol"`
	Currency  string          `json:"currency"`
	Source    string          `json:"source"`
	Price     decimal.Decimal `json:"price"`
}

// IsSynthetic reports whether the quote came from the synthetic fallback.
func (q Quote) IsSynthetic() bool {
	return q.Source == SourceSynthetic
}

// CrisisEvent is an external signal used to bias allocation toward defensiveness.
type CrisisEvent struct {
	DetectedAt  time.Time `json:"detected_at"`
	ID          string    `json:"id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Severity    float64   `json:"severity"`
	Resolved    bool      `json:"resolved,omitempty"`
}

// MaxSeverity returns the highest severity across events, clamped to [0, 10].
func MaxSeverity(events []CrisisEvent) float64 {
	highest := 0.0
	for _, e := range events {
		if e.Severity > highest {
			highest = e.Severity
		}
	}
	if highest > 10 {
		return 10
	}
	return highest
}

// PricePoint is a last-traded price reported by a market data provider.
// Currency is empty when the provider does not report one.
type PricePoint struct {
	Price    decimal.Decimal
	Currency string
}
