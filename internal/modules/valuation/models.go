package valuation

import (
	"time"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/shopspring/decimal"
)

// OtherSector groups holdings without a sector tag.
const OtherSector = "Other"

// Market status values
const (
	MarketOpen   = "open"
	MarketClosed = "closed"
)

// ValuedHolding is a holding priced against a quote. Money amounts are in the
// valuation's base currency.
type ValuedHolding struct {
	Symbol        string            `json:"symbol"`
	Name          string            `json:"name"`
	AssetClass    domain.AssetClass `json:"asset_class"`
	Sector        string            `json:"sector"`
	Currency      string            `json:"currency"`
	QuoteSource   string            `json:"quote_source"`
	Quantity      decimal.Decimal   `json:"quantity"`
	AveragePrice  decimal.Decimal   `json:"average_price"`
	Price         decimal.Decimal   `json:"price"`
	CurrentValue  decimal.Decimal   `json:"current_value"`
	InvestedValue decimal.Decimal   `json:"invested_value"`
	PnL           decimal.Decimal   `json:"pnl"`
	DayChange     decimal.Decimal   `json:"day_change"`
	PnLPercent    float64           `json:"pnl_percent"`
	Weight        float64           `json:"weight"`
}

// PortfolioValuation is the aggregate of a portfolio's valued holdings.
// A valuation with no holdings has zero aggregates and empty breakdowns.
type PortfolioValuation struct {
	ComputedAt          time.Time                     `json:"computed_at"`
	QuotesAsOf          time.Time                     `json:"quotes_as_of"`
	PortfolioID         string                        `json:"portfolio_id"`
	BaseCurrency        string                        `json:"base_currency"`
	MarketStatus        string                        `json:"market_status"`
	Holdings            []ValuedHolding               `json:"holdings"`
	AssetClassBreakdown map[domain.AssetClass]float64 `json:"allocation_breakdown"`
	SectorBreakdown     map[string]float64            `json:"sector_breakdown"`
	TotalValue          decimal.Decimal               `json:"total_value"`
	TotalInvested       decimal.Decimal               `json:"total_invested"`
	TotalPnL            decimal.Decimal               `json:"total_pnl"`
	DayChange           decimal.Decimal               `json:"day_change"`
	TotalPnLPercent     float64                       `json:"total_pnl_percent"`
	DayChangePercent    float64                       `json:"day_change_percent"`
	HoldingCount        int                           `json:"holding_count"`
	Degraded            bool                          `json:"degraded"`
}

// IsEmpty reports whether the valuation has no holdings.
func (v *PortfolioValuation) IsEmpty() bool {
	return v.HoldingCount == 0
}

// TotalValueFloat returns the total value as float64 for ratio math.
func (v *PortfolioValuation) TotalValueFloat() float64 {
	f, _ := v.TotalValue.Float64()
	return f
}

// HoldingSummary is the compact per-holding record persisted with snapshots.
type HoldingSummary struct {
	Symbol       string            `json:"symbol"`
	AssetClass   domain.AssetClass `json:"asset_class"`
	Quantity     decimal.Decimal   `json:"quantity"`
	Price        decimal.Decimal   `json:"price"`
	CurrentValue decimal.Decimal   `json:"current_value"`
	PnLPercent   float64           `json:"pnl_percent"`
	Weight       float64           `json:"weight"`
	QuoteSource  string            `json:"quote_source"`
}

// Summary returns the compact holding list.
func (v *PortfolioValuation) Summary() []HoldingSummary {
	out := make([]HoldingSummary, len(v.Holdings))
	for i, h := range v.Holdings {
		out[i] = HoldingSummary{
			Symbol:       h.Symbol,
			AssetClass:   h.AssetClass,
			Quantity:     h.Quantity,
			Price:        h.Price,
			CurrentValue: h.CurrentValue,
			PnLPercent:   h.PnLPercent,
			Weight:       h.Weight,
			QuoteSource:  h.QuoteSource,
		}
	}
	return out
}

// SymbolWeights returns the current weight per symbol. Multiple holdings of
// the same symbol are summed.
func (v *PortfolioValuation) SymbolWeights() map[string]float64 {
	weights := make(map[string]float64, len(v.Holdings))
	for _, h := range v.Holdings {
		weights[h.Symbol] += h.Weight
	}
	return weights
}
