// Package snapshots is the append-only history of portfolio valuations and
// risk assessments, with an archive exporter to S3-compatible storage.
package snapshots

import (
	"time"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/finvoice/riskengine/internal/modules/valuation"
	"github.com/shopspring/decimal"
)

// History defaults
const (
	DefaultHistoryDays  = 30
	MaxHistoryDays      = 3650
	DefaultHistoryLimit = 100
)

// Snapshot is one persisted point of a portfolio's valuation history.
type Snapshot struct {
	CreatedAt           time.Time                     `json:"created_at"`
	ID                  string                        `json:"snapshot_id"`
	PortfolioID         string                        `json:"portfolio_id"`
	AssessmentID        string                        `json:"assessment_id,omitempty"`
	MarketStatus        string                        `json:"market_status"`
	AllocationBreakdown map[domain.AssetClass]float64 `json:"allocation_breakdown"`
	SectorBreakdown     map[string]float64            `json:"sector_breakdown"`
	HoldingsSummary     []valuation.HoldingSummary    `json:"holdings_summary"`
	TotalValue          decimal.Decimal               `json:"total_value"`
	TotalInvested       decimal.Decimal               `json:"total_invested"`
	TotalPnL            decimal.Decimal               `json:"total_pnl"`
	DayChange           decimal.Decimal               `json:"day_change"`
	TotalPnLPercent     float64                       `json:"total_pnl_percent"`
	DayChangePercent    float64                       `json:"day_change_percent"`
	Seq                 int64                         `json:"seq"`
	Degraded            bool                          `json:"degraded"`
}

// fromValuation builds the snapshot record for v.
func fromValuation(id string, v *valuation.PortfolioValuation, assessmentID string, at time.Time) Snapshot {
	alloc := v.AssetClassBreakdown
	if alloc == nil {
		alloc = map[domain.AssetClass]float64{}
	}
	sectors := v.SectorBreakdown
	if sectors == nil {
		sectors = map[string]float64{}
	}
	return Snapshot{
		CreatedAt:           at,
		ID:                  id,
		PortfolioID:         v.PortfolioID,
		AssessmentID:        assessmentID,
		MarketStatus:        v.MarketStatus,
		AllocationBreakdown: alloc,
		SectorBreakdown:     sectors,
		HoldingsSummary:     v.Summary(),
		TotalValue:          v.TotalValue,
		TotalInvested:       v.TotalInvested,
		TotalPnL:            v.TotalPnL,
		DayChange:           v.DayChange,
		TotalPnLPercent:     v.TotalPnLPercent,
		DayChangePercent:    v.DayChangePercent,
		Degraded:            v.Degraded,
	}
}

// ClampHistoryDays applies the history window default and cap.
func ClampHistoryDays(days int) int {
	if days <= 0 {
		return DefaultHistoryDays
	}
	if days > MaxHistoryDays {
		return MaxHistoryDays
	}
	return days
}
