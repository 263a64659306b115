package testing

import (
	"time"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/shopspring/decimal"
)

// FixturePortfolioID is the portfolio the holding fixtures belong to.
const FixturePortfolioID = "pf-test"

// NewHoldingFixtures returns a small mixed INR/USD portfolio covering every
// bucket the optimizer knows about.
func NewHoldingFixtures() []domain.Holding {
	acquired := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	return []domain.Holding{
		{
			PortfolioID:  FixturePortfolioID,
			Symbol:       "RELIANCE.NS",
			Name:         "Reliance Industries",
			AssetClass:   domain.AssetClassEquity,
			Sector:       "Energy",
			Currency:     "INR",
			Quantity:     decimal.NewFromInt(10),
			AveragePrice: decimal.NewFromFloat(2800),
			AcquiredAt:   acquired,
		},
		{
			PortfolioID:  FixturePortfolioID,
			Symbol:       "TCS.NS",
			Name:         "Tata Consultancy Services",
			AssetClass:   domain.AssetClassEquity,
			Sector:       "Technology",
			Currency:     "INR",
			Quantity:     decimal.NewFromInt(5),
			AveragePrice: decimal.NewFromFloat(3500),
			AcquiredAt:   acquired,
		},
		{
			PortfolioID:  FixturePortfolioID,
			Symbol:       "GOLDBEES.NS",
			Name:         "Nippon India Gold ETF",
			AssetClass:   domain.AssetClassCommodity,
			Currency:     "INR",
			Quantity:     decimal.NewFromInt(40),
			AveragePrice: decimal.NewFromFloat(520),
			AcquiredAt:   acquired,
		},
		{
			PortfolioID:  FixturePortfolioID,
			Symbol:       "LQD",
			Name:         "Investment Grade Corporate Bonds",
			AssetClass:   domain.AssetClassDebt,
			Sector:       "Fixed Income",
			Currency:     "USD",
			Quantity:     decimal.NewFromInt(3),
			AveragePrice: decimal.NewFromFloat(108.5),
			AcquiredAt:   acquired,
		},
	}
}

// NewCrisisFixture returns an active crisis event of the given severity.
func NewCrisisFixture(id string, severity float64) domain.CrisisEvent {
	return domain.CrisisEvent{
		ID:          id,
		Category:    "geopolitical",
		Description: "Regional conflict escalates",
		Severity:    severity,
		DetectedAt:  time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}
