package domain

import "context"

// HoldingsProvider lists the active (non-retired) holdings of a portfolio.
// Implementations live in the holdings module (sqlite, postgres).
type HoldingsProvider interface {
	ListActiveHoldings(ctx context.Context, portfolioID string) ([]Holding, error)
}

// PortfolioLister enumerates portfolios that currently have holdings.
// Used by scheduled jobs that walk every portfolio.
type PortfolioLister interface {
	ListPortfolioIDs(ctx context.Context) ([]string, error)
}

// CrisisFeed exposes the currently active crisis events.
type CrisisFeed interface {
	ListActiveEvents(ctx context.Context) ([]CrisisEvent, error)
}

// RateProvider returns the exchange rate between two currencies
type RateProvider interface {
	GetRate(ctx context.Context, fromCurrency, toCurrency string) (float64, error)
}
