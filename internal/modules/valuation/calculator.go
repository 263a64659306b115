// Package valuation prices holdings against quotes and aggregates value,
// invested cost, P&L and allocation breakdowns.
package valuation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/finvoice/riskengine/internal/modules/quotes"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// QuoteSource resolves quotes for a set of symbols.
type QuoteSource interface {
	GetQuotes(ctx context.Context, symbols []string, forceRefresh bool) (*quotes.QuoteSet, error)
}

// Config holds the calculator's settings
type Config struct {
	BaseCurrency string
	// DayChangeFraction approximates the day's move as a fixed share of
	// current value. There is no previous close to diff against.
	DayChangeFraction float64
	Location          *time.Location
}

// Calculator values portfolios
type Calculator struct {
	quotes QuoteSource
	rates  domain.RateProvider
	cfg    Config
	log    zerolog.Logger
	now    func() time.Time
}

// NewCalculator creates a valuation calculator. rates may be nil when every
// holding is priced in the base currency.
func NewCalculator(quoteSource QuoteSource, rates domain.RateProvider, cfg Config, log zerolog.Logger) *Calculator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	cfg.BaseCurrency = strings.ToUpper(cfg.BaseCurrency)
	return &Calculator{
		quotes: quoteSource,
		rates:  rates,
		cfg:    cfg,
		log:    log.With().Str("component", "valuation").Logger(),
		now:    time.Now,
	}
}

// BaseCurrency returns the currency valuations are expressed in.
func (c *Calculator) BaseCurrency() string {
	return c.cfg.BaseCurrency
}

// Valuate prices holdings and aggregates them. Empty holdings give the zero
// valuation. Quotes for all symbols are resolved in a single lookup.
func (c *Calculator) Valuate(ctx context.Context, portfolioID string, holdings []domain.Holding, forceRefresh bool) (*PortfolioValuation, error) {
	start := time.Now()
	defer func() { valuationDuration.Observe(time.Since(start).Seconds()) }()

	v := c.emptyValuation(portfolioID, c.now().UTC())
	if err := c.price(ctx, v, holdings, forceRefresh); err != nil {
		if errors.Is(err, domain.ErrEmptyPortfolio) {
			return v, nil
		}
		return nil, err
	}

	v.HoldingCount = len(v.Holdings)
	v.TotalPnL = v.TotalValue.Sub(v.TotalInvested)
	v.TotalPnLPercent = percent(v.TotalPnL, v.TotalInvested)
	v.DayChangePercent = percent(v.DayChange, v.TotalValue)

	if v.TotalValue.IsPositive() {
		for i := range v.Holdings {
			h := &v.Holdings[i]
			h.Weight, _ = h.CurrentValue.Div(v.TotalValue).Float64()
			v.AssetClassBreakdown[h.AssetClass] += h.Weight
			v.SectorBreakdown[h.Sector] += h.Weight
		}
	}

	if v.Degraded {
		degradedValuations.Inc()
	}

	c.log.Debug().
		Str("portfolio_id", portfolioID).
		Int("holdings", v.HoldingCount).
		Str("total_value", v.TotalValue.StringFixed(2)).
		Bool("degraded", v.Degraded).
		Msg("Portfolio valued")

	return v, nil
}

// price values each holding into v and accumulates the totals. It fails with
// ErrEmptyPortfolio when there is nothing to price.
func (c *Calculator) price(ctx context.Context, v *PortfolioValuation, holdings []domain.Holding, forceRefresh bool) error {
	if len(holdings) == 0 {
		return fmt.Errorf("portfolio %s: %w", v.PortfolioID, domain.ErrEmptyPortfolio)
	}

	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, strings.TrimSpace(h.Symbol))
	}

	set, err := c.quotes.GetQuotes(ctx, symbols, forceRefresh)
	if err != nil {
		return fmt.Errorf("failed to resolve quotes: %w", err)
	}
	v.QuotesAsOf = set.AsOf
	v.Degraded = set.Degraded

	rates := newRateCache(c.rates, c.cfg.BaseCurrency)
	dayFraction := decimal.NewFromFloat(c.cfg.DayChangeFraction)

	for _, h := range holdings {
		symbol := strings.TrimSpace(h.Symbol)
		quote, ok := set.Quotes[symbol]
		if !ok {
			return fmt.Errorf("no quote resolved for %s", symbol)
		}

		holdingCurrency := currencyOr(h.Currency, c.cfg.BaseCurrency)
		quoteCurrency := currencyOr(quote.Currency, holdingCurrency)

		priceRate, ok := rates.get(ctx, quoteCurrency)
		if !ok {
			v.Degraded = true
			c.log.Warn().Str("currency", quoteCurrency).Str("symbol", symbol).Msg("No exchange rate, valuing at 1:1")
		}
		costRate, ok := rates.get(ctx, holdingCurrency)
		if !ok {
			v.Degraded = true
		}

		current := h.Quantity.Mul(quote.Price).Mul(priceRate)
		invested := h.Quantity.Mul(h.AveragePrice).Mul(costRate)
		pnl := current.Sub(invested)

		vh := ValuedHolding{
			Symbol:        symbol,
			Name:          h.Name,
			AssetClass:    h.AssetClass,
			Sector:        sectorOrOther(h.Sector),
			Currency:      holdingCurrency,
			QuoteSource:   quote.Source,
			Quantity:      h.Quantity,
			AveragePrice:  h.AveragePrice,
			Price:         quote.Price,
			CurrentValue:  current,
			InvestedValue: invested,
			PnL:           pnl,
			DayChange:     current.Mul(dayFraction),
			PnLPercent:    percent(pnl, invested),
		}

		v.Holdings = append(v.Holdings, vh)
		v.TotalValue = v.TotalValue.Add(current)
		v.TotalInvested = v.TotalInvested.Add(invested)
		v.DayChange = v.DayChange.Add(vh.DayChange)
	}
	return nil
}

func (c *Calculator) emptyValuation(portfolioID string, now time.Time) *PortfolioValuation {
	return &PortfolioValuation{
		ComputedAt:          now,
		QuotesAsOf:          now,
		PortfolioID:         portfolioID,
		BaseCurrency:        c.cfg.BaseCurrency,
		MarketStatus:        MarketStatus(now, c.cfg.Location),
		Holdings:            []ValuedHolding{},
		AssetClassBreakdown: make(map[domain.AssetClass]float64),
		SectorBreakdown:     make(map[string]float64),
		TotalValue:          decimal.Zero,
		TotalInvested:       decimal.Zero,
		TotalPnL:            decimal.Zero,
		DayChange:           decimal.Zero,
	}
}

// MarketStatus returns "open" on weekdays between 09:15 and 15:30 local
// exchange time, "closed" otherwise.
func MarketStatus(at time.Time, loc *time.Location) string {
	local := at.In(loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return MarketClosed
	}
	minutes := local.Hour()*60 + local.Minute()
	if minutes >= 9*60+15 && minutes < 15*60+30 {
		return MarketOpen
	}
	return MarketClosed
}

// rateCache memoizes exchange rates to the base currency for one valuation.
type rateCache struct {
	provider domain.RateProvider
	base     string
	rates    map[string]decimal.Decimal
	missing  map[string]bool
}

func newRateCache(provider domain.RateProvider, base string) *rateCache {
	return &rateCache{
		provider: provider,
		base:     base,
		rates:    map[string]decimal.Decimal{base: decimal.NewFromInt(1)},
		missing:  make(map[string]bool),
	}
}

// get returns the rate from currency to base. When no rate is available it
// returns 1 and false.
func (r *rateCache) get(ctx context.Context, currency string) (decimal.Decimal, bool) {
	if rate, ok := r.rates[currency]; ok {
		return rate, true
	}
	if r.missing[currency] || r.provider == nil {
		return decimal.NewFromInt(1), false
	}

	rate, err := r.provider.GetRate(ctx, currency, r.base)
	if err != nil || rate <= 0 {
		r.missing[currency] = true
		return decimal.NewFromInt(1), false
	}

	d := decimal.NewFromFloat(rate)
	r.rates[currency] = d
	return d, true
}

func currencyOr(currency, fallback string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return fallback
	}
	return currency
}

func sectorOrOther(sector string) string {
	if s := strings.TrimSpace(sector); s != "" {
		return s
	}
	return OtherSector
}

// percent returns num/den*100, or 0 when den is zero.
func percent(num, den decimal.Decimal) float64 {
	if den.IsZero() {
		return 0
	}
	f, _ := num.Div(den).Mul(decimal.NewFromInt(100)).Float64()
	return f
}
