package valuation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/finvoice/riskengine/internal/modules/quotes"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuotes struct {
	prices   map[string]string
	currency map[string]string
	degraded bool
	calls    int
}

func (s *stubQuotes) GetQuotes(_ context.Context, symbols []string, _ bool) (*quotes.QuoteSet, error) {
	s.calls++
	set := &quotes.QuoteSet{AsOf: time.Now().UTC(), Quotes: map[string]domain.Quote{}, Degraded: s.degraded}
	for _, sym := range symbols {
		cur := s.currency[sym]
		if cur == "" {
			cur = "INR"
		}
		set.Quotes[sym] = domain.Quote{Symbol: sym, Price: decimal.RequireFromString(s.prices[sym]), Currency: cur, Source: "stub"}
	}
	return set, nil
}

type stubRates map[string]float64

func (r stubRates) GetRate(_ context.Context, from, _ string) (float64, error) {
	if rate, ok := r[from]; ok {
		return rate, nil
	}
	return 0, errors.New("no rate")
}

func holding(symbol string, class domain.AssetClass, sector string, qty, avg int64) domain.Holding {
	return domain.Holding{
		PortfolioID:  "p1",
		Symbol:       symbol,
		AssetClass:   class,
		Sector:       sector,
		Currency:     "INR",
		Quantity:     decimal.NewFromInt(qty),
		AveragePrice: decimal.NewFromInt(avg),
	}
}

func newCalc(q QuoteSource, rates domain.RateProvider) *Calculator {
	return NewCalculator(q, rates, Config{BaseCurrency: "INR", DayChangeFraction: 0.015}, zerolog.Nop())
}

func TestValuate_SingleHoldingExample(t *testing.T) {
	calc := newCalc(&stubQuotes{prices: map[string]string{"AAA": "120"}}, nil)

	v, err := calc.Valuate(context.Background(), "p1", []domain.Holding{holding("AAA", domain.AssetClassEquity, "Tech", 10, 100)}, false)
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(1200).Equal(v.TotalValue))
	assert.True(t, decimal.NewFromInt(1000).Equal(v.TotalInvested))
	assert.True(t, decimal.NewFromInt(200).Equal(v.TotalPnL))
	assert.InDelta(t, 20.0, v.TotalPnLPercent, 1e-9)
	assert.InDelta(t, 1.0, v.AssetClassBreakdown[domain.AssetClassEquity], 1e-9)
	assert.True(t, decimal.NewFromInt(18).Equal(v.DayChange))
	assert.InDelta(t, 1.5, v.DayChangePercent, 1e-9)
	assert.Equal(t, 1, v.HoldingCount)
	assert.False(t, v.Degraded)
}

func TestValuate_EmptyPortfolioIsZeroValuation(t *testing.T) {
	q := &stubQuotes{}
	calc := newCalc(q, nil)

	v, err := calc.Valuate(context.Background(), "p1", nil, false)
	require.NoError(t, err)

	assert.True(t, v.IsEmpty())
	assert.True(t, v.TotalValue.IsZero())
	assert.Empty(t, v.AssetClassBreakdown)
	assert.Empty(t, v.SectorBreakdown)
	assert.NotNil(t, v.Holdings)
	assert.Zero(t, q.calls)
}

func TestPrice_EmptyHoldingsIsEmptyPortfolio(t *testing.T) {
	q := &stubQuotes{}
	calc := newCalc(q, nil)
	v := calc.emptyValuation("p1", time.Now().UTC())

	err := calc.price(context.Background(), v, []domain.Holding{}, false)
	assert.ErrorIs(t, err, domain.ErrEmptyPortfolio)
	assert.ErrorContains(t, err, "p1")
	assert.Zero(t, q.calls)
}

func TestValuate_BreakdownsSumToOne(t *testing.T) {
	calc := newCalc(&stubQuotes{prices: map[string]string{"A": "33.3", "B": "71.7", "C": "12.9", "D": "1"}}, nil)

	holdings := []domain.Holding{
		holding("A", domain.AssetClassEquity, "Tech", 7, 30),
		holding("B", domain.AssetClassDebt, "Government", 3, 70),
		holding("C", domain.AssetClassCommodity, "", 11, 10),
		holding("D", domain.AssetClassCash, "", 500, 1),
	}
	v, err := calc.Valuate(context.Background(), "p1", holdings, false)
	require.NoError(t, err)

	sum := func(m map[string]float64) float64 {
		total := 0.0
		for _, w := range m {
			total += w
		}
		return total
	}
	classSum := 0.0
	for _, w := range v.AssetClassBreakdown {
		classSum += w
	}
	assert.InDelta(t, 1.0, classSum, 1e-6)
	assert.InDelta(t, 1.0, sum(v.SectorBreakdown), 1e-6)
	assert.Contains(t, v.SectorBreakdown, OtherSector)

	weights := 0.0
	for _, h := range v.Holdings {
		assert.GreaterOrEqual(t, h.Weight, 0.0)
		weights += h.Weight
	}
	assert.InDelta(t, 1.0, weights, 1e-6)
}

func TestValuate_ZeroInvestedGivesZeroPercent(t *testing.T) {
	calc := newCalc(&stubQuotes{prices: map[string]string{"GIFT": "50"}}, nil)

	v, err := calc.Valuate(context.Background(), "p1", []domain.Holding{holding("GIFT", domain.AssetClassEquity, "", 2, 0)}, false)
	require.NoError(t, err)
	assert.Zero(t, v.Holdings[0].PnLPercent)
	assert.Zero(t, v.TotalPnLPercent)
}

func TestValuate_ConvertsForeignQuotes(t *testing.T) {
	q := &stubQuotes{prices: map[string]string{"AAPL": "10"}, currency: map[string]string{"AAPL": "USD"}}
	calc := newCalc(q, stubRates{"USD": 80})

	h := holding("AAPL", domain.AssetClassEquity, "Tech", 1, 5)
	h.Currency = "USD"
	v, err := calc.Valuate(context.Background(), "p1", []domain.Holding{h}, false)
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(800).Equal(v.TotalValue))
	assert.True(t, decimal.NewFromInt(400).Equal(v.TotalInvested))
	assert.False(t, v.Degraded)
}

func TestValuate_MissingRateDegrades(t *testing.T) {
	q := &stubQuotes{prices: map[string]string{"AAPL": "10"}, currency: map[string]string{"AAPL": "USD"}}
	calc := newCalc(q, stubRates{})

	v, err := calc.Valuate(context.Background(), "p1", []domain.Holding{holding("AAPL", domain.AssetClassEquity, "", 1, 5)}, false)
	require.NoError(t, err)
	assert.True(t, v.Degraded)
	assert.True(t, decimal.NewFromInt(10).Equal(v.TotalValue))
}

func TestValuate_PropagatesDegradedQuotes(t *testing.T) {
	calc := newCalc(&stubQuotes{prices: map[string]string{"AAA": "1"}, degraded: true}, nil)

	v, err := calc.Valuate(context.Background(), "p1", []domain.Holding{holding("AAA", domain.AssetClassEquity, "", 1, 1)}, false)
	require.NoError(t, err)
	assert.True(t, v.Degraded)
}

func TestMarketStatus(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"weekday morning open", time.Date(2026, 3, 2, 9, 15, 0, 0, ist), MarketOpen},
		{"weekday before open", time.Date(2026, 3, 2, 9, 14, 0, 0, ist), MarketClosed},
		{"weekday close", time.Date(2026, 3, 2, 15, 30, 0, 0, ist), MarketClosed},
		{"saturday", time.Date(2026, 3, 7, 11, 0, 0, 0, ist), MarketClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MarketStatus(tt.at.UTC(), ist))
		})
	}
}

func TestSymbolWeights(t *testing.T) {
	v := &PortfolioValuation{Holdings: []ValuedHolding{
		{Symbol: "A", Weight: 0.2},
		{Symbol: "A", Weight: 0.1},
		{Symbol: "B", Weight: 0.7},
	}}
	w := v.SymbolWeights()
	assert.InDelta(t, 0.3, w["A"], 1e-9)
	assert.InDelta(t, 0.7, w["B"], 1e-9)
}
