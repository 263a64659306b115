package quotes

import (
	"context"
	"errors"
	"testing"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_PassesThrough(t *testing.T) {
	inner := &fakeProvider{name: "yahoo", prices: map[string]float64{"AAA": 10}}
	p := Guard(inner, 0, zerolog.Nop())

	assert.Equal(t, "yahoo", p.Name())
	prices, err := p.FetchPrices(context.Background(), []string{"AAA"})
	require.NoError(t, err)
	assert.Equal(t, "10", prices["AAA"].Price.String())
}

func TestGuard_WrapsErrorsAsProviderUnavailable(t *testing.T) {
	inner := &fakeProvider{name: "finnhub", err: errors.New("502 bad gateway")}
	p := Guard(inner, 0, zerolog.Nop())

	_, err := p.FetchPrices(context.Background(), []string{"AAA"})
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.ErrorContains(t, err, "502 bad gateway")
}

func TestGuard_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeProvider{name: "alphavantage", err: errors.New("timeout")}
	p := Guard(inner, 0, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := p.FetchPrices(ctx, []string{"AAA"})
		require.Error(t, err)
	}
	assert.Equal(t, 6, inner.callCount())

	_, err := p.FetchPrices(ctx, []string{"AAA"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Equal(t, 6, inner.callCount())
}

func TestGuard_RateLimitWaitHonoursContext(t *testing.T) {
	inner := &fakeProvider{name: "yahoo", prices: map[string]float64{"AAA": 10}}
	p := Guard(inner, 0.001, zerolog.Nop())

	_, err := p.FetchPrices(context.Background(), []string{"AAA"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.FetchPrices(ctx, []string{"AAA"})
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Equal(t, 1, inner.callCount())
}
