package quotes

import (
	"context"
	"fmt"
	"time"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Provider is a market data source that can price a batch of symbols.
// Symbols it does not know are left out of the result; an error means the
// provider itself is unavailable for this call.
type Provider interface {
	Name() string
	FetchPrices(ctx context.Context, symbols []string) (map[string]domain.PricePoint, error)
}

// guardedProvider wraps a Provider with a circuit breaker and a rate limiter.
type guardedProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// Guard wraps p with a circuit breaker and, when ratePerSecond > 0, a token
// bucket limiter. An open breaker or an exhausted wait surfaces as
// domain.ErrProviderUnavailable.
func Guard(p Provider, ratePerSecond float64, log zerolog.Logger) Provider {
	log = log.With().Str("provider", p.Name()).Logger()

	settings := gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Provider circuit breaker state changed")
		},
	}

	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		burst := int(ratePerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}

	return &guardedProvider{
		inner:   p,
		breaker: gobreaker.NewCircuitBreaker(settings),
		limiter: limiter,
	}
}

func (g *guardedProvider) Name() string {
	return g.inner.Name()
}

func (g *guardedProvider) FetchPrices(ctx context.Context, symbols []string) (map[string]domain.PricePoint, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s rate limit wait: %w", domain.ErrProviderUnavailable, g.Name(), err)
		}
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.FetchPrices(ctx, symbols)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrProviderUnavailable, g.Name(), err)
	}

	prices, _ := result.(map[string]domain.PricePoint)
	return prices, nil
}
