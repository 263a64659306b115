// Package quotes provides the price source adapter: a cache-first quote
// lookup over a prioritized provider chain with a deterministic synthetic
// fallback.
package quotes

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config holds the adapter's timing and pool settings
type Config struct {
	TTL              time.Duration
	StaleRetention   time.Duration
	ProviderTimeout  time.Duration
	AggregateTimeout time.Duration
	Concurrency      int
	BaseCurrency     string
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		TTL:              5 * time.Minute,
		StaleRetention:   24 * time.Hour,
		ProviderTimeout:  5 * time.Second,
		AggregateTimeout: 15 * time.Second,
		Concurrency:      8,
		BaseCurrency:     "INR",
	}
}

// QuoteSet is the result of one GetQuotes call. Every requested symbol has a
// quote. Degraded is set when any quote is stale or synthetic.
type QuoteSet struct {
	AsOf      time.Time               `json:"as_of"`
	Quotes    map[string]domain.Quote `json:"quotes"`
	Stale     []string                `json:"stale,omitempty"`
	Synthetic []string                `json:"synthetic,omitempty"`
	Degraded  bool                    `json:"degraded"`
}

// Service resolves quotes through the cache, the provider chain and the
// synthetic fallback, in that order.
type Service struct {
	cache     Cache
	providers []Provider
	synthetic *SyntheticProvider
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time
}

// NewService creates the price source adapter. providers are tried in slice order.
func NewService(cache Cache, providers []Provider, synthetic *SyntheticProvider, cfg Config, log zerolog.Logger) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if synthetic == nil {
		synthetic = NewSyntheticProvider(nil, cfg.BaseCurrency)
	}
	return &Service{
		cache:     cache,
		providers: providers,
		synthetic: synthetic,
		cfg:       cfg,
		log:       log.With().Str("component", "quotes").Logger(),
		now:       time.Now,
	}
}

// Providers returns the names of the configured providers in priority order.
func (s *Service) Providers() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return names
}

// GetQuotes returns a quote for every distinct non-empty symbol. It only fails
// when ctx is already done; provider and cache failures degrade the result.
func (s *Service) GetQuotes(ctx context.Context, symbols []string, forceRefresh bool) (*QuoteSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	syms := normalizeSymbols(symbols)
	set := &QuoteSet{AsOf: now, Quotes: make(map[string]domain.Quote, len(syms))}
	if len(syms) == 0 {
		return set, nil
	}

	cached, err := s.cache.GetMany(ctx, syms)
	if err != nil {
		s.log.Warn().Err(err).Msg("Quote cache read failed, treating as miss")
		cached = nil
	}

	var missing []string
	for _, sym := range syms {
		entry, ok := cached[sym]
		if ok && !forceRefresh && entry.Fresh(now) {
			set.Quotes[sym] = entry.Quote
			cacheLookups.WithLabelValues("hit").Inc()
			continue
		}
		cacheLookups.WithLabelValues("miss").Inc()
		missing = append(missing, sym)
	}

	if len(missing) == 0 {
		return set, nil
	}

	fetched := s.fetch(ctx, missing, now)

	for _, sym := range missing {
		if q, ok := fetched[sym]; ok {
			set.Quotes[sym] = q
			continue
		}

		if entry, ok := cached[sym]; ok && now.Sub(entry.ExpiresAt) <= s.cfg.StaleRetention {
			set.Quotes[sym] = entry.Quote
			if !entry.Fresh(now) {
				cacheLookups.WithLabelValues("stale").Inc()
				set.Stale = append(set.Stale, sym)
				set.Degraded = true
				s.log.Warn().
					Str("symbol", sym).
					Time("fetched_at", entry.Quote.FetchedAt).
					Msg("Providers exhausted, serving stale cached quote")
			}
			continue
		}

		set.Quotes[sym] = s.synthetic.Quote(sym, now)
		set.Synthetic = append(set.Synthetic, sym)
		set.Degraded = true
		syntheticQuotes.Inc()
		s.log.Warn().
			Err(domain.ErrAllProvidersExhausted).
			Str("symbol", sym).
			Msg("Serving synthetic quote")
	}

	return set, nil
}

// fetch resolves symbols against the provider chain using a bounded pool.
// Results that arrive after the aggregate timeout are discarded. Only
// results collected in time are written back to the cache.
func (s *Service) fetch(ctx context.Context, symbols []string, now time.Time) map[string]domain.Quote {
	start := time.Now()
	defer func() { fetchDuration.Observe(time.Since(start).Seconds()) }()

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.AggregateTimeout)
	defer cancel()

	run := &fetchRun{
		failed:  make(map[string]bool, len(s.providers)),
		results: make(map[string]domain.Quote, len(symbols)),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(s.cfg.Concurrency)
		for _, sym := range symbols {
			sym := sym
			g.Go(func() error {
				if runCtx.Err() != nil {
					return nil
				}
				if q, ok := s.fetchSymbol(runCtx, run, sym, now); ok {
					run.put(q)
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-runCtx.Done():
		s.log.Warn().
			Int("symbols", len(symbols)).
			Dur("timeout", s.cfg.AggregateTimeout).
			Msg("Quote fetch abandoned, pending provider calls discarded")
	}

	results := run.close()

	for _, q := range results {
		if err := s.cache.Set(ctx, q, s.cfg.TTL); err != nil {
			s.log.Warn().Err(err).Str("symbol", q.Symbol).Msg("Failed to cache quote")
		}
	}

	return results
}

// fetchSymbol walks the provider chain for one symbol, skipping providers
// that already failed during this run.
func (s *Service) fetchSymbol(ctx context.Context, run *fetchRun, symbol string, now time.Time) (domain.Quote, bool) {
	for _, p := range s.providers {
		name := p.Name()
		if run.hasFailed(name) {
			providerRequests.WithLabelValues(name, "skipped").Inc()
			continue
		}

		pctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
		prices, err := p.FetchPrices(pctx, []string{symbol})
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return domain.Quote{}, false
			}
			run.markFailed(name)
			providerRequests.WithLabelValues(name, "error").Inc()
			s.log.Warn().Err(err).Str("provider", name).Str("symbol", symbol).Msg("Provider failed, skipping for this request")
			continue
		}

		point, ok := prices[symbol]
		if !ok || !point.Price.IsPositive() {
			providerRequests.WithLabelValues(name, "not_found").Inc()
			continue
		}

		providerRequests.WithLabelValues(name, "ok").Inc()
		currency := strings.ToUpper(point.Currency)
		if currency == "" {
			currency = s.cfg.BaseCurrency
		}
		return domain.Quote{
			Symbol:    symbol,
			Price:     point.Price,
			Currency:  currency,
			Source:    name,
			FetchedAt: now,
		}, true
	}

	return domain.Quote{}, false
}

// fetchRun is the state shared by the tasks of one fetch.
type fetchRun struct {
	mu      sync.Mutex
	failed  map[string]bool
	results map[string]domain.Quote
	closed  bool
}

func (r *fetchRun) hasFailed(provider string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed[provider]
}

func (r *fetchRun) markFailed(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[provider] = true
}

// put records q unless the run was already closed.
func (r *fetchRun) put(q domain.Quote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.results[q.Symbol] = q
}

// close stops accepting results and returns a copy of what was collected.
func (r *fetchRun) close() map[string]domain.Quote {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	out := make(map[string]domain.Quote, len(r.results))
	for k, v := range r.results {
		out[k] = v
	}
	return out
}

func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// PurgeExpired removes cache entries past the stale retention window when the
// backend needs it.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	purger, ok := s.cache.(Purger)
	if !ok {
		return 0, nil
	}
	return purger.Purge(ctx, s.cfg.StaleRetention)
}
