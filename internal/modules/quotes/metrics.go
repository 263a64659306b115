package quotes

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskengine",
			Subsystem: "quotes",
			Name:      "cache_lookups_total",
			Help:      "Quote cache lookups by result (hit, miss, stale)",
		},
		[]string{"result"},
	)

	providerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskengine",
			Subsystem: "quotes",
			Name:      "provider_requests_total",
			Help:      "Market data provider calls by outcome",
		},
		[]string{"provider", "outcome"},
	)

	syntheticQuotes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "riskengine",
			Subsystem: "quotes",
			Name:      "synthetic_total",
			Help:      "Quotes served by the synthetic fallback",
		},
	)

	fetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "riskengine",
			Subsystem: "quotes",
			Name:      "fetch_duration_seconds",
			Help:      "Time spent resolving cache misses against providers",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
