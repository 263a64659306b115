package valuation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	valuationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "riskengine",
			Subsystem: "valuation",
			Name:      "duration_seconds",
			Help:      "Time taken to value a portfolio including quote resolution",
			Buckets:   prometheus.DefBuckets,
		},
	)

	degradedValuations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "riskengine",
			Subsystem: "valuation",
			Name:      "degraded_total",
			Help:      "Valuations computed with stale, synthetic or unconverted prices",
		},
	)
)
