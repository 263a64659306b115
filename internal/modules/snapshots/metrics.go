package snapshots

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	appends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskengine",
			Subsystem: "snapshots",
			Name:      "appends_total",
			Help:      "Snapshot appends by outcome",
		},
		[]string{"outcome"},
	)

	archivedObjects = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "riskengine",
			Subsystem: "snapshots",
			Name:      "archived_objects_total",
			Help:      "Snapshot archive objects uploaded",
		},
	)
)
