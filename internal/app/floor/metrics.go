package floor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conference",
		Subsystem: "floor",
		Name:      "strategy_runs_total",
		Help:      "Voice switching strategy runs by result.",
	}, []string{"result"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "conference",
		Subsystem: "floor",
		Name:      "strategy_run_seconds",
		Help:      "Duration of one strategy run.",
		Buckets:   prometheus.DefBuckets,
	})

	connectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conference",
		Subsystem: "floor",
		Name:      "connects_total",
		Help:      "Floor to sink connections attempted by result.",
	}, []string{"result"})
)
