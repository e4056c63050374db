package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	adjustmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "badbank",
			Subsystem: "ledger",
			Name:      "adjustments_total",
			Help:      "Balance adjustments by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	adjustedAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "badbank",
			Subsystem: "ledger",
			Name:      "adjusted_amount_total",
			Help:      "Absolute amount moved by successful adjustments",
		},
		[]string{"kind"},
	)

	adjustLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "badbank",
			Subsystem: "ledger",
			Name:      "adjust_duration_seconds",
			Help:      "Time spent applying one adjustment, lock wait included",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
