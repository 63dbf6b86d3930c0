package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	queueLen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "oxpilot",
			Subsystem: "manager",
			Name:      "queue_length",
			Help:      "Requests waiting for the generation slot",
		},
	)

	queueCapacity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "oxpilot",
			Subsystem: "manager",
			Name:      "queue_capacity",
			Help:      "Configured maximum number of waiting requests",
		},
	)

	inflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "oxpilot",
			Subsystem: "manager",
			Name:      "inflight",
			Help:      "Generations currently holding the model",
		},
	)

	rejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oxpilot",
			Subsystem: "manager",
			Name:      "rejected_total",
			Help:      "Requests rejected before admission",
		},
		[]string{"reason"},
	)

	queueWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "oxpilot",
			Subsystem: "manager",
			Name:      "queue_wait_seconds",
			Help:      "Time spent waiting for the generation slot",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(queueLen, queueCapacity, inflight, rejectedTotal, queueWait)
}
