package generate

import "github.com/prometheus/client_golang/prometheus"

var (
	tokensGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "oxpilot",
			Subsystem: "generate",
			Name:      "tokens_total",
			Help:      "Total number of tokens sampled",
		},
	)

	promptTokens = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "oxpilot",
			Subsystem: "generate",
			Name:      "prompt_tokens_total",
			Help:      "Total number of prompt tokens prefilled",
		},
	)

	outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oxpilot",
			Subsystem: "generate",
			Name:      "outcomes_total",
			Help:      "Finished generations by terminal reason",
		},
		[]string{"reason"},
	)

	stepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "oxpilot",
			Subsystem: "generate",
			Name:      "step_duration_seconds",
			Help:      "Duration of one model step",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)
)

func init() {
	prometheus.MustRegister(tokensGenerated, promptTokens, outcomesTotal, stepDuration)
}
