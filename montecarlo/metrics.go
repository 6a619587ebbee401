package montecarlo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	estimatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "montecarlo_estimates_total",
		Help: "Total number of estimates by outcome",
	}, []string{"outcome"})

	samplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "montecarlo_samples_total",
		Help: "Total number of realized samples drawn",
	})

	estimateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "montecarlo_estimate_duration_seconds",
		Help:    "Duration of successful estimates",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})
)
