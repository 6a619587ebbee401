package guda

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	kernelLaunches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guda_kernel_launches_total",
		Help: "Total number of kernel launches by outcome",
	}, []string{"outcome"})

	kernelThreads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guda_kernel_threads_total",
		Help: "Total number of kernel threads executed",
	})

	kernelDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "guda_kernel_duration_seconds",
		Help:    "Wall time of a kernel launch from first block to last",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	deviceMemoryBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guda_device_memory_bytes",
		Help: "Live device memory across all contexts",
	})

	allocationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guda_allocation_failures_total",
		Help: "Total number of device allocations refused",
	})
)
