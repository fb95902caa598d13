package circle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cultist_circle",
		Subsystem: "resolve",
		Name:      "requests_total",
		Help:      "Resolve requests by game mode and outcome",
	}, []string{"mode", "outcome"})

	resolveLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cultist_circle",
		Subsystem: "resolve",
		Name:      "latency_seconds",
		Help:      "Resolve latency including the catalog lookup",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"mode"})

	candidatePool = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cultist_circle",
		Subsystem: "resolve",
		Name:      "candidates",
		Help:      "Number of catalog items left for the search after filtering",
		Buckets:   []float64{0, 5, 10, 25, 50, 75, 100, 250},
	})

	catalogItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "cultist_circle",
		Subsystem: "catalog",
		Name:      "items",
		Help:      "Items in the most recent catalog snapshot",
	}, []string{"mode"})
)
