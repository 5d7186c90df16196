package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// fetchTotal counts remote fetches by resource and result
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "healthlens_fetch_total",
		Help: "Remote resource fetches by resource and result",
	}, []string{"resource", "result"})

	// loadTotal counts Load calls by outcome
	loadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "healthlens_load_total",
		Help: "Dataset load calls by outcome (loaded, joined, already_loaded, failed)",
	}, []string{"outcome"})

	// loadDuration tracks fetch+parse latency of real loads
	loadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "healthlens_load_duration_seconds",
		Help:    "Dataset load duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	})
)
