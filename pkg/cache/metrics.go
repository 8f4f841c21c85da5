package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leakix_cache_hits_total",
			Help: "Total number of response cache hits by backend",
		},
		[]string{"backend"}, // "file", "redis"
	)

	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leakix_cache_misses_total",
			Help: "Total number of response cache misses by backend",
		},
		[]string{"backend"},
	)

	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leakix_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "load", "save", "get", "set", "delete", "clear"
	)
)
