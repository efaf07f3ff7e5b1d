package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by scope (gallery, news, image, site, ...)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_proxy_cache_hits_total",
			Help: "Total number of cache hits by scope",
		},
		[]string{"scope"},
	)

	// CacheMisses tracks cache misses by scope
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_proxy_cache_misses_total",
			Help: "Total number of cache misses by scope",
		},
		[]string{"scope"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_proxy_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
