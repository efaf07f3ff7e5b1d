package drive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "content_proxy_upstream_requests_total",
		Help: "Total upstream drive requests by endpoint and status",
	}, []string{"endpoint", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "content_proxy_upstream_request_duration_seconds",
		Help:    "Upstream drive request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	upstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "content_proxy_upstream_errors_total",
		Help: "Total upstream drive errors by kind",
	}, []string{"kind"}) // "network", "status", "decode", "redirect", "auth_redirect"
)
