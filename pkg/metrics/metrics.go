// Package metrics provides the centralized Prometheus metrics registry for
// the content proxy. All metrics are defined in their respective packages
// (cache, drive, api) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the proxy. All
// metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - content_proxy_cache_hits_total{scope} (Counter): Cache hits by scope (gallery, news, article, site, image_content)
//   - content_proxy_cache_misses_total{scope} (Counter): Cache misses by scope
//   - content_proxy_cache_errors_total{operation} (Counter): Cache operation errors
//
// Upstream Metrics (pkg/drive):
//   - content_proxy_upstream_requests_total{endpoint, status} (Counter): Remote store requests by endpoint and HTTP status
//   - content_proxy_upstream_request_duration_seconds{endpoint} (Histogram): Remote store request duration by endpoint
//   - content_proxy_upstream_errors_total{kind} (Counter): Upstream errors (network, status, decode, redirect, auth_redirect)
//
// HTTP Metrics (pkg/api):
//   - content_proxy_http_requests_total{route, status} (Counter): API requests by route and status code
//   - content_proxy_http_request_duration_seconds{route} (Histogram): API request duration by route
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(content_proxy_cache_hits_total[5m])) /
//   (sum(rate(content_proxy_cache_hits_total[5m])) + sum(rate(content_proxy_cache_misses_total[5m])))
//
//   # Upstream Error Rate
//   rate(content_proxy_upstream_errors_total[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(content_proxy_upstream_request_duration_seconds_bucket[5m]))
//
//   # Auth Redirect Incidents
//   increase(content_proxy_upstream_errors_total{kind="auth_redirect"}[1h])
