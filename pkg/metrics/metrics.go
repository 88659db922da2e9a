// Package metrics exposes the exporter's Prometheus metrics. All metrics are
// defined in their owning packages (gateway, fetch, ratelimit) via promauto;
// this package provides the scrape handler and documents what exists.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registry used by the exporter. All metrics are
// automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler serving the exporter's metrics, for use
// behind a --metrics-addr listener during long fetches.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Request Metrics (pkg/gateway):
//   - genie_requests_total{endpoint, status} (Counter): API requests by endpoint and HTTP status
//   - genie_request_duration_seconds{endpoint} (Histogram): request duration by endpoint
//   - genie_errors_total{class} (Counter): errors by class (client, server, rate_limit, network)
//
// Fetch Metrics (pkg/fetch):
//   - genie_fetch_duration_seconds{path} (Histogram): whole-fetch duration by path (sequential, chunked)
//   - genie_fetch_chunks_total{outcome} (Counter): time chunks by outcome (ok, failed)
//   - genie_fetch_detail_failures_total (Counter): alerts dropped due to detail fetch failures
//
// Rate Limit Metrics (pkg/ratelimit):
//   - genie_api_throttled (Gauge): 1 while the API reports THROTTLED
//   - genie_api_throttle_events_total (Counter): responses carrying a THROTTLED state
//   - genie_api_throttle_waits_total (Counter): requests delayed by remote throttling
//
// Example Prometheus Queries:
//
//   # Request error rate
//   rate(genie_errors_total[5m])
//
//   # Share of failed chunks
//   rate(genie_fetch_chunks_total{outcome="failed"}[15m]) /
//   rate(genie_fetch_chunks_total[15m])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(genie_request_duration_seconds_bucket[5m]))
