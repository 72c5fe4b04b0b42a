// Package metrics exposes the Prometheus registry used by reqflow.
// All metrics are defined in their respective packages (cache, queue, parser,
// transport, ratelimit, client) to maintain modularity and avoid circular
// dependencies.
//
// This package provides the HTTP handler and the reference for all metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by reqflow.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves the metrics of the default gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - reqflow_cache_hits_total (Counter): Reads that found a live entry
//   - reqflow_cache_misses_total (Counter): Reads that found nothing or an expired entry
//   - reqflow_cache_expired_reads_total (Counter): Reads that found an expired entry
//   - reqflow_cache_entries (Gauge): Resident entries, expired included
//
// Queue Metrics (pkg/queue):
//   - reqflow_queue_runs_total (Counter): Run calls
//   - reqflow_queue_tasks_started_total (Counter): Tasks actually started
//   - reqflow_queue_joined_total (Counter): Run calls that joined a pending task
//   - reqflow_queue_pending (Gauge): Tasks in flight
//
// Parser Metrics (pkg/parser):
//   - reqflow_parser_resolutions_total{result} (Counter): matched, identity, ambiguous
//
// Transport Metrics (pkg/transport):
//   - reqflow_transport_requests_total{method, status} (Counter): Upstream requests by status text
//   - reqflow_transport_request_duration_seconds{method} (Histogram): Upstream request duration
//   - reqflow_transport_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//
// Error Budget Metrics (pkg/ratelimit):
//   - reqflow_errors_remaining (Gauge): Errors remaining in the upstream window
//   - reqflow_rate_limit_blocks_total (Counter): Requests blocked in the critical state
//   - reqflow_rate_limit_throttles_total (Counter): Requests throttled in the warning state
//
// Client Metrics (pkg/client):
//   - reqflow_client_requests_total{method, path} (Counter): hit, miss, bypass
//   - reqflow_client_cache_stores_total (Counter): Responses stored after a miss
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(reqflow_client_requests_total{path="hit"}[5m])) /
//   sum(rate(reqflow_client_requests_total{path=~"hit|miss"}[5m]))
//
//   # Deduplication Ratio
//   rate(reqflow_queue_joined_total[5m]) / rate(reqflow_queue_runs_total[5m])
//
//   # Error Budget Status
//   reqflow_errors_remaining < 20
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(reqflow_transport_request_duration_seconds_bucket[5m]))
