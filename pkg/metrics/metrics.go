// Package metrics exposes the harvester's Prometheus metrics.
// All metrics are defined in their respective packages (client, pagination,
// ratelimit, store) via promauto and registered with the default registry.
//
// This package documents them and serves the /metrics endpoint.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the default Prometheus registry used by the harvester.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Path is where Serve exposes the metrics.
const Path = "/metrics"

// Handler returns the HTTP handler rendering the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes Handler on addr until ctx is done, then shuts the server
// down. A server that stops because ctx ended returns nil.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle(Path, Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("path", Path).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return nil
	}
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - harvester_requests_total{endpoint, status} (Counter): Attempts by URL path and HTTP status ("network_error" on transport failure)
//   - harvester_request_duration_seconds{endpoint} (Histogram): Attempt duration by URL path
//   - harvester_errors_total{class} (Counter): Failed attempts by error class
//
// Retry Metrics (pkg/client):
//   - harvester_retries_total{error_class} (Counter): Retries scheduled by error class
//   - harvester_retry_backoff_seconds{error_class} (Histogram): Back-off before a retry
//   - harvester_retry_exhausted_total{error_class} (Counter): Pages that used up their attempts
//
// Pagination Metrics (pkg/pagination):
//   - harvester_pages_fetched_total (Counter): Pages fetched successfully
//   - harvester_items_fetched_total (Counter): Records accumulated
//   - harvester_rate_limit_waits_total (Counter): Waits for an exhausted quota
//   - harvester_fetches_total{result} (Counter): Completed fetches ("success", "error")
//
// Rate Limit Metrics (pkg/ratelimit):
//   - harvester_rate_limit_remaining (Gauge): Last observed remaining quota
//   - harvester_rate_limit_exhausted_total (Counter): Responses reporting an exhausted quota
//
// Store Metrics (pkg/store):
//   - harvester_store_writes_total{backend} (Counter): Snapshots written
//   - harvester_store_reads_total{backend,result} (Counter): Snapshot reads
//   - harvester_store_snapshot_bytes{backend} (Histogram): Encoded snapshot size
//   - harvester_store_errors_total{operation} (Counter): Store operation errors
//
// Example Prometheus Queries:
//
//   # Retry Rate by Class
//   sum by (error_class) (rate(harvester_retries_total[5m]))
//
//   # Quota Headroom
//   harvester_rate_limit_remaining < 5
//
//   # Failed Fetches
//   increase(harvester_fetches_total{result="error"}[1h])
//
//   # P95 Attempt Latency
//   histogram_quantile(0.95, rate(harvester_request_duration_seconds_bucket[5m]))
