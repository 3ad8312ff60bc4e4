package client

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Sternrassler/rest-harvester/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "harvester_retry_backoff_seconds",
		Help:    "Wait duration before a retry by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 300, 3600},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// Backoff returns the wait before retrying after the given failed attempt:
// factor^(attempt-1) seconds. Attempt numbers start at 1.
func Backoff(factor float64, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	seconds := math.Pow(factor, float64(attempt-1))
	if seconds > math.MaxInt64/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(seconds * float64(time.Second))
}

// RateLimitWait returns max(reset-now, 1s).
func RateLimitWait(reset, now time.Time) time.Duration {
	return ratelimit.WaitUntil(reset, now)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep waits for d. It returns an ErrContextCancelled-wrapped error when ctx
// ends first; with a background context the wait always runs to completion.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// RecordRetry records a scheduled retry and its wait.
func RecordRetry(class ErrorClass, attempt int, wait time.Duration) {
	retriesTotal.WithLabelValues(string(class)).Inc()
	retryBackoffSeconds.WithLabelValues(string(class)).Observe(wait.Seconds())

	log.Debug().
		Str("error_class", string(class)).
		Int("attempt", attempt).
		Dur("backoff", wait).
		Msg("Retrying request after backoff")
}

// RecordExhausted records that a class of failure used up all attempts.
func RecordExhausted(class ErrorClass, maxAttempts int) {
	retryExhaustedTotal.WithLabelValues(string(class)).Inc()
	log.Warn().
		Str("error_class", string(class)).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")
}
