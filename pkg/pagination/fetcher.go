package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Sternrassler/rest-harvester/pkg/client"
	"github.com/Sternrassler/rest-harvester/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for paginated fetches.
var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_pages_fetched_total",
		Help: "Total number of pages fetched successfully",
	})

	itemsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_items_fetched_total",
		Help: "Total number of records accumulated across pages",
	})

	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_rate_limit_waits_total",
		Help: "Total number of waits for an exhausted quota to reset",
	})

	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_fetches_total",
		Help: "Total number of paginated fetches by result",
	}, []string{"result"})
)

// Getter performs a single GET attempt. *client.Client implements it.
type Getter interface {
	Get(ctx context.Context, rawURL string, query url.Values) (*client.Response, error)
}

// Fetcher runs paginated fetches through a Getter. A Fetcher holds no
// per-fetch state and may be reused for sequential calls.
type Fetcher struct {
	getter Getter
	sleep  client.Sleeper
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Fetcher.
type Option func(f *Fetcher)

// WithSleeper replaces the wait function (tests record waits instead of sleeping).
func WithSleeper(s client.Sleeper) Option {
	return func(f *Fetcher) {
		f.sleep = s
	}
}

// WithClock replaces the time source used for quota reset arithmetic.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		f.now = now
	}
}

// WithLogger sets the logger used for progress output.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher.
func New(getter Getter, opts ...Option) *Fetcher {
	f := &Fetcher{
		getter: getter,
		sleep:  client.Sleep,
		now:    time.Now,
		logger: logging.NewLogger("pagination"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch requests successive pages of req.URL and returns their records in
// page order. It stops after a short page or after req.MaxPages pages.
// Any fatal page error aborts the fetch; no partial result is returned.
func (f *Fetcher) Fetch(ctx context.Context, req Request) ([]Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	logger := f.logger.With().Str("label", req.label()).Logger()
	start := time.Now()

	logger.Info().
		Str("url", req.URL).
		Int("page_size", req.PageSize).
		Int("max_pages", req.MaxPages).
		Msg("Starting paginated fetch")

	var records []Record
	for page := 1; ; page++ {
		body, err := f.fetchPage(ctx, req, page, logger)
		if err != nil {
			fetchesTotal.WithLabelValues("error").Inc()
			logger.Error().
				Err(err).
				Int("page", page).
				Int("discarded", len(records)).
				Msg("Fetch failed")
			return nil, fmt.Errorf("fetch %s page %d: %w", req.label(), page, err)
		}

		records = append(records, body.Items...)
		pagesFetchedTotal.Inc()
		itemsFetchedTotal.Add(float64(len(body.Items)))

		event := logger.Info().
			Int("page", page).
			Int("items", len(body.Items)).
			Int("total", len(records))
		if total, ok := body.Meta["total_count"]; ok && page == 1 {
			event = event.Interface("total_count", total)
		}
		event.Msg("Fetched page")

		if len(body.Items) < req.PageSize {
			logger.Debug().Int("page", page).Msg("Short page, collection exhausted")
			break
		}
		if page >= req.MaxPages {
			logger.Info().Int("max_pages", req.MaxPages).Msg("Page limit reached")
			break
		}
	}

	fetchesTotal.WithLabelValues("success").Inc()
	logger.Info().
		Int("items", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return records, nil
}

// fetchPage drives one page through the attempt state machine.
func (f *Fetcher) fetchPage(ctx context.Context, req Request, page int, logger zerolog.Logger) (*Body, error) {
	values, err := req.pageValues(page)
	if err != nil {
		return nil, err
	}

	attempt := 1
	rateLimitWaits := 0
	for {
		resp, getErr := f.getter.Get(ctx, req.URL, values)
		if resp == nil && getErr == nil {
			return nil, fmt.Errorf("getter returned neither response nor error")
		}

		tr := step(attemptResult{resp: resp, err: getErr}, attempt, req, rateLimitWaits, f.now())

		switch tr.state {
		case stateSuccess:
			if attempt > 1 || rateLimitWaits > 0 {
				logger.Info().
					Int("page", page).
					Int("attempt", attempt).
					Int("rate_limit_waits", rateLimitWaits).
					Msg("Request succeeded after retry")
			}
			return tr.body, nil

		case stateFatal:
			if errors.Is(tr.err, client.ErrRetryExhausted) {
				client.RecordExhausted(tr.class, req.MaxRetries)
			}
			return nil, tr.err

		case stateRateLimited:
			rateLimitWaits++
			rateLimitWaitsTotal.Inc()
			logger.Warn().
				Int("page", page).
				Dur("wait", tr.wait).
				Int("rate_limit_waits", rateLimitWaits).
				Msg("Quota exhausted, waiting for reset")

		case stateAttempting:
			client.RecordRetry(tr.class, attempt, tr.wait)
			logger.Warn().
				Err(tr.err).
				Int("page", page).
				Int("attempt", attempt).
				Int("max_retries", req.MaxRetries).
				Str("error_class", string(tr.class)).
				Dur("wait", tr.wait).
				Msg("Attempt failed, backing off")
		}

		if err := f.sleep(ctx, tr.wait); err != nil {
			return nil, err
		}
		attempt = tr.attempt
	}
}
