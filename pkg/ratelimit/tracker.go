package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for quota tracking.
var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "harvester_rate_limit_remaining",
		Help: "Requests remaining in the current API quota window",
	})

	rateLimitExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_rate_limit_exhausted_total",
		Help: "Total number of responses observed with an exhausted quota",
	})
)

// ErrNoState is returned by Load when no quota observation has been stored.
var ErrNoState = errors.New("no rate limit state recorded")

// Tracker remembers the most recent quota observation. When a Redis client
// is configured the observation is mirrored there so that other processes
// (and later runs) can inspect it.
type Tracker struct {
	redis  redis.UniversalClient
	logger zerolog.Logger

	mu      sync.Mutex
	current *State
	now     func() time.Time
}

// NewTracker creates a tracker. redisClient may be nil for in-memory tracking only.
func NewTracker(redisClient redis.UniversalClient, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
		now:    time.Now,
	}
}

// Observe parses quota headers from a response and records them.
// Returns nil, nil if the response carried no quota headers.
func (t *Tracker) Observe(ctx context.Context, headers http.Header) (*State, error) {
	state, err := ParseHeaders(headers, t.now())
	if err != nil || state == nil {
		return nil, err
	}

	t.mu.Lock()
	t.current = state
	t.mu.Unlock()

	rateLimitRemaining.Set(float64(state.Remaining))

	switch {
	case state.Exhausted():
		rateLimitExhaustedTotal.Inc()
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Str("resource", state.Resource).
			Msg("API quota exhausted")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("API quota running low")
	default:
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Int("limit", state.Limit).
			Msg("API quota updated")
	}

	if t.redis != nil {
		if err := t.store(ctx, state); err != nil {
			return state, err
		}
	}

	return state, nil
}

// Current returns a copy of the last observed state, or nil if none.
func (t *Tracker) Current() *State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil
	}
	s := *t.current
	return &s
}

func (t *Tracker) store(ctx context.Context, state *State) error {
	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyRemaining, state.Remaining, 0)
	pipe.Set(ctx, RedisKeyLimit, state.Limit, 0)
	pipe.Set(ctx, RedisKeyResetAt, state.ResetAt.Unix(), 0)
	pipe.Set(ctx, RedisKeyResource, state.Resource, 0)
	pipe.Set(ctx, RedisKeyLastUpdate, state.LastUpdate.Unix(), 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}

// Load reads the mirrored state back from Redis.
// Returns ErrNoState when nothing is stored or no Redis client is configured.
func (t *Tracker) Load(ctx context.Context) (*State, error) {
	if t.redis == nil {
		return nil, ErrNoState
	}

	remaining, err := t.redis.Get(ctx, RedisKeyRemaining).Int()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("get remaining: %w", err)
	}

	limit, err := t.redis.Get(ctx, RedisKeyLimit).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get limit: %w", err)
	}

	resetAt, err := t.redis.Get(ctx, RedisKeyResetAt).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get reset timestamp: %w", err)
	}

	resource, err := t.redis.Get(ctx, RedisKeyResource).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get resource: %w", err)
	}

	lastUpdate, err := t.redis.Get(ctx, RedisKeyLastUpdate).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	return &State{
		Limit:      limit,
		Remaining:  remaining,
		Resource:   resource,
		ResetAt:    time.Unix(resetAt, 0),
		LastUpdate: time.Unix(lastUpdate, 0),
	}, nil
}
