// Package ratelimit tracks the API quota advertised in X-RateLimit-* response
// headers and computes how long a caller must wait once the quota is spent.
package ratelimit

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Response headers carrying quota information.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderUsed      = "X-RateLimit-Used"
	HeaderReset     = "X-RateLimit-Reset"
	HeaderResource  = "X-RateLimit-Resource"
)

// Redis keys for mirrored quota state.
const (
	RedisKeyRemaining  = "harvester:rate_limit:remaining"
	RedisKeyLimit      = "harvester:rate_limit:limit"
	RedisKeyResetAt    = "harvester:rate_limit:reset_at"
	RedisKeyResource   = "harvester:rate_limit:resource"
	RedisKeyLastUpdate = "harvester:rate_limit:last_update"
)

const (
	// WarningThreshold marks the quota level below which progress logs turn into warnings.
	WarningThreshold = 10

	// MinWait is the floor applied to every quota wait, even when the reset
	// timestamp is already in the past.
	MinWait = 1 * time.Second
)

// ErrMissingReset is returned when a remaining count is present without a reset timestamp.
var ErrMissingReset = errors.New("rate limit reset header missing")

// State is one observation of the remote quota.
type State struct {
	// Limit is the size of the quota window (X-RateLimit-Limit), 0 when absent.
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the window.
	Remaining int `json:"remaining"`

	// Used is the number of requests consumed in the window, 0 when absent.
	Used int `json:"used"`

	// Resource names the quota bucket, e.g. "core" or "search".
	Resource string `json:"resource,omitempty"`

	// ResetAt is when the quota replenishes, from the Unix timestamp in X-RateLimit-Reset.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the headers were observed.
	LastUpdate time.Time `json:"last_update"`
}

// ParseHeaders extracts quota state from response headers.
// It returns nil, nil when the response carries no quota headers.
func ParseHeaders(headers http.Header, now time.Time) (*State, error) {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil, nil
	}

	remaining, err := strconv.Atoi(remainStr)
	if err != nil {
		return nil, fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return nil, ErrMissingReset
	}
	reset, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	state := &State{
		Remaining:  remaining,
		Resource:   headers.Get(HeaderResource),
		ResetAt:    time.Unix(reset, 0),
		LastUpdate: now,
	}
	// Limit and Used are informational; tolerate garbage.
	if v, err := strconv.Atoi(headers.Get(HeaderLimit)); err == nil {
		state.Limit = v
	}
	if v, err := strconv.Atoi(headers.Get(HeaderUsed)); err == nil {
		state.Used = v
	}

	return state, nil
}

// Exhausted reports whether no requests remain in the current window.
func (s *State) Exhausted() bool {
	return s.Remaining <= 0
}

// NeedsThrottling reports whether the quota is running low but not yet spent.
func (s *State) NeedsThrottling() bool {
	return s.Remaining < WarningThreshold && !s.Exhausted()
}

// WaitDuration returns how long to wait before the quota resets, never less than MinWait.
func (s *State) WaitDuration(now time.Time) time.Duration {
	return WaitUntil(s.ResetAt, now)
}

// IsStale returns true if the observation is older than maxAge.
func (s *State) IsStale(maxAge time.Duration, now time.Time) bool {
	return now.Sub(s.LastUpdate) > maxAge
}

// WaitUntil computes max(reset-now, MinWait). Sub-second remainders are
// rounded up so a wait never ends before the reset second.
func WaitUntil(reset, now time.Time) time.Duration {
	d := reset.Sub(now)
	if d < MinWait {
		return MinWait
	}
	if rem := d % time.Second; rem != 0 {
		d += time.Second - rem
	}
	return d
}
