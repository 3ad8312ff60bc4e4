// Package client provides the authenticated HTTP GET executor used by the
// paginated fetcher. One call to Get is one attempt; retry policy lives with
// the caller.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/rest-harvester/pkg/logging"
	"github.com/Sternrassler/rest-harvester/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for API requests.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_requests_total",
		Help: "Total API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "harvester_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of a failed attempt.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx (and unexpected 3xx) statuses not covered by a more specific class.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents a forbidden response with an exhausted quota.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassAuth represents 401 responses.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassMalformed represents bodies that cannot be parsed.
	ErrorClassMalformed ErrorClass = "malformed"

	// ErrorClassRequest represents a request that could not be built, such
	// as a relative or unparsable URL. Nothing is sent.
	ErrorClassRequest ErrorClass = "request"

	// ErrorClassCancelled represents an attempt abandoned because the
	// caller's context ended.
	ErrorClassCancelled ErrorClass = "cancelled"
)

// Defaults for GitHub-style REST APIs.
const (
	DefaultAPIVersion     = "2022-11-28"
	DefaultAccept         = "application/vnd.github+json"
	DefaultUserAgent      = "rest-harvester/0.1.0"
	DefaultRequestTimeout = 10 * time.Second

	HeaderAPIVersion = "X-GitHub-Api-Version"
)

// Response is the outcome of a single attempt that reached the server.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// Client executes single authenticated GET attempts.
type Client struct {
	httpClient *http.Client
	tracker    *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Token is sent as a bearer credential. Empty means anonymous.
	Token string

	// APIVersion is sent in the X-GitHub-Api-Version header on every request.
	APIVersion string

	// Accept header value.
	Accept string

	// UserAgent header value. Required by GitHub.
	UserAgent string

	// RequestTimeout bounds every individual attempt, independent of retry waits.
	RequestTimeout time.Duration

	// Tracker receives quota headers from every response. Optional.
	Tracker *ratelimit.Tracker

	// HTTPClient overrides the transport (tests). Optional.
	HTTPClient *http.Client
}

// DefaultConfig returns a configuration for the given token.
func DefaultConfig(token string) Config {
	return Config{
		Token:          token,
		APIVersion:     DefaultAPIVersion,
		Accept:         DefaultAccept,
		UserAgent:      DefaultUserAgent,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.APIVersion == "" {
		return nil, fmt.Errorf("api version is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("request timeout must be > 0 (got %s)", cfg.RequestTimeout)
	}

	if cfg.Accept == "" {
		cfg.Accept = DefaultAccept
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		httpClient: httpClient,
		tracker:    cfg.Tracker,
		config:     cfg,
		logger:     logging.NewLogger("api-client"),
	}, nil
}

// Get performs one GET attempt against rawURL with query merged into any
// query already present on the URL. A transport failure returns a
// network-class *APIError, or a cancelled-class one when ctx ended first.
// A URL that cannot be requested returns a request-class *APIError. Any
// response that arrives is returned as-is, whatever its status.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, requestError(fmt.Errorf("parse url: %w", err))
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, requestError(fmt.Errorf("url must be absolute (got %q)", rawURL))
	}
	merged := u.Query()
	for k, vs := range query {
		merged.Del(k)
		for _, v := range vs {
			merged.Add(k, v)
		}
	}
	u.RawQuery = merged.Encode()
	endpoint := u.Path

	attemptCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, requestError(fmt.Errorf("create request: %w", err))
	}
	c.setHeaders(req)

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("query", u.RawQuery).
		Msg("Executing API request")

	start := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		// A body cut short by the attempt deadline is a transport failure.
		return nil, c.transportError(ctx, endpoint, fmt.Errorf("read response body: %w", err))
	}

	apiRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if c.tracker != nil {
		if _, err := c.tracker.Observe(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Duration:   time.Since(start),
	}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
	req.Header.Set(HeaderAPIVersion, c.config.APIVersion)
	req.Header.Set("Accept", c.config.Accept)
	req.Header.Set("User-Agent", c.config.UserAgent)
}

// transportError classifies a failed exchange. The caller's ctx is checked
// rather than the attempt's, so a per-attempt timeout stays a network error.
func (c *Client) transportError(ctx context.Context, endpoint string, err error) *APIError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("HTTP request cancelled")
		apiRequestsTotal.WithLabelValues(endpoint, "cancelled").Inc()
		return &APIError{
			ErrorClass: ErrorClassCancelled,
			Message:    "request cancelled",
			Err:        ctxErr,
		}
	}
	return c.networkError(endpoint, err)
}

func requestError(err error) *APIError {
	apiErrorsTotal.WithLabelValues(string(ErrorClassRequest)).Inc()
	return &APIError{
		ErrorClass: ErrorClassRequest,
		Message:    "invalid request",
		Err:        err,
	}
}

func (c *Client) networkError(endpoint string, err error) *APIError {
	c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
	apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
	apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
	return &APIError{
		ErrorClass: ErrorClassNetwork,
		Message:    "request failed",
		Err:        err,
	}
}

// Classify categorizes an attempt outcome. It returns "" for a successful
// (2xx) response. An error carries its own class when it is an *APIError;
// any other error is treated as a network failure.
func Classify(resp *Response, err error) ErrorClass {
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.ErrorClass != "" {
			return apiErr.ErrorClass
		}
		return ErrorClassNetwork
	}
	if resp == nil {
		return ErrorClassNetwork
	}

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return ""
	case code == http.StatusUnauthorized:
		return ErrorClassAuth
	case (code == http.StatusForbidden || code == http.StatusTooManyRequests) && quotaExhausted(resp.Header):
		return ErrorClassRateLimit
	case code >= 500 && code < 600:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

func quotaExhausted(h http.Header) bool {
	v := h.Get(ratelimit.HeaderRemaining)
	if v == "" {
		return false
	}
	n, err := strconv.Atoi(v)
	return err == nil && n <= 0
}

// Err converts a non-success response into a classified *APIError.
// Returns nil for 2xx responses.
func (r *Response) Err() error {
	class := Classify(r, nil)
	if class == "" {
		return nil
	}
	apiErrorsTotal.WithLabelValues(string(class)).Inc()
	return &APIError{
		StatusCode: r.StatusCode,
		ErrorClass: class,
		Message:    http.StatusText(r.StatusCode),
		Err:        bodyMessage(r.Body),
	}
}

// bodyMessage extracts the API's "message" field for diagnostics, if present.
func bodyMessage(body []byte) error {
	msg := apiMessage(body)
	if msg == "" {
		return nil
	}
	return fmt.Errorf("%s", msg)
}

// Reset returns the quota reset time carried by the response, if any.
// now is only recorded as the observation time.
func (r *Response) Reset(now time.Time) (time.Time, bool) {
	state, err := ratelimit.ParseHeaders(r.Header, now)
	if err != nil || state == nil {
		return time.Time{}, false
	}
	return state.ResetAt, true
}
