package pagination

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/google/go-querystring/query"
)

// ErrInvalidRequest is returned by Validate for a malformed request descriptor.
var ErrInvalidRequest = errors.New("invalid fetch request")

// Defaults used by DefaultRequest.
const (
	DefaultPageSize      = 30
	DefaultMaxPages      = 10
	DefaultMaxRetries    = 3
	DefaultBackoffFactor = 2.0
)

// Request describes one paginated fetch. It is not modified by Fetch.
type Request struct {
	// URL of the collection endpoint. May carry its own query string.
	URL string

	// Params are extra query parameters. The page and per_page parameters
	// are always set by the fetcher and override entries here.
	Params map[string]string

	// PageSize is sent as per_page. A page with fewer records ends the fetch.
	PageSize int

	// MaxPages caps the number of pages requested (retries not counted).
	MaxPages int

	// MaxRetries is the number of attempts per page for network and 5xx failures.
	MaxRetries int

	// BackoffFactor is the exponential base: attempt n waits BackoffFactor^(n-1) seconds.
	BackoffFactor float64

	// MaxRateLimitWaits bounds quota waits per page. 0 waits as often as the server asks.
	MaxRateLimitWaits int

	// Label identifies the fetch in logs.
	Label string
}

// DefaultRequest returns a request for rawURL with default limits.
func DefaultRequest(rawURL string) Request {
	return Request{
		URL:           rawURL,
		Params:        map[string]string{},
		PageSize:      DefaultPageSize,
		MaxPages:      DefaultMaxPages,
		MaxRetries:    DefaultMaxRetries,
		BackoffFactor: DefaultBackoffFactor,
	}
}

// Validate checks the descriptor's constraints.
func (r Request) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidRequest)
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("%w: parse url: %v", ErrInvalidRequest, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: url must be absolute (got %q)", ErrInvalidRequest, r.URL)
	}
	if r.PageSize < 1 {
		return fmt.Errorf("%w: page size must be >= 1 (got %d)", ErrInvalidRequest, r.PageSize)
	}
	if r.MaxPages < 1 {
		return fmt.Errorf("%w: max pages must be >= 1 (got %d)", ErrInvalidRequest, r.MaxPages)
	}
	if r.MaxRetries < 1 {
		return fmt.Errorf("%w: max retries must be >= 1 (got %d)", ErrInvalidRequest, r.MaxRetries)
	}
	if r.BackoffFactor <= 1 {
		return fmt.Errorf("%w: backoff factor must be > 1 (got %g)", ErrInvalidRequest, r.BackoffFactor)
	}
	if r.MaxRateLimitWaits < 0 {
		return fmt.Errorf("%w: max rate limit waits must be >= 0 (got %d)", ErrInvalidRequest, r.MaxRateLimitWaits)
	}
	return nil
}

// label returns Label, falling back to URL.
func (r Request) label() string {
	if r.Label != "" {
		return r.Label
	}
	return r.URL
}

type pageQuery struct {
	Page    int `url:"page"`
	PerPage int `url:"per_page"`
}

// pageValues builds the query for one page: Params plus page and per_page.
func (r Request) pageValues(page int) (url.Values, error) {
	values := url.Values{}
	for k, v := range r.Params {
		values.Set(k, v)
	}

	pq, err := query.Values(pageQuery{Page: page, PerPage: r.PageSize})
	if err != nil {
		return nil, fmt.Errorf("encode page query: %w", err)
	}
	for k := range pq {
		values.Set(k, pq.Get(k))
	}
	return values, nil
}
