// Package testutil provides testing utilities for the harvester.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock API endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is one request received by the mock server.
type RecordedRequest struct {
	Path   string
	Query  url.Values
	Header http.Header
}

// MockAPI is a configurable mock REST API server for testing.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	requests []RecordedRequest
}

// NewMockAPI creates a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		})
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Not Found"}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears recorded requests.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetSequence serves the given responses in order, one per request. The
// last response repeats once the sequence is used up.
func (m *MockAPI) SetSequence(path string, resps ...MockResponse) {
	var mu sync.Mutex
	next := 0
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := resps[next]
		if next < len(resps)-1 {
			next++
		}
		mu.Unlock()
		writeResponse(w, resp)
	})
}

// SetCollection serves a collection of total generated items, honoring the
// page and per_page query parameters. When envelope is true each page is
// wrapped as {"total_count": N, "items": [...]}.
func (m *MockAPI) SetCollection(path string, total int, envelope bool) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, err := strconv.Atoi(q.Get("page"))
		if err != nil || page < 1 {
			page = 1
		}
		perPage, err := strconv.Atoi(q.Get("per_page"))
		if err != nil || perPage < 1 {
			perPage = 30
		}

		start := (page - 1) * perPage
		n := total - start
		if n > perPage {
			n = perPage
		}
		if n < 0 {
			n = 0
		}

		body := Items(start+1, n)
		if envelope {
			body = fmt.Sprintf(`{"total_count": %d, "incomplete_results": false, "items": %s}`, total, body)
		}
		writeResponse(w, NewHealthyResponse(body))
	})
}

// Requests returns a copy of all recorded requests.
func (m *MockAPI) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// PagesRequested returns the page query parameter of every request to path, in order.
func (m *MockAPI) PagesRequested(path string) []int {
	var pages []int
	for _, r := range m.Requests() {
		if r.Path != path {
			continue
		}
		p, _ := strconv.Atoi(r.Query.Get("page"))
		pages = append(pages, p)
	}
	return pages
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// Items renders n repository-like JSON objects with ids starting at first.
func Items(first, n int) string {
	parts := make([]string, 0, n)
	for i := first; i < first+n; i++ {
		parts = append(parts, fmt.Sprintf(
			`{"id": %d, "full_name": "org/repo-%d", "stargazers_count": %d, "owner": {"login": "org"}}`,
			i, i, i*10))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// NewHealthyResponse creates a standard 200 OK response with quota headers.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "30",
			"X-RateLimit-Remaining": "29",
			"X-RateLimit-Reset":     strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10),
			"X-RateLimit-Resource":  "search",
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 403 response with an exhausted quota that resets at reset.
func NewRateLimitResponse(reset time.Time) MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"message": "API rate limit exceeded"}`,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "30",
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     strconv.FormatInt(reset.Unix(), 10),
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// NewForbiddenResponse creates a 403 response that is not quota related.
func NewForbiddenResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"message": "Resource not accessible by integration"}`,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "25",
			"X-RateLimit-Reset":     strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10),
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// NewUnauthorizedResponse creates a 401 Bad credentials response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"message": "Bad credentials"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewMalformedResponse creates a 200 response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>oops</html>`,
		Headers: map[string]string{
			"Content-Type": "text/html",
		},
	}
}
