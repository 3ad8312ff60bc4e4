package pagination

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRequest(t *testing.T) {
	req := DefaultRequest("https://api.github.com/search/repositories")

	assert.Equal(t, 30, req.PageSize)
	assert.Equal(t, 10, req.MaxPages)
	assert.Equal(t, 3, req.MaxRetries)
	assert.Equal(t, 2.0, req.BackoffFactor)
	assert.Zero(t, req.MaxRateLimitWaits)
	assert.NoError(t, req.Validate())
}

func TestRequest_Validate(t *testing.T) {
	base := DefaultRequest("https://api.example.com/items")

	cases := []struct {
		name   string
		mutate func(r *Request)
		msg    string
	}{
		{name: "empty url", mutate: func(r *Request) { r.URL = "" }, msg: "url is required"},
		{name: "bad url", mutate: func(r *Request) { r.URL = "http://[::1" }, msg: "parse url"},
		{name: "relative url", mutate: func(r *Request) { r.URL = "/search/repositories" }, msg: "url must be absolute"},
		{name: "url without host", mutate: func(r *Request) { r.URL = "https:///items" }, msg: "url must be absolute"},
		{name: "zero page size", mutate: func(r *Request) { r.PageSize = 0 }, msg: "page size must be >= 1 (got 0)"},
		{name: "zero max pages", mutate: func(r *Request) { r.MaxPages = 0 }, msg: "max pages must be >= 1 (got 0)"},
		{name: "zero retries", mutate: func(r *Request) { r.MaxRetries = 0 }, msg: "max retries must be >= 1 (got 0)"},
		{name: "backoff factor one", mutate: func(r *Request) { r.BackoffFactor = 1 }, msg: "backoff factor must be > 1 (got 1)"},
		{name: "negative rate limit waits", mutate: func(r *Request) { r.MaxRateLimitWaits = -1 }, msg: "max rate limit waits must be >= 0"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)

			err := req.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRequest_PageValues(t *testing.T) {
	req := DefaultRequest("https://api.github.com/search/repositories")
	req.Params = map[string]string{"q": "marketing", "sort": "stars", "page": "99"}

	values, err := req.pageValues(3)
	require.NoError(t, err)

	assert.Equal(t, "marketing", values.Get("q"))
	assert.Equal(t, "stars", values.Get("sort"))
	assert.Equal(t, "3", values.Get("page"), "page parameter is owned by the fetcher")
	assert.Equal(t, "30", values.Get("per_page"))
	assert.Len(t, values["page"], 1)

	// The descriptor itself is untouched.
	assert.Equal(t, "99", req.Params["page"])
}

func TestRequest_Label(t *testing.T) {
	req := DefaultRequest("https://api.example.com/items")
	assert.Equal(t, "https://api.example.com/items", req.label())

	req.Label = "items"
	assert.Equal(t, "items", req.label())
}
