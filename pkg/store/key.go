package store

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies one harvested collection.
type Key struct {
	// Endpoint is the URL path of the collection (e.g. "/search/repositories").
	Endpoint string

	// Query holds the caller's query parameters, without page and per_page.
	Query url.Values

	// Label is the optional human-readable name of the harvest.
	Label string
}

// KeyFor builds a Key from a collection URL and the extra parameters sent
// with every page. Pagination parameters are dropped.
func KeyFor(rawURL string, params map[string]string, label string) (Key, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Key{}, fmt.Errorf("parse url: %w", err)
	}

	query := u.Query()
	for k, v := range params {
		query.Set(k, v)
	}
	query.Del("page")
	query.Del("per_page")

	return Key{Endpoint: u.Path, Query: query, Label: label}, nil
}

// String generates a deterministic key string.
// Format: harvest:endpoint:query1=val1:query2=val2[:label=name]
//
// Example:
//
//	harvest:search/repositories:q=marketing:sort=stars
func (k Key) String() string {
	parts := []string{"harvest"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	for _, key := range sortedKeys(k.Query) {
		parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(k.Query[key], ",")))
	}

	if k.Label != "" {
		parts = append(parts, "label="+k.Label)
	}

	return strings.Join(parts, ":")
}

// FileName returns a filesystem-safe file name for the snapshot. The label
// wins when set; otherwise the endpoint and query are slugged.
func (k Key) FileName() string {
	var base string
	if k.Label != "" {
		base = slug(k.Label)
	} else {
		base = slug(strings.TrimPrefix(k.String(), "harvest:"))
	}
	if base == "" {
		base = "harvest"
	}
	return base + ".json"
}

func sortedKeys(v url.Values) []string {
	keys := make([]string, 0, len(v))
	for key := range v {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// slug lowercases s and collapses every run of characters outside
// [a-z0-9._] into a single dash.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-.")
}
