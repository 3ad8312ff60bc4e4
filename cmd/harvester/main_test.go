package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/rest-harvester/internal/testutil"
	"github.com/Sternrassler/rest-harvester/pkg/client"
	"github.com/Sternrassler/rest-harvester/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with args and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--env-file", ""))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		raw     []string
		want    map[string]string
		wantErr bool
	}{
		{name: "none", raw: nil, want: map[string]string{}},
		{name: "pairs", raw: []string{"q=marketing", "sort=stars"}, want: map[string]string{"q": "marketing", "sort": "stars"}},
		{name: "value with equals", raw: []string{"q=a=b"}, want: map[string]string{"q": "a=b"}},
		{name: "empty value", raw: []string{"q="}, want: map[string]string{"q": ""}},
		{name: "later wins", raw: []string{"q=a", "q=b"}, want: map[string]string{"q": "b"}},
		{name: "missing equals", raw: []string{"q"}, wantErr: true},
		{name: "missing key", raw: []string{"=x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSnapshotPath(t *testing.T) {
	dir := t.TempDir()
	key := store.Key{Label: "mkt"}

	tests := []struct {
		out  string
		want string
	}{
		{out: "", want: "mkt.json"},
		{out: dir, want: filepath.Join(dir, "mkt.json")},
		{out: "snapshots/", want: filepath.Join("snapshots", "mkt.json")},
		{out: filepath.Join(dir, "custom.json"), want: filepath.Join(dir, "custom.json")},
	}

	for _, tt := range tests {
		t.Run(tt.out, func(t *testing.T) {
			got, err := snapshotPath(tt.out, key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	v, err := newViper("", "")
	require.NoError(t, err)
	cfg := configFrom(v)

	assert.Equal(t, client.DefaultAPIVersion, cfg.APIVersion)
	assert.Equal(t, client.DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, 30, cfg.PageSize)
	assert.Equal(t, 10, cfg.MaxPages)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 2.0, cfg.BackoffFactor)
	assert.Zero(t, cfg.MaxRateLimitWaits)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestConfig_Environment(t *testing.T) {
	t.Setenv("HARVESTER_TOKEN", "env-token")
	t.Setenv("HARVESTER_FETCH_PAGE_SIZE", "50")
	t.Setenv("HARVESTER_FETCH_BACKOFF_FACTOR", "1.5")
	t.Setenv("HARVESTER_REDIS_ADDR", "redis:6379")
	t.Setenv("HARVESTER_REDIS_TTL", "2h")

	v, err := newViper("", "")
	require.NoError(t, err)
	cfg := configFrom(v)

	assert.Equal(t, "env-token", cfg.Token)
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, 1.5, cfg.BackoffFactor)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 2*time.Hour, cfg.SnapshotTTL)

	req := cfg.request("https://api.example.com/items", map[string]string{"q": "x"}, "items")
	assert.Equal(t, 50, req.PageSize)
	assert.Equal(t, "items", req.Label)
	assert.NoError(t, req.Validate())

	cc := cfg.clientConfig()
	assert.Equal(t, "env-token", cc.Token)
}

func TestConfig_GitHubTokenFallback(t *testing.T) {
	t.Setenv("HARVESTER_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "gh-token")

	v, err := newViper("", "")
	require.NoError(t, err)
	assert.Equal(t, "gh-token", configFrom(v).Token)
}

func TestConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harvester.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
user_agent: custom-agent/1.0
fetch:
  max_pages: 4
  max_rate_limit_waits: 6
log:
  level: debug
`), 0o644))

	v, err := newViper(path, "")
	require.NoError(t, err)
	cfg := configFrom(v)

	assert.Equal(t, "custom-agent/1.0", cfg.UserAgent)
	assert.Equal(t, 4, cfg.MaxPages)
	assert.Equal(t, 6, cfg.MaxRateLimitWaits)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestConfig_MissingFile(t *testing.T) {
	_, err := newViper(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)
}

func TestConfig_DotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("HARVESTER_FETCH_MAX_RETRIES=7\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("HARVESTER_FETCH_MAX_RETRIES") })

	v, err := newViper("", envFile)
	require.NoError(t, err)
	assert.Equal(t, 7, configFrom(v).MaxRetries)

	// A missing dotenv file is not an error.
	_, err = newViper("", filepath.Join(t.TempDir(), "nope.env"))
	assert.NoError(t, err)
}

func TestFetchCommand(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetCollection("/search/repositories", 500, true)

	dir := t.TempDir()
	out, err := execute(t, "fetch", mock.URL()+"/search/repositories",
		"--param", "q=marketing", "--param", "sort=stars",
		"--page-size", "10", "--max-pages", "2",
		"--label", "mkt", "--out", dir,
		"--top", "3", "--rank-by", "stargazers_count",
	)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, mock.PagesRequested("/search/repositories"))
	for _, r := range mock.Requests() {
		assert.Equal(t, "marketing", r.Query.Get("q"))
		assert.Equal(t, "10", r.Query.Get("per_page"))
	}

	path := filepath.Join(dir, "mkt.json")
	assert.Contains(t, out, "20 records written to "+path)

	snap, err := store.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 20, snap.Count)
	assert.Equal(t, "/search/repositories", snap.Endpoint)
	assert.Equal(t, "marketing", snap.Query.Get("q"))

	// Highest stargazers_count first.
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.True(t, strings.HasPrefix(lines[1], "#"), "ranking header, got %q", lines[1])
	assert.Contains(t, lines[2], "org/repo-20")
	assert.Contains(t, lines[2], "200")
	assert.Contains(t, lines[4], "org/repo-18")
}

func TestFetchCommand_Stdout(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetCollection("/orgs/acme/repos", 3, false)

	out, err := execute(t, "fetch", mock.URL()+"/orgs/acme/repos", "--out", "-")
	require.NoError(t, err)

	snap, err := store.Decode([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Count)
}

func TestFetchCommand_Unauthorized(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/items", testutil.NewUnauthorizedResponse())

	_, err := execute(t, "fetch", mock.URL()+"/items", "--out", t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, client.ErrAuthentication))
	assert.Equal(t, 1, mock.GetRequestCount())
}

func TestFetchCommand_InvalidArguments(t *testing.T) {
	_, err := execute(t, "fetch", "https://api.example.com/items", "--param", "broken")
	assert.ErrorContains(t, err, "invalid --param")

	_, err = execute(t, "fetch", "https://api.example.com/items", "--page-size", "0")
	assert.ErrorContains(t, err, "page size must be >= 1")

	_, err = execute(t, "fetch")
	assert.Error(t, err)

	_, err = execute(t, "fetch", "https://api.example.com/items", "--redis")
	assert.ErrorContains(t, err, "requires a Redis address")
}

func TestShowCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetCollection("/items", 5, false)

	_, err := execute(t, "fetch", mock.URL()+"/items", "--label", "five", "--out", path)
	require.NoError(t, err)

	out, err := execute(t, "show", path, "--top", "2", "--columns", "full_name")
	require.NoError(t, err)

	assert.Contains(t, out, "five: 5 records fetched")
	assert.Contains(t, out, "org/repo-5")
	assert.NotContains(t, out, "org/repo-3")
}

func TestShowCommand_MissingFile(t *testing.T) {
	_, err := execute(t, "show", filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestQuotaCommand_RequiresRedis(t *testing.T) {
	t.Setenv("HARVESTER_REDIS_ADDR", "")
	_, err := execute(t, "quota")
	assert.ErrorContains(t, err, "requires a Redis address")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "harvester dev")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "version", "--log-level", "loud")
	assert.ErrorContains(t, err, "unknown log level")
}
