package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Sternrassler/rest-harvester/pkg/client"
	"github.com/Sternrassler/rest-harvester/pkg/logging"
	"github.com/Sternrassler/rest-harvester/pkg/metrics"
	"github.com/Sternrassler/rest-harvester/pkg/pagination"
	"github.com/Sternrassler/rest-harvester/pkg/rank"
	"github.com/Sternrassler/rest-harvester/pkg/ratelimit"
	"github.com/Sternrassler/rest-harvester/pkg/store"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// rankOptions controls the optional ranking printed after a fetch.
type rankOptions struct {
	top     int
	by      string
	columns []string
}

func addRankFlags(cmd *cobra.Command) {
	cmd.Flags().Int("top", 0, "print the top N records ranked by --rank-by")
	cmd.Flags().String("rank-by", "stargazers_count", "numeric field (dotted path) to rank by")
	cmd.Flags().StringSlice("columns", []string{"full_name", "stargazers_count"}, "fields shown in the ranking")
}

func rankOptionsFrom(cmd *cobra.Command) rankOptions {
	top, _ := cmd.Flags().GetInt("top")
	by, _ := cmd.Flags().GetString("rank-by")
	columns, _ := cmd.Flags().GetStringSlice("columns")
	return rankOptions{top: top, by: by, columns: columns}
}

func newFetchCmd(a *app) *cobra.Command {
	var (
		params      []string
		label       string
		out         string
		saveRedis   bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch every page of a collection and store the records",
		Example: `  harvester fetch https://api.github.com/search/repositories \
    --param q=marketing --param sort=stars --page-size 30 --max-pages 2 \
    --top 10 --rank-by stargazers_count`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseParams(params)
			if err != nil {
				return err
			}
			return a.runFetch(cmd, fetchOptions{
				url:         args[0],
				params:      query,
				label:       label,
				out:         out,
				saveRedis:   saveRedis,
				metricsAddr: metricsAddr,
				rank:        rankOptionsFrom(cmd),
			})
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&params, "param", "p", nil, "query parameter sent with every page (key=value, repeatable)")
	flags.StringVarP(&label, "label", "l", "", "name of the harvest, used in logs and file names")
	flags.StringVarP(&out, "out", "o", "", "snapshot file or directory (\"-\" for stdout, default derived from the request)")
	flags.BoolVar(&saveRedis, "redis", false, "also save the snapshot to Redis")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the fetch")
	flags.Int("page-size", pagination.DefaultPageSize, "records requested per page")
	flags.Int("max-pages", pagination.DefaultMaxPages, "maximum number of pages fetched")
	flags.Int("max-retries", pagination.DefaultMaxRetries, "attempts per page for network and server errors")
	flags.Float64("backoff-factor", pagination.DefaultBackoffFactor, "exponential back-off base in seconds")
	flags.Int("max-rate-limit-waits", 0, "quota waits allowed per page (0 = unlimited)")
	flags.String("redis-addr", "", "Redis address for quota tracking and snapshots")
	flags.Duration("redis-ttl", 0, "expiry of snapshots saved to Redis (0 = keep)")
	addRankFlags(cmd)

	return cmd
}

type fetchOptions struct {
	url         string
	params      map[string]string
	label       string
	out         string
	saveRedis   bool
	metricsAddr string
	rank        rankOptions
}

func (a *app) runFetch(cmd *cobra.Command, opts fetchOptions) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	logger := logging.NewLogger("harvester")

	if opts.metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, opts.metricsAddr); err != nil {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	rdb, err := a.redisClient(ctx)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}
	if opts.saveRedis && rdb == nil {
		return fmt.Errorf("--redis requires a Redis address (--redis-addr or HARVESTER_REDIS_ADDR)")
	}

	// A nil *redis.Client must not reach the tracker as a non-nil interface.
	var mirror redis.UniversalClient
	if rdb != nil {
		mirror = rdb
	}

	clientCfg := a.cfg.clientConfig()
	clientCfg.Tracker = ratelimit.NewTracker(mirror, logging.NewLogger("ratelimit"))
	api, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create api client: %w", err)
	}

	req := a.cfg.request(opts.url, opts.params, opts.label)
	key, err := store.KeyFor(req.URL, req.Params, req.Label)
	if err != nil {
		return err
	}

	records, err := pagination.New(api).Fetch(ctx, req)
	if err != nil {
		return err
	}

	snap := store.NewSnapshot(key, records, time.Now())
	w := cmd.OutOrStdout()

	if opts.out == "-" {
		data, err := snap.Encode()
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	} else {
		path, err := snapshotPath(opts.out, key)
		if err != nil {
			return err
		}
		if err := store.WriteFile(path, snap); err != nil {
			return err
		}
		logger.Info().Str("path", path).Int("records", snap.Count).Msg("Snapshot written")
		fmt.Fprintf(w, "%d records written to %s\n", snap.Count, path)
	}

	if opts.saveRedis {
		if err := store.NewRedisStore(rdb, a.cfg.SnapshotTTL).Save(ctx, key, snap); err != nil {
			return err
		}
		logger.Info().Str("key", key.String()).Msg("Snapshot saved to Redis")
		fmt.Fprintf(w, "snapshot saved to redis as %s\n", key)
	}

	if opts.rank.top > 0 && opts.out != "-" {
		printRanking(w, records, opts.rank)
	}

	return nil
}

// snapshotPath resolves --out: empty means the key's file name in the working
// directory, an existing directory (or one ending in a separator) receives the
// key's file name, anything else is used as the file path.
func snapshotPath(out string, key store.Key) (string, error) {
	if out == "" {
		return key.FileName(), nil
	}
	if strings.HasSuffix(out, string(os.PathSeparator)) || strings.HasSuffix(out, "/") {
		return filepath.Join(out, key.FileName()), nil
	}
	info, err := os.Stat(out)
	if err == nil && info.IsDir() {
		return filepath.Join(out, key.FileName()), nil
	}
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("stat %s: %w", out, err)
	}
	return out, nil
}

// parseParams turns repeated key=value flags into a parameter map. Later
// occurrences of a key win.
func parseParams(raw []string) (map[string]string, error) {
	params := make(map[string]string, len(raw))
	for _, p := range raw {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q: want key=value", p)
		}
		params[k] = v
	}
	return params, nil
}

func printRanking(w io.Writer, records []pagination.Record, opts rankOptions) {
	entries := rank.TopN(records, opts.by, opts.top)
	if len(entries) == 0 {
		fmt.Fprintln(w, "no records to rank")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := append([]string{"#"}, opts.columns...)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rank.Table(entries, opts.columns) {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}
