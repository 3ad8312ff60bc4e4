package main

import (
	"fmt"
	"time"

	"github.com/Sternrassler/rest-harvester/pkg/store"
	"github.com/spf13/cobra"
)

func newShowCmd(a *app) *cobra.Command {
	var (
		fromRedis bool
		params    []string
		label     string
	)

	cmd := &cobra.Command{
		Use:   "show <file|url>",
		Short: "Summarize a stored snapshot",
		Long: `show prints a summary of a snapshot written by fetch. The argument is a
snapshot file, or with --redis the collection URL (plus the same --param and
--label values used for the fetch) whose snapshot is loaded from Redis.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				snap *store.Snapshot
				err  error
			)

			if fromRedis {
				snap, err = a.loadFromRedis(cmd, args[0], params, label)
			} else {
				snap, err = store.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			name := snap.Label
			if name == "" {
				name = snap.Endpoint
			}
			fmt.Fprintf(w, "%s: %d records fetched %s\n", name, snap.Count, snap.FetchedAt.Format(time.RFC3339))

			opts := rankOptionsFrom(cmd)
			if opts.top > 0 {
				printRanking(w, snap.Records, opts)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromRedis, "redis", false, "load the snapshot from Redis instead of a file")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "query parameter used by the fetch (key=value, repeatable)")
	cmd.Flags().StringVarP(&label, "label", "l", "", "label used by the fetch")
	cmd.Flags().String("redis-addr", "", "Redis address")
	addRankFlags(cmd)

	return cmd
}

func (a *app) loadFromRedis(cmd *cobra.Command, rawURL string, rawParams []string, label string) (*store.Snapshot, error) {
	query, err := parseParams(rawParams)
	if err != nil {
		return nil, err
	}
	key, err := store.KeyFor(rawURL, query, label)
	if err != nil {
		return nil, err
	}

	rdb, err := a.redisClient(cmd.Context())
	if err != nil {
		return nil, err
	}
	if rdb == nil {
		return nil, fmt.Errorf("--redis requires a Redis address (--redis-addr or HARVESTER_REDIS_ADDR)")
	}
	defer rdb.Close()

	return store.NewRedisStore(rdb, 0).Load(cmd.Context(), key)
}
