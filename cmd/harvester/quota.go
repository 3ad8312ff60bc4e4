package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/rest-harvester/pkg/logging"
	"github.com/Sternrassler/rest-harvester/pkg/ratelimit"
	"github.com/spf13/cobra"
)

// staleAfter marks quota observations older than this as possibly outdated.
const staleAfter = time.Hour

func newQuotaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show the last rate-limit quota recorded in Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rdb, err := a.redisClient(cmd.Context())
			if err != nil {
				return err
			}
			if rdb == nil {
				return fmt.Errorf("quota requires a Redis address (--redis-addr or HARVESTER_REDIS_ADDR)")
			}
			defer rdb.Close()

			state, err := ratelimit.NewTracker(rdb, logging.NewLogger("ratelimit")).Load(cmd.Context())
			if errors.Is(err, ratelimit.ErrNoState) {
				fmt.Fprintln(cmd.OutOrStdout(), "no quota recorded yet")
				return nil
			}
			if err != nil {
				return err
			}

			printQuota(cmd, state, time.Now())
			return nil
		},
	}

	cmd.Flags().String("redis-addr", "", "Redis address")
	return cmd
}

func printQuota(cmd *cobra.Command, s *ratelimit.State, now time.Time) {
	w := cmd.OutOrStdout()

	resource := s.Resource
	if resource == "" {
		resource = "unknown"
	}
	fmt.Fprintf(w, "resource:  %s\n", resource)
	fmt.Fprintf(w, "remaining: %d/%d\n", s.Remaining, s.Limit)

	if s.ResetAt.After(now) {
		fmt.Fprintf(w, "reset:     %s (in %s)\n", s.ResetAt.Format(time.RFC3339), s.ResetAt.Sub(now).Round(time.Second))
	} else {
		fmt.Fprintf(w, "reset:     %s (passed)\n", s.ResetAt.Format(time.RFC3339))
	}

	fmt.Fprintf(w, "observed:  %s\n", s.LastUpdate.Format(time.RFC3339))

	switch {
	case s.IsStale(staleAfter, now):
		fmt.Fprintln(w, "status:    stale")
	case s.Exhausted() && s.ResetAt.After(now):
		fmt.Fprintf(w, "status:    exhausted, wait %s\n", s.WaitDuration(now))
	case s.NeedsThrottling():
		fmt.Fprintln(w, "status:    low")
	default:
		fmt.Fprintln(w, "status:    ok")
	}
}
