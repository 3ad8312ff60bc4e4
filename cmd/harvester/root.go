package main

import (
	"context"
	"fmt"

	"github.com/Sternrassler/rest-harvester/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries state resolved by the root command to its subcommands.
type app struct {
	configPath string
	envFile    string

	v   *viper.Viper
	cfg *Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "harvester",
		Short:         "Harvest paginated REST collections",
		Long:          `harvester walks a paginated REST collection page by page, retrying failed requests with exponential back-off and waiting out exhausted rate-limit quotas, and stores the accumulated records as a JSON snapshot.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("harvester %s\ncommit: %s\nbuilt: %s\n", version, commit, date))

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (yaml, json or toml)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded into the environment when present")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("pretty", false, "human-readable console logs instead of JSON")

	root.AddCommand(newFetchCmd(a))
	root.AddCommand(newShowCmd(a))
	root.AddCommand(newQuotaCmd(a))
	root.AddCommand(newVersionCmd())

	return root
}

// init loads configuration, binds command flags and configures logging.
func (a *app) init(cmd *cobra.Command) error {
	v, err := newViper(a.configPath, a.envFile)
	if err != nil {
		return err
	}

	bindings := map[string]string{
		"log.level":                  "log-level",
		"log.pretty":                 "pretty",
		"fetch.page_size":            "page-size",
		"fetch.max_pages":            "max-pages",
		"fetch.max_retries":          "max-retries",
		"fetch.backoff_factor":       "backoff-factor",
		"fetch.max_rate_limit_waits": "max-rate-limit-waits",
		"redis.addr":                 "redis-addr",
		"redis.ttl":                  "redis-ttl",
	}
	for key, name := range bindings {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	a.v = v
	a.cfg = configFrom(v)

	if _, err := logging.ParseLevel(a.cfg.LogLevel); err != nil {
		return err
	}
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(a.cfg.LogLevel),
		Pretty: a.cfg.LogPretty,
		Output: cmd.ErrOrStderr(),
	})

	return nil
}

// redisClient connects to the configured Redis. Returns nil when no address
// is configured.
func (a *app) redisClient(ctx context.Context) (*redis.Client, error) {
	if a.cfg.RedisAddr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", a.cfg.RedisAddr, err)
	}
	return rdb, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "harvester %s (commit %s, built %s)\n", version, commit, date)
			return nil
		},
	}
}
