package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/rest-harvester/pkg/client"
	"github.com/Sternrassler/rest-harvester/pkg/pagination"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides (HARVESTER_TOKEN, HARVESTER_REDIS_ADDR, ...).
const envPrefix = "HARVESTER"

// Config is the resolved CLI configuration.
type Config struct {
	Token          string
	APIVersion     string
	UserAgent      string
	RequestTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration

	LogLevel  string
	LogPretty bool

	PageSize          int
	MaxPages          int
	MaxRetries        int
	BackoffFactor     float64
	MaxRateLimitWaits int
}

// setDefaults registers every key so that AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("token", "")
	v.SetDefault("api_version", client.DefaultAPIVersion)
	v.SetDefault("user_agent", client.DefaultUserAgent)
	v.SetDefault("request_timeout", client.DefaultRequestTimeout)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", time.Duration(0))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("fetch.page_size", pagination.DefaultPageSize)
	v.SetDefault("fetch.max_pages", pagination.DefaultMaxPages)
	v.SetDefault("fetch.max_retries", pagination.DefaultMaxRetries)
	v.SetDefault("fetch.backoff_factor", pagination.DefaultBackoffFactor)
	v.SetDefault("fetch.max_rate_limit_waits", 0)
}

// newViper loads .env (when present) into the process environment and
// returns a viper instance reading HARVESTER_* variables and, when
// configPath is set, a config file.
func newViper(configPath, envFile string) (*viper.Viper, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

// configFrom resolves the typed configuration from v.
func configFrom(v *viper.Viper) *Config {
	cfg := &Config{
		Token:          v.GetString("token"),
		APIVersion:     v.GetString("api_version"),
		UserAgent:      v.GetString("user_agent"),
		RequestTimeout: v.GetDuration("request_timeout"),

		RedisAddr:     v.GetString("redis.addr"),
		RedisPassword: v.GetString("redis.password"),
		RedisDB:       v.GetInt("redis.db"),
		SnapshotTTL:   v.GetDuration("redis.ttl"),

		LogLevel:  v.GetString("log.level"),
		LogPretty: v.GetBool("log.pretty"),

		PageSize:          v.GetInt("fetch.page_size"),
		MaxPages:          v.GetInt("fetch.max_pages"),
		MaxRetries:        v.GetInt("fetch.max_retries"),
		BackoffFactor:     v.GetFloat64("fetch.backoff_factor"),
		MaxRateLimitWaits: v.GetInt("fetch.max_rate_limit_waits"),
	}

	// Fall back to the conventional variable used by GitHub tooling.
	if cfg.Token == "" {
		cfg.Token = os.Getenv("GITHUB_TOKEN")
	}

	return cfg
}

// clientConfig builds the transport configuration.
func (c *Config) clientConfig() client.Config {
	cfg := client.DefaultConfig(c.Token)
	if c.APIVersion != "" {
		cfg.APIVersion = c.APIVersion
	}
	if c.UserAgent != "" {
		cfg.UserAgent = c.UserAgent
	}
	if c.RequestTimeout > 0 {
		cfg.RequestTimeout = c.RequestTimeout
	}
	return cfg
}

// request builds the fetch descriptor for rawURL from the configured defaults.
func (c *Config) request(rawURL string, params map[string]string, label string) pagination.Request {
	req := pagination.DefaultRequest(rawURL)
	req.Params = params
	req.Label = label
	req.PageSize = c.PageSize
	req.MaxPages = c.MaxPages
	req.MaxRetries = c.MaxRetries
	req.BackoffFactor = c.BackoffFactor
	req.MaxRateLimitWaits = c.MaxRateLimitWaits
	return req
}
