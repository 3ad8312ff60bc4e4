// Package logging configures structured zerolog output for the harvester.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger. Records go to stderr so that
// stdout stays free for command output.
func Setup(cfg Config) zerolog.Logger {
	level, err := ParseLevel(string(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.DurationFieldUnit = time.Second

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to a zerolog.Level.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", level)
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Single requests (url, status, duration)
//   - Short page detection
//   - Quota snapshots mirrored to Redis
//
// Info: Normal operation events
//   - Fetch start and completion
//   - Each accumulated page (page, items, total)
//   - Snapshot written or saved
//
// Warn: Conditions the fetch recovers from
//   - Quota exhausted, waiting for reset
//   - Failed attempts before a back-off
//   - Quota below the warning threshold
//
// Error: Terminal failures
//   - Fetch aborted (authentication, HTTP status, malformed body, retries exhausted)
//   - Store failures
//   - Configuration errors
//
// Context Fields:
//   - component: Package emitting the record
//   - label: Fetch label (defaults to the URL)
//   - url: Collection URL
//   - page: 1-based page number
//   - attempt: 1-based attempt number within a page
//   - status: HTTP status code
//   - error_class: Error classification (client, server, rate_limit, network, auth, malformed)
//   - wait: Wait before the next attempt, in seconds
//   - items: Records on the current page
//   - total: Records accumulated so far
