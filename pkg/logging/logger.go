// Package logging configures zerolog for reqflow and hands out component
// loggers.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

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

// Component names used in the "component" field.
const (
	ComponentClient     = "reqflow-client"
	ComponentDispatcher = "dispatcher"
	ComponentQueue      = "task-queue"
	ComponentTransport  = "http-transport"
	ComponentRateLimit  = "rate-limit"
	ComponentServer     = "proxy-server"
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

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel validates a level name given on the command line or in a
// config file.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: request flow
//   - Cache hit/miss/store (key, ttl)
//   - Joined pending tasks (key)
//   - Outbound requests (method, url)
//   - Error budget updates while healthy
//
// Info: lifecycle
//   - Server startup/shutdown
//   - Proxied requests (method, path, status)
//
// Warn: failures the caller sees as a Response or error
//   - Transport errors (status, error_class)
//   - Transform failures (parseError)
//   - Error budget throttling
//
// Error: conditions requiring attention
//   - Ambiguous parser rules in debug mode
//   - Task panics
//   - Critical error budget blocks
//
// Context Fields:
//   - component: emitting component (see Component constants)
//   - key: request key (url plus sorted params)
//   - url, method: request target
//   - status: transport status text
//   - error_class: client, server, rate_limit, network, decode
//   - errors_remaining: upstream error budget
//   - ttl: cache entry TTL
//   - request_id: proxy request ID
