// Package logging sets up the process-wide zerolog logger and hands out
// per-component loggers for the cache, coalescer, transform cache and server.
//
// Output is JSON on stderr unless Pretty is set. Components never build their
// own root logger; they take a zerolog.Logger in their constructor, and main
// fills it from NewLogger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a level name as written in config files and LOG_LEVEL.
type LogLevel string

// Accepted level names.
const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

var levels = map[string]zerolog.Level{
	"":                 zerolog.InfoLevel,
	string(LevelDebug): zerolog.DebugLevel,
	string(LevelInfo):  zerolog.InfoLevel,
	string(LevelWarn):  zerolog.WarnLevel,
	"warning":          zerolog.WarnLevel,
	string(LevelError): zerolog.ErrorLevel,
}

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches to a console writer for local runs.
	Pretty bool

	// Output defaults to os.Stderr when nil.
	Output io.Writer
}

// DefaultConfig logs JSON at info level to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup installs the global logger used by NewLogger and returns it.
func Setup(cfg Config) zerolog.Logger {
	level, _ := ParseLevel(string(cfg.Level))
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}

// ParseLevel maps a level name to zerolog.Level. An empty name means info.
// Unknown names also yield info, with ok false so config validation can
// reject them.
func ParseLevel(name string) (level zerolog.Level, ok bool) {
	level, ok = levels[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return zerolog.InfoLevel, false
	}
	return level, true
}

// NewLogger returns a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Levels used across the service:
//
// Debug: per-request cache traffic. "Cache hit", "Cache miss", "Cached result",
// sweeper passes, coalesced waiters joining a run, requests rejected with 4xx.
//
// Info: state changes an operator cares about. "Namespace invalidated" with the
// new version, "Cache cleared" from the admin endpoint, schema migration,
// sweeper and server start/stop.
//
// Warn: the request was still answered. A cache call that panicked and was
// bypassed, a cached value of the wrong type, "Variant computation failed -
// serving source", response write errors.
//
// Error: the request failed. "Backend computation timed out" (504), producer
// and database failures (500), a failing health check.
//
// Common fields: component, key, namespace, version, ttl, etag, waiters,
// request_id (from hlog).
