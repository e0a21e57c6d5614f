// Package logutil provides the structured diagnostic logging idev uses
// alongside its styled console output. Runner command lines, env
// resolution and history bookkeeping flow through here; user-facing
// status lines belong to the console package.
package logutil

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// EnvLogLevel overrides the default log level when set.
const EnvLogLevel = "IDEV_LOG_LEVEL"

// Options configures a logger.
type Options struct {
	// Level is the minimum level (debug, info, warn, error).
	Level string
	// Output defaults to os.Stderr.
	Output io.Writer
	// Prefix names the component emitting the entries.
	Prefix string
}

// New builds a logger with the given options.
func New(opts Options) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return log.NewWithOptions(out, log.Options{
		Level:  parseLevel(opts.Level),
		Prefix: opts.Prefix,
	})
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

var defaultLogger = New(Options{Level: os.Getenv(EnvLogLevel)})

// Default returns the package-level logger.
func Default() *log.Logger {
	return defaultLogger
}

// SetDefault replaces the package-level logger, returning the previous one.
func SetDefault(logger *log.Logger) *log.Logger {
	prev := defaultLogger
	defaultLogger = logger
	return prev
}

// SetLevel adjusts the package-level logger's minimum level.
func SetLevel(level string) {
	defaultLogger.SetLevel(parseLevel(level))
}

// Debug logs a debug message with key-value pairs.
func Debug(msg any, keyvals ...any) {
	defaultLogger.Debug(msg, keyvals...)
}

// Info logs an info message with key-value pairs.
func Info(msg any, keyvals ...any) {
	defaultLogger.Info(msg, keyvals...)
}

// Warn logs a warning message with key-value pairs.
func Warn(msg any, keyvals ...any) {
	defaultLogger.Warn(msg, keyvals...)
}

// Error logs an error message with key-value pairs.
func Error(msg any, keyvals ...any) {
	defaultLogger.Error(msg, keyvals...)
}

// WithPrefix returns a copy of the package-level logger tagged with a
// component prefix.
func WithPrefix(prefix string) *log.Logger {
	return defaultLogger.WithPrefix(prefix)
}
