// Package logging provides structured logging with file output support.
// It uses environment variables for configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

// Environment variables read by NewLogger.
const (
	EnvLevel  = "TBD_LOG_LEVEL"
	EnvPrefix = "TBD_LOG_PREFIX"
	EnvToFile = "TBD_LOG_TO_FILE"
	EnvDir    = "TBD_LOG_DIR"
)

// LoggerCloser wraps a logger and provides a Close method for cleanup
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
	// Path is the log file, empty when logging to a stream.
	Path string
}

// Close closes the underlying writer if it's closeable
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// ParseLevel maps a level name to a log level. Unknown names are info.
func ParseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// NewLoggerWithWriter creates a new logger with the provided writer
func NewLoggerWithWriter(w io.Writer) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	lg.SetLevel(ParseLevel(os.Getenv(EnvLevel)))

	prefix := os.Getenv(EnvPrefix)
	if prefix == "" {
		prefix = "tbd "
	}

	var closer io.Closer
	if c, ok := w.(io.Closer); ok && w != os.Stderr && w != os.Stdout {
		closer = c
	}

	return &LoggerCloser{
		Logger: lg.WithPrefix(prefix),
		closer: closer,
	}
}

// NewLogger creates a new logger based on environment variables
// TBD_LOG_LEVEL: debug, info, warn, error (default: info)
// TBD_LOG_PREFIX: prefix for log messages (default: "tbd ")
// TBD_LOG_TO_FILE: when set to "1", logs to a timestamped file instead of stderr
// TBD_LOG_DIR: directory for that file (default: the working directory)
func NewLogger() *LoggerCloser {
	output := io.Writer(os.Stderr)

	var path string
	if os.Getenv(EnvToFile) == "1" {
		timestamp := time.Now().Format("20060102-150405")
		name := filepath.Join(os.Getenv(EnvDir), fmt.Sprintf("tbd-%s-debug.log", timestamp))

		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err == nil {
			output, path = f, name
		}
		// If file creation fails, fall back to stderr
	}

	lc := NewLoggerWithWriter(output)
	lc.Path = path
	return lc
}

// IsDebug returns true if debug logging is enabled
func IsDebug() bool {
	return os.Getenv(EnvLevel) == "debug"
}
