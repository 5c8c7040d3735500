// Package logging builds the process-wide structured logger: JSON records to
// stdout, mirrored to a size-rotated file so a crash still leaves history on
// disk.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the on-disk log copy.
const (
	logMaxSizeMB  = 5
	logMaxBackups = 3
	logMaxAgeDays = 28
)

// New creates a JSON slog.Logger at the given level. When file is non-empty
// the same stream is also written to a rotating log file; if the log
// directory cannot be created the logger falls back to stdout only.
func New(level, file string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var w io.Writer = os.Stdout
	if file != "" {
		if dir := filepath.Dir(file); dir == "." || os.MkdirAll(dir, 0o755) == nil {
			w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
				Filename:   file,
				MaxSize:    logMaxSizeMB,
				MaxBackups: logMaxBackups,
				MaxAge:     logMaxAgeDays,
				Compress:   true,
			})
		}
	}

	return slog.New(slog.NewJSONHandler(w, opts))
}

// ParseLevel maps a configuration string to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
