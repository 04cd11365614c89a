// Package applog initialises the global slog logger for the CLI.
// Call Init once at startup; all other packages use log/slog directly.
package applog

import (
	"io"
	"log/slog"
	"os"
)

// Init sets up the global slog logger. Structured text logs go to stderr
// so command output on stdout stays machine-readable; when logPath is
// non-empty the same stream is appended to that file, which the watch
// command points next to the database. If debug is true, the minimum log
// level is Debug; otherwise Info.
func Init(debug bool, logPath string) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	writers := []io.Writer{os.Stderr}
	if logPath != "" {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			writers = append(writers, f)
		}
	}

	h := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(h))
}
