// Package logging wires structured slog output for both command-line
// entrypoints via hermannm.dev/devlog, the same handler go-fdo-server
// installs in its root command's init().
package logging

import (
	"log/slog"
	"os"

	"hermannm.dev/devlog"
)

// levelFromString maps a config log-level string to a slog.Level.
func levelFromString(s string) slog.Level {
	switch s {
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

// Init installs a devlog-backed handler as the process-wide default
// logger at the given level, writing to stdout.
func Init(level string) {
	var lv slog.LevelVar
	lv.Set(levelFromString(level))
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{
		Level: &lv,
	})))
}
