package main

import (
	"io"
	"log/slog"

	"github.com/urfave/cli/v3"
)

// newLogger builds a logger from --log-level and --log-format. Unknown levels fall back to
// info, unknown formats to text.
func newLogger(levelStr, formatStr string, w io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func loggerFrom(cmd *cli.Command) *slog.Logger {
	return newLogger(cmd.String("log-level"), cmd.String("log-format"), cmd.Root().ErrWriter)
}
