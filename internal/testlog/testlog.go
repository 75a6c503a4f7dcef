// Package testlog provides the logger used by tests. Output is discarded unless
// TRIALSINK_TEST_LOG=1 is set.
package testlog

import (
	"io"
	"log/slog"
	"os"
)

var logger *slog.Logger

func init() {
	logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	if os.Getenv("TRIALSINK_TEST_LOG") == "1" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
}

// Logger returns the test logger.
func Logger() *slog.Logger {
	return logger
}
