package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := loadDotEnv(os.Getenv("TRIALSINK_ENV_FILE")); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "trialsink",
		Usage: "Export trial results of a decision experiment as CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Sources: cli.EnvVars("TRIALSINK_LOG_LEVEL"),
				Usage:   "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Sources: cli.EnvVars("TRIALSINK_LOG_FORMAT"),
				Usage:   "Log format (text, json)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Sources: cli.EnvVars("TRIALSINK_CONFIG"),
				Usage:   "HCL config file (must end in .hcl)",
			},
		},
		Commands: []*cli.Command{
			saveCommand(),
			tableCommand(),
			listCommand(),
			serveCommand(),
		},
	}
}

// loadDotEnv loads environment variables from path, or from ./.env when path is empty. A
// missing default file is not an error.
func loadDotEnv(path string) error {
	if path != "" {
		return godotenv.Load(path)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
