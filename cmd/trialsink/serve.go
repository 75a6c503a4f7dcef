package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/trialsink/delivery"
	"github.com/m-mizutani/trialsink/internal/resultserver"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			Value:   ":18901",
			Sources: cli.EnvVars("TRIALSINK_SERVE_ADDR"),
			Usage:   "Server listen address",
		},
	}

	return &cli.Command{
		Name:  "serve",
		Usage: "Run a local stand-in for the Pavlovia sessions API that stores uploads locally",
		Flags: append(flags, exportFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			logger := loggerFrom(cmd)

			store, cleanup, err := buildDeliverer(ctx, cfg, delivery.WithLogger(logger))
			defer cleanup()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := resultserver.New(
				resultserver.WithAddr(cmd.String("addr")),
				resultserver.WithDeliverer(store),
				resultserver.WithLogger(logger),
			)
			return srv.Start(ctx)
		},
	}
}
