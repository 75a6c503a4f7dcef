package main

import (
	"context"
	"fmt"

	"github.com/m-mizutani/trialsink"
	"github.com/urfave/cli/v3"
)

func tableCommand() *cli.Command {
	return &cli.Command{
		Name:  "table",
		Usage: "Print trials as the exported CSV table",
		Flags: []cli.Flag{
			trialsFlag(),
			columnsFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			log, err := loadTrialLog(cmd.String("trials"))
			if err != nil {
				return err
			}

			projector := trialsink.NewProjector(
				trialsink.WithColumnPolicy(cfg.Columns),
				trialsink.WithProjectorLogger(loggerFrom(cmd)),
			)
			table := projector.ToTable(log.All())
			if table == nil {
				return nil
			}

			w := cmd.Root().Writer
			if err := table.Encode(w); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(w)
			return nil
		},
	}
}
