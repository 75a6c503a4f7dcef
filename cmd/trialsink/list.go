package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/m-mizutani/trialsink/delivery"
	"github.com/urfave/cli/v3"
)

func listCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:  "page-size",
			Value: delivery.DefaultPageSize,
			Usage: "Number of exports per page",
		},
		&cli.StringFlag{
			Name:  "page-token",
			Usage: "Token of the page to list, printed by the previous call",
		},
	}

	return &cli.Command{
		Name:  "list",
		Usage: "List exported CSV files in a directory, bucket or SQLite archive",
		Flags: append(flags, exportFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			lister, cleanup, err := buildLister(ctx, cfg)
			defer cleanup()
			if err != nil {
				return err
			}

			resp, err := lister.List(ctx, cmd.Int("page-size"), cmd.String("page-token"))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NAME\tSIZE\tUPDATED")
			for _, e := range resp.Entries {
				_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", e.Name, e.Size, e.UpdatedAt.Format(time.RFC3339))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if resp.NextPageToken != "" {
				_, _ = fmt.Fprintf(cmd.Root().Writer, "next page token: %s\n", resp.NextPageToken)
			}
			return nil
		},
	}
}
