package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/trialsink"
	"github.com/m-mizutani/trialsink/delivery"
	"github.com/m-mizutani/trialsink/internal/trialschema"
	"github.com/m-mizutani/trialsink/pavlovia"
	"github.com/urfave/cli/v3"
)

func saveCommand() *cli.Command {
	flags := []cli.Flag{
		trialsFlag(),
		&cli.StringFlag{
			Name:    "participant",
			Aliases: []string{"p"},
			Sources: cli.EnvVars("TRIALSINK_PARTICIPANT", "PROLIFIC_PID"),
			Usage:   "Participant ID used in file names and sent when the session is opened",
		},
		&cli.StringFlag{
			Name:    "project-id",
			Sources: cli.EnvVars("TRIALSINK_PROJECT_ID"),
			Usage:   "Pavlovia project ID; remote saving is disabled without it",
		},
		&cli.StringFlag{
			Name:    "completion-url",
			Sources: cli.EnvVars("TRIALSINK_COMPLETION_URL"),
			Usage:   "URL printed after a successful save",
		},
		&cli.StringFlag{
			Name:    "origin",
			Sources: cli.EnvVars("TRIALSINK_ORIGIN"),
			Usage:   "URL the experiment is served from; remote saving requires a pavlovia.org host",
		},
		&cli.StringFlag{
			Name:    "base-url",
			Value:   pavlovia.DefaultBaseURL,
			Sources: cli.EnvVars("TRIALSINK_BASE_URL"),
			Usage:   "Pavlovia API root",
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Value:   pavlovia.DefaultTimeout,
			Sources: cli.EnvVars("TRIALSINK_TIMEOUT"),
			Usage:   "Timeout of each Pavlovia request (0 disables)",
		},
		&cli.BoolFlag{
			Name:    "stdout",
			Sources: cli.EnvVars("TRIALSINK_STDOUT"),
			Usage:   "Also try writing the table to stdout when every other local destination fails",
		},
		columnsFlag(),
	}

	return &cli.Command{
		Name:  "save",
		Usage: "Save trials to Pavlovia, falling back to local destinations",
		Flags: append(flags, exportFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			logger := loggerFrom(cmd)

			log, err := loadTrialLog(cmd.String("trials"))
			if err != nil {
				return err
			}

			client := pavlovia.New(
				pavlovia.WithBaseURL(cfg.BaseURL),
				pavlovia.WithTimeout(cfg.Timeout),
				pavlovia.WithHostCheck(pavlovia.HostedBy(cfg.Origin)),
				pavlovia.WithLogger(logger),
			)
			if err := client.Open(ctx, pavlovia.Config{
				ProjectID:   cfg.ProjectID,
				Participant: cfg.Participant,
			}); err != nil {
				logger.Warn("remote saving unavailable", slog.Any("error", err))
			}

			local, cleanup, err := buildDeliverer(ctx, cfg, delivery.WithLogger(logger))
			defer cleanup()
			if err != nil {
				return err
			}
			if cmd.Bool("stdout") {
				local = delivery.NewFallback([]trialsink.Deliverer{
					local,
					delivery.NewWriter(cmd.Root().Writer),
				}, delivery.WithLogger(logger))
			}

			saver := trialsink.NewSaver(log, local,
				trialsink.WithRemote(client),
				trialsink.WithProjector(trialsink.NewProjector(
					trialsink.WithColumnPolicy(cfg.Columns),
					trialsink.WithProjectorLogger(logger),
				)),
				trialsink.WithLogger(logger),
			)

			res, err := saver.Save(ctx, cfg.Participant)
			if err != nil {
				return goerr.Wrap(err, "failed to save trials")
			}

			w := cmd.Root().Writer
			if !res.Outcome.Saved() {
				_, _ = fmt.Fprintln(w, "no trials to save")
				return nil
			}

			_, _ = fmt.Fprintf(w, "saved %d rows as %s (%s)\n", res.Rows, res.Filename, res.Outcome)
			if cfg.CompletionURL != "" {
				_, _ = fmt.Fprintf(w, "completion: %s\n", cfg.CompletionURL)
			}
			return nil
		},
	}
}

func trialsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "trials",
		Aliases:  []string{"t"},
		Required: true,
		Sources:  cli.EnvVars("TRIALSINK_TRIALS"),
		Usage:    "Trial records file (JSON array or JSON Lines)",
	}
}

func loadTrialLog(path string) (*trialsink.TrialLog, error) {
	validator, err := trialschema.New()
	if err != nil {
		return nil, err
	}

	trials, err := validator.LoadFile(path)
	if err != nil {
		return nil, err
	}

	log := trialsink.NewTrialLog()
	for _, trial := range trials {
		log.Append(trial)
	}
	return log, nil
}
