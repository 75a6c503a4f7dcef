package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/trialsink"
	"github.com/m-mizutani/trialsink/delivery"
	"github.com/urfave/cli/v3"
)

// fileConfig is the layout of the HCL config file:
//
//	project_id     = "507152"
//	completion_url = "https://app.prolific.com/submissions/complete?cc=XXXX"
//	origin         = "https://run.pavlovia.org/lab/task/"
//
//	export {
//	  dir    = "./exports"
//	  sqlite = "./exports/archive.db"
//	}
type fileConfig struct {
	ProjectID     string        `hcl:"project_id,optional"`
	CompletionURL string        `hcl:"completion_url,optional"`
	Origin        string        `hcl:"origin,optional"`
	BaseURL       string        `hcl:"base_url,optional"`
	Timeout       string        `hcl:"timeout,optional"`
	Columns       string        `hcl:"columns,optional"`
	Export        *exportConfig `hcl:"export,block"`
}

type exportConfig struct {
	Dir    string `hcl:"dir,optional"`
	Bucket string `hcl:"bucket,optional"`
	Prefix string `hcl:"prefix,optional"`
	SQLite string `hcl:"sqlite,optional"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	var cfg fileConfig
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to load config file", goerr.V("path", path))
	}
	if cfg.Export == nil {
		cfg.Export = &exportConfig{}
	}
	return &cfg, nil
}

// config is the effective configuration. Flags and environment variables take precedence over
// the config file.
type config struct {
	Participant   string
	ProjectID     string
	CompletionURL string
	Origin        string
	BaseURL       string
	Timeout       time.Duration
	Columns       trialsink.ColumnPolicy

	Dir    string
	Bucket string
	Prefix string
	SQLite string
}

func resolveConfig(cmd *cli.Command) (*config, error) {
	file := &fileConfig{Export: &exportConfig{}}
	if path := cmd.String("config"); path != "" {
		var err error
		if file, err = loadFileConfig(path); err != nil {
			return nil, err
		}
	}

	cfg := &config{
		Participant:   lookupString(cmd, "participant", ""),
		ProjectID:     lookupString(cmd, "project-id", file.ProjectID),
		CompletionURL: lookupString(cmd, "completion-url", file.CompletionURL),
		Origin:        lookupString(cmd, "origin", file.Origin),
		BaseURL:       lookupString(cmd, "base-url", file.BaseURL),
		Dir:           lookupString(cmd, "dir", file.Export.Dir),
		Bucket:        lookupString(cmd, "bucket", file.Export.Bucket),
		Prefix:        lookupString(cmd, "prefix", file.Export.Prefix),
		SQLite:        lookupString(cmd, "sqlite", file.Export.SQLite),
	}

	cfg.Timeout = cmd.Duration("timeout")
	if !cmd.IsSet("timeout") && file.Timeout != "" {
		d, err := time.ParseDuration(file.Timeout)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid timeout in config file", goerr.V("timeout", file.Timeout))
		}
		cfg.Timeout = d
	}

	policy, err := parseColumnPolicy(lookupString(cmd, "columns", file.Columns))
	if err != nil {
		return nil, err
	}
	cfg.Columns = policy

	return cfg, nil
}

// lookupString returns the flag value when the flag is set or fallback is empty. Commands that
// do not define the flag get fallback.
func lookupString(cmd *cli.Command, name, fallback string) string {
	if !hasFlag(cmd, name) {
		return fallback
	}
	if cmd.IsSet(name) || fallback == "" {
		return cmd.String(name)
	}
	return fallback
}

func hasFlag(cmd *cli.Command, name string) bool {
	for _, f := range cmd.Flags {
		for _, n := range f.Names() {
			if n == name {
				return true
			}
		}
	}
	return false
}

func parseColumnPolicy(s string) (trialsink.ColumnPolicy, error) {
	switch s {
	case "", trialsink.ColumnsFromFirstRow.String():
		return trialsink.ColumnsFromFirstRow, nil
	case trialsink.ColumnsFromAllRows.String():
		return trialsink.ColumnsFromAllRows, nil
	default:
		return 0, goerr.New("unknown column policy", goerr.V("columns", s))
	}
}

func exportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "dir",
			Sources: cli.EnvVars("TRIALSINK_DIR"),
			Usage:   "Local directory for exported CSV files",
		},
		&cli.StringFlag{
			Name:    "bucket",
			Sources: cli.EnvVars("TRIALSINK_BUCKET"),
			Usage:   "Google Cloud Storage bucket for exported CSV files",
		},
		&cli.StringFlag{
			Name:    "prefix",
			Sources: cli.EnvVars("TRIALSINK_PREFIX"),
			Usage:   "Google Cloud Storage object prefix",
		},
		&cli.StringFlag{
			Name:    "sqlite",
			Sources: cli.EnvVars("TRIALSINK_SQLITE"),
			Usage:   "SQLite archive database file",
		},
	}
}

func columnsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "columns",
		Sources: cli.EnvVars("TRIALSINK_COLUMNS"),
		Usage:   fmt.Sprintf("Questionnaire column policy (%s, %s)", trialsink.ColumnsFromFirstRow, trialsink.ColumnsFromAllRows),
	}
}

// buildDeliverer returns the local delivery chain: bucket, then SQLite archive, then directory.
// Without any destination the current directory is used. The returned function releases the
// opened clients.
func buildDeliverer(ctx context.Context, cfg *config, opts ...delivery.FallbackOption) (trialsink.Deliverer, func(), error) {
	var (
		chain   []trialsink.Deliverer
		closers []func() error
	)
	cleanup := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	if cfg.Bucket != "" {
		cs, err := delivery.NewCloudStorage(ctx, cfg.Bucket, delivery.WithPrefix(cfg.Prefix))
		if err != nil {
			return nil, cleanup, err
		}
		chain = append(chain, cs)
		closers = append(closers, cs.Close)
	}

	if cfg.SQLite != "" {
		db, err := delivery.OpenSQLite(ctx, cfg.SQLite)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		chain = append(chain, db)
		closers = append(closers, db.Close)
	}

	if cfg.Dir != "" || len(chain) == 0 {
		dir := cfg.Dir
		if dir == "" {
			dir = "."
		}
		chain = append(chain, delivery.NewFile(dir))
	}

	return delivery.NewFallback(chain, opts...), cleanup, nil
}

// buildLister returns the single listing source selected by --dir, --bucket or --sqlite.
func buildLister(ctx context.Context, cfg *config) (delivery.Lister, func(), error) {
	selected := 0
	for _, v := range []string{cfg.Dir, cfg.Bucket, cfg.SQLite} {
		if v != "" {
			selected++
		}
	}
	if selected != 1 {
		return nil, func() {}, goerr.New("exactly one of --dir, --bucket or --sqlite must be specified")
	}

	switch {
	case cfg.Dir != "":
		return delivery.NewFile(cfg.Dir), func() {}, nil

	case cfg.Bucket != "":
		cs, err := delivery.NewCloudStorage(ctx, cfg.Bucket, delivery.WithPrefix(cfg.Prefix))
		if err != nil {
			return nil, func() {}, err
		}
		return cs, func() { _ = cs.Close() }, nil

	default:
		db, err := delivery.OpenSQLite(ctx, cfg.SQLite)
		if err != nil {
			return nil, func() {}, err
		}
		return db, func() { _ = db.Close() }, nil
	}
}
