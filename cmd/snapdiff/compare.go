package main

import (
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/snapdiff/internal/core"
	"github.com/JonMunkholm/snapdiff/internal/source"
)

type compareOptions struct {
	key     string
	sort    string
	formats []string
	sinks   []string
	out     string
	title   string
	noColor bool
}

func newCompareCmd(root *rootOptions) *cobra.Command {
	opts := &compareOptions{}

	cmd := &cobra.Command{
		Use:   "compare SOURCE SOURCE [SOURCE...]",
		Short: "Compare consecutive snapshots and write a report",
		Long: `Compare loads every source, orders them (natural order of their base
names by default) and compares each consecutive pair grouped by the key column.

Sources are CSV paths, csv:<path>, or postgres:<schema.table> when
DATABASE_URL is set.`,
		Example: `  snapdiff compare bom_v1.csv bom_v2.csv bom_v10.csv
  snapdiff compare --key "Part Location" --sink stdout a.csv b.csv
  snapdiff compare --format text,html --out ./out a.csv b.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd, root, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.key, "key", "k", "", "Key column shared by every snapshot (default from KEY_COLUMN)")
	f.StringVar(&opts.sort, "sort", "", "Source order: natural, name or none (default from COMPARE_SORT)")
	f.StringSliceVarP(&opts.formats, "format", "f", nil, "Report formats: text, json, yaml, html")
	f.StringSliceVar(&opts.sinks, "sink", nil, "Report sinks: file, stdout, sqlite, postgres")
	f.StringVarP(&opts.out, "out", "o", "", "Directory for file reports (default: reports/ next to the first source)")
	f.StringVar(&opts.title, "title", "", "Report title")
	f.BoolVar(&opts.noColor, "no-color", false, "Disable colored console output")

	return cmd
}

func runCompare(cmd *cobra.Command, root *rootOptions, opts *compareOptions, args []string) error {
	cfg := root.cfg
	flags := cmd.Flags()

	if flags.Changed("key") {
		cfg.Compare.KeyColumn = opts.key
	}
	if flags.Changed("sort") {
		cfg.Compare.Sort = opts.sort
	}
	if flags.Changed("format") {
		cfg.Report.Formats = opts.formats
	}
	if flags.Changed("sink") {
		cfg.Report.Sinks = opts.sinks
	}
	if flags.Changed("out") {
		cfg.Report.Dir = opts.out
	}
	if flags.Changed("title") {
		cfg.Report.Title = opts.title
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if len(args) < 2 {
		return core.ErrInsufficientSnapshots
	}
	sources, err := source.Order(args, cfg.Compare.Sort)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	var pool *pgxpool.Pool
	if needsDatabase(sources, cfg.Report.Sinks) {
		if pool, err = openPool(ctx, cfg.Database); err != nil {
			return err
		}
		defer pool.Close()
	}

	loader, _ := newLoader(cfg, pool, true)
	sinks, err := newSinks(ctx, cfg, pool, cmd.OutOrStdout(), !opts.noColor && !color.NoColor)
	if err != nil {
		return err
	}
	defer sinks.Close()

	svc := core.NewService(loader, sinks.sink, core.ServiceConfig{
		LoadConcurrency: cfg.Compare.LoadConcurrency,
	})

	slog.Debug("comparing snapshots", "sources", sources, "key", cfg.Compare.KeyColumn)

	result, err := svc.Run(ctx, core.RunRequest{
		Sources:   sources,
		KeyColumn: cfg.Compare.KeyColumn,
	})
	if err != nil {
		return err
	}

	if result.Location != "" && result.Location != "stdout" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Report written to", result.Location)
	}
	return nil
}
