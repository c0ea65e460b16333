package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/snapdiff/internal/config"
	"github.com/JonMunkholm/snapdiff/internal/logging"
)

// rootOptions is shared by every subcommand. cfg is loaded before any
// subcommand runs.
type rootOptions struct {
	cfg      *config.Config
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "snapdiff",
		Short: "Compare consecutive snapshots of a table",
		Long: `snapdiff compares an ordered series of table snapshots (CSV files or
PostgreSQL tables) and reports, for every consecutive pair, which key values
were added, removed or changed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Logging.Level = opts.logLevel
			}
			logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			opts.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from LOG_LEVEL)")

	root.AddCommand(
		newCompareCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the snapdiff version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "snapdiff "+version)
		},
	}
}
