package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/cleaner/pkg/cleaner"
	"mercator-hq/cleaner/pkg/cli"
	"mercator-hq/cleaner/pkg/config"
)

var runFlags struct {
	dryRun   bool
	live     bool
	tables   []string
	format   string
	progress bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Clean the configured tables once",
	Long: `Run one cleanup pass over the configured root tables.

Each table is processed in batches of batch_size root rows. A batch is one
transaction: dependent rows are deleted (or counted) children first, the
root rows last, then the transaction commits and archived rows are written.

Examples:
  # Dry run with the default config
  cleaner run

  # Delete for real
  cleaner run --live

  # One table, JSON report
  cleaner run --table public.alert --format json

  # Print a line per batch on stderr
  cleaner run --progress`,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "count rows without deleting (overrides dry_run)")
	runCmd.Flags().BoolVar(&runFlags.live, "live", false, "delete rows (overrides dry_run)")
	runCmd.Flags().StringSliceVarP(&runFlags.tables, "table", "t", nil, "only clean these root tables")
	runCmd.Flags().StringVarP(&runFlags.format, "format", "f", "text", "report format (text, json, csv)")
	runCmd.Flags().BoolVar(&runFlags.progress, "progress", false, "print batch progress to stderr")
	runCmd.MarkFlagsMutuallyExclusive("dry-run", "live")
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	switch {
	case runFlags.dryRun && runFlags.live:
		return cli.NewConfigError("dry-run", "--dry-run and --live are mutually exclusive")
	case runFlags.dryRun:
		cfg.DryRun = config.Bool(true)
	case runFlags.live:
		cfg.DryRun = config.Bool(false)
	}

	format, err := cli.ParseOutputFormat(runFlags.format)
	if err != nil {
		return err
	}
	tables, err := selectTables(cfg.Tables, runFlags.tables)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, cancel := cli.SetupSignalHandler()
	defer cancel()

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer db.Close()

	collector := newCollector(cfg)
	recorders := []cleaner.Recorder{collector}
	if runFlags.progress {
		recorders = append(recorders, cli.NewBatchProgress(cmd.ErrOrStderr()))
	}
	c := newCleaner(db, cfg, logger).WithRecorder(cleaner.MultiRecorder(recorders...))

	summary, runErr := c.Run(ctx, tables)

	collector.RecordRun(summary, runErr)
	pushCtx, pushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pushCancel()
	if err := collector.Push(pushCtx); err != nil {
		logger.Warn("Failed to push metrics", "error", err)
	}

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), cli.NewReport(summary)); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if runErr != nil {
		return cli.NewCommandError("run", runErr)
	}
	if summary.Interrupted {
		return cli.ErrInterrupted
	}
	return nil
}
