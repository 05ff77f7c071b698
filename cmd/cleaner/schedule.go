package main

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"

	"mercator-hq/cleaner/pkg/cli"
	"mercator-hq/cleaner/pkg/config"
	"mercator-hq/cleaner/pkg/scheduler"
	"mercator-hq/cleaner/pkg/telemetry/health"
)

var scheduleFlags struct {
	schedule string
	watch    bool
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run cleanups on a cron schedule",
	Long: `Keep running and clean the configured tables on a cron schedule.

Runs never overlap: a tick that fires while the previous run is still
going is skipped. When metrics are enabled the metrics endpoint, /health,
/ready and /version are served on metrics.listen_address.

With --watch the configuration file is reloaded when it changes. Table
settings, skip lists and dry_run take effect on the next run; database and
schedule changes need a restart.

Examples:
  cleaner schedule
  cleaner schedule --schedule "*/30 * * * *" --watch`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().StringVar(&scheduleFlags.schedule, "schedule", "", "cron expression (overrides schedule)")
	scheduleCmd.Flags().BoolVar(&scheduleFlags.watch, "watch", false, "reload the config file when it changes")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if scheduleFlags.schedule != "" {
		cfg.Schedule = scheduleFlags.schedule
	}
	if cfg.Schedule == "" {
		return cli.NewConfigError("schedule", "a cron expression is required")
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
		return cli.NewCommandError("schedule", err)
	}
	defer db.Close()

	store := config.NewStoreFromConfig(config.ResolvePath(cfgFile), cfg)
	collector := newCollector(cfg)

	checker := health.New(db, 0)

	job := func(ctx context.Context) error {
		current := store.Current()
		c := newCleaner(db, current, logger).WithRecorder(collector)
		summary, err := c.Run(ctx, current.Tables)
		collector.RecordRun(summary, err)
		checker.RecordRun(summary, err)
		logger.Info("Scheduled run summary",
			"run_id", summary.RunID,
			"dry_run", summary.DryRun,
			"tables", len(summary.Tables),
			"failed", summary.Failed(),
			"interrupted", summary.Interrupted,
		)
		return err
	}

	sched := scheduler.New(cfg.Schedule, job, logger.Logger)
	if err := sched.Start(ctx); err != nil {
		return cli.NewConfigError("schedule", err.Error())
	}
	defer sched.Stop()
	checker.TrackSchedule(sched)

	if scheduleFlags.watch {
		watcher := config.NewWatcher(store, 0, logger.Logger, func(c *config.Config) {
			logger.Info("Configuration reloaded", "tables", len(c.Tables), "dry_run", c.IsDryRun())
		})
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				logger.Error("Config watcher stopped", "error", err)
			}
		}()
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		health.Register(mux, checker, health.BuildInfo{
			Version:   Version,
			Commit:    GitCommit,
			BuildTime: BuildDate,
		})
		go func() {
			if err := collector.Serve(ctx, mux, logger.Logger); err != nil {
				logger.Error("Metrics server stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("Shutting down scheduler")
	return nil
}
