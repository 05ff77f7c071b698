package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/cleaner/pkg/archive"
	"mercator-hq/cleaner/pkg/cleaner"
	"mercator-hq/cleaner/pkg/cli"
	"mercator-hq/cleaner/pkg/config"
	"mercator-hq/cleaner/pkg/sqldb"
	"mercator-hq/cleaner/pkg/telemetry/logging"
	"mercator-hq/cleaner/pkg/telemetry/metrics"
)

// loadConfig reads, defaults and validates the configuration file.
func loadConfig() (*config.Config, error) {
	path := config.ResolvePath(cfgFile)
	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, cli.NewConfigError(path, err.Error())
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) (*logging.Logger, error) {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{
		Level:     level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
		Redact:    cfg.Logging.ShouldRedact(),
		File:      cfg.Logging.File,
		Writer:    w,
	})
	if err != nil {
		return nil, cli.NewConfigError("logging", err.Error())
	}
	return logger, nil
}

func openDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*sqldb.DB, error) {
	db, err := sqldb.Open(ctx, sqldb.Config{
		Driver:         cfg.Database.Driver,
		URI:            cfg.Database.URI,
		MaxOpenConns:   cfg.Database.MaxOpenConns,
		MaxIdleConns:   cfg.Database.MaxIdleConns,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	}, logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func newCleaner(db *sqldb.DB, cfg *config.Config, logger *logging.Logger) *cleaner.Cleaner {
	return cleaner.New(db, cleaner.Options{
		DryRun:       cfg.IsDryRun(),
		SkipTables:   cfg.SkipTables,
		SkipColumns:  cfg.SkipColumns,
		AutoDiscover: cfg.AutoDiscoverRelated,
		StopOnError:  cfg.ShouldStopOnError(),
		BatchPause:   cfg.BatchPause,
	}, logger.Logger).WithSinkFactory(archive.Factory(cfg.Archive))
}

func newCollector(cfg *config.Config) *metrics.Collector {
	return metrics.NewCollector(cfg.Metrics, prometheus.NewRegistry())
}

// selectTables keeps the configured tables named in names, in config
// order. An empty names list keeps every table.
func selectTables(tables []config.TableConfig, names []string) ([]config.TableConfig, error) {
	if len(names) == 0 {
		return tables, nil
	}
	found := make(map[string]bool, len(names))
	var out []config.TableConfig
	for _, tc := range tables {
		for _, name := range names {
			if strings.EqualFold(tc.Name, name) {
				out = append(out, tc)
				found[strings.ToLower(name)] = true
				break
			}
		}
	}
	for _, name := range names {
		if !found[strings.ToLower(name)] {
			return nil, cli.NewConfigError("table", fmt.Sprintf("table %q is not configured", name))
		}
	}
	return out, nil
}
