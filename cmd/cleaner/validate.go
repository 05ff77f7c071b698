package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/cleaner/pkg/cli"
	"mercator-hq/cleaner/pkg/config"
)

var validateFlags struct {
	connect bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the configuration file without touching any data.

With --connect the database is opened and a relation plan is built for
every enabled table, which checks table names, key columns and manual
relations against the catalog.

Examples:
  cleaner validate
  cleaner validate --config /etc/cleaner/config.yaml --connect`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.connect, "connect", false, "also check tables against the database catalog")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if validateFlags.connect {
		if err := validateCatalog(cmd, cfg); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "✓ Configuration is valid (%d tables, dry_run=%t)\n", len(cfg.Tables), cfg.IsDryRun())
	return nil
}

func validateCatalog(cmd *cobra.Command, cfg *config.Config) error {
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx := context.Background()
	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return cli.NewCommandError("validate", err)
	}
	defer db.Close()

	c := newCleaner(db, cfg, logger)
	var errs []error
	for _, tc := range cfg.Tables {
		if c.SkipReason(tc) != "" {
			continue
		}
		plan, err := c.Plan(ctx, tc)
		if err != nil {
			errs = append(errs, fmt.Errorf("table %s: %w", tc.Name, err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d relations, %d cycles dropped\n",
			plan.Root.Table, len(plan.Edges), len(plan.Cycles))
	}
	if len(errs) > 0 {
		return cli.NewCommandError("validate", errors.Join(errs...))
	}
	return nil
}
