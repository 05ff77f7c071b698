package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/cleaner/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cleaner",
	Short: "Cleaner - referential-integrity-preserving row retirement",
	Long: `Cleaner deletes expired rows from configured root tables together with
every dependent row reachable through foreign keys, children first.

Runs are dry by default: counts are reported per table and nothing is
deleted until dry_run is set to false or --live is passed.

The configuration file is taken from --config, then DB_CLEANER_CONFIG,
then ./config/config.yaml.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a code derived from the error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default $DB_CLEANER_CONFIG or ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
