/*
Package cli provides command-line helpers used by the cleaner command.

Output Formatting:

Run summaries are converted to a Report and rendered as text, JSON or CSV:

	report := cli.NewReport(summary)
	if err := cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, report); err != nil {
		return err
	}

Progress Reporting:

BatchProgress prints one line per finished batch and is passed to the
cleaner as a recorder:

	c.WithRecorder(cleaner.MultiRecorder(collector, cli.NewBatchProgress(os.Stderr)))

Signal Handling:

The first SIGINT/SIGTERM cancels the context so the run stops between
batches; a second one exits immediately:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli
