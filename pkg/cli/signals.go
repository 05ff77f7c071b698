package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler creates a context that is canceled on the first
// SIGINT or SIGTERM, letting the current batch finish. A second signal
// exits immediately.
func SetupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			signal.Stop(sigChan)
			return
		}
		fmt.Fprintln(os.Stderr, "Shutting down after the current batch (signal again to force)")
		cancel()

		<-sigChan
		os.Exit(ExitInterrupted)
	}()

	return ctx, func() {
		cancel()
	}
}
