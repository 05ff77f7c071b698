package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		},
	)
}

// Serve mounts the metrics endpoint on mux and serves it on the configured
// address until ctx is cancelled. A nil mux serves metrics only.
func (c *Collector) Serve(ctx context.Context, mux *http.ServeMux, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	path := c.config.Path
	if path == "" {
		path = "/metrics"
	}

	if mux == nil {
		mux = http.NewServeMux()
	}
	mux.Handle(path, c.Handler())

	ln, err := net.Listen("tcp", c.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.config.ListenAddress, err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics endpoint listening", "address", ln.Addr().String(), "path", path)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
