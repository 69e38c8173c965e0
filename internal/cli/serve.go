package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Belphemur/tagcache/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

func newServeMetricsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve Prometheus metrics for the configured store",
		Long: `Serve /metrics over HTTP on metrics.address:metrics.port until interrupted.

The store is opened with instrumentation so cache_entries reports the
number of live keys at scrape time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := *a.cfg
			cfg.Metrics.Enabled = true

			c, err := a.open(&cfg, a.logger)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveMetrics(ctx, metrics.NewHTTPServer(cfg.Metrics.Address, cfg.Metrics.Port), a)
		},
	}
}

func serveMetrics(ctx context.Context, srv *http.Server, a *app) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("address", srv.Addr).Msg("Starting Prometheus metrics HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		a.logger.Info().Msg("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("Failed to shutdown metrics server")
		return err
	}
	a.logger.Info().Msg("Metrics server stopped gracefully")
	return nil
}
