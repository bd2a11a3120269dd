package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/hazard-sim/internal/adapter/httpadapter"
	"github.com/couchcryptid/hazard-sim/internal/domain"
	"github.com/couchcryptid/hazard-sim/internal/observability"
)

var interval time.Duration

func init() {
	serveCmd.Flags().DurationVar(&interval, "interval", 0, "rerun the catalog at this interval; 0 runs it once at startup")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the catalog and serve the latest results over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	g, cat, err := loadInputs()
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics()
	a, err := newApp(metrics)
	if err != nil {
		return err
	}
	defer a.close()

	srv := httpadapter.NewServer(cfg.HTTPAddr, a.pipeline, a.pipeline, cfg.GeoJSONStride, cfg.ResultCacheSize, metrics, logger)
	if a.history != nil {
		srv.SetHistory(a.history)
	}

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the scenario schedule.
	done := make(chan struct{})
	go func() {
		defer close(done)
		schedule(ctx, interval, func() {
			if _, err := a.pipeline.Run(ctx, g, cat); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		})
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before the shutdown timeout")
	}

	logger.Info("shutdown complete")
	return nil
}

// schedule calls fn immediately and then every interval until ctx is done.
// A zero interval calls fn once.
func schedule(ctx context.Context, interval time.Duration, fn func()) {
	fn()
	if interval <= 0 {
		return
	}
	ticker := domain.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			fn()
		}
	}
}
