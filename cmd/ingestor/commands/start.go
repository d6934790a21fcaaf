package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kengreim/vnas-stats/internal/config"
	"github.com/kengreim/vnas-stats/internal/dbconn"
	"github.com/kengreim/vnas-stats/internal/feed"
	"github.com/kengreim/vnas-stats/internal/httpapi"
	"github.com/kengreim/vnas-stats/internal/ingestor"
	"github.com/kengreim/vnas-stats/internal/logger"
	"github.com/kengreim/vnas-stats/internal/metrics"
	"github.com/kengreim/vnas-stats/internal/queue"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the ingestor loop and its /health endpoint",
	RunE:  runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dbconn.RunMigrations(ctx, &cfg.Database); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	pool, err := dbconn.NewPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer dbconn.ClosePool(pool)

	feedURL, err := cfg.Feed.ResolvedURL()
	if err != nil {
		return fmt.Errorf("resolve feed url: %w", err)
	}

	client := feed.NewClient(feedURL, 10*time.Second)
	q := queue.New(pool)
	loop := ingestor.New(client, q, ingestor.Config{TickInterval: cfg.Ingestor.TickInterval})

	logger.Info("ingestor starting", "feed_url", feedURL, "tick_interval", cfg.Ingestor.TickInterval.String())

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(ctx)
	}()

	healthSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Ingestor.HealthPort),
		Handler: httpapi.NewRouter(loop),
	}
	healthDone := make(chan error, 1)
	go func() {
		logger.Info("ingestor health endpoint listening", "port", cfg.Ingestor.HealthPort)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			healthDone <- err
			return
		}
		healthDone <- nil
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("ingestor running, press ctrl+c to stop")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, stopping ingestor")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := healthSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown error", logger.Err(err))
		}

		if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("ingestor loop exited with error", logger.Err(err))
		}

	case err := <-loopDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("ingestor loop exited unexpectedly", logger.Err(err))
			return err
		}

	case err := <-healthDone:
		if err != nil {
			logger.Error("health server exited unexpectedly", logger.Err(err))
			return err
		}
	}

	logger.Info("ingestor stopped")
	return nil
}
