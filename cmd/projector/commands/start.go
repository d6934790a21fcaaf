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

	"github.com/kengreim/vnas-stats/internal/activity"
	"github.com/kengreim/vnas-stats/internal/config"
	"github.com/kengreim/vnas-stats/internal/dbconn"
	"github.com/kengreim/vnas-stats/internal/httpapi"
	"github.com/kengreim/vnas-stats/internal/logger"
	"github.com/kengreim/vnas-stats/internal/metrics"
	"github.com/kengreim/vnas-stats/internal/projector"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the projector loop and its /health endpoint",
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

	loop := projector.New(pool, projector.Config{
		BacklogBatchSize: cfg.Projector.BacklogBatchSize,
		NotifyBatchSize:  cfg.Projector.NotifyBatchSize,
	})
	snapshotter := activity.New(pool, time.Minute)

	logger.Info("projector starting",
		"backlog_batch_size", cfg.Projector.BacklogBatchSize,
		"notify_batch_size", cfg.Projector.NotifyBatchSize)

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(ctx)
	}()

	activityDone := make(chan error, 1)
	go func() {
		activityDone <- snapshotter.Run(ctx)
	}()

	healthSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Projector.HealthPort),
		Handler: httpapi.NewRouter(loop),
	}
	healthDone := make(chan error, 1)
	go func() {
		logger.Info("projector health endpoint listening", "port", cfg.Projector.HealthPort)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			healthDone <- err
			return
		}
		healthDone <- nil
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("projector running, press ctrl+c to stop")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, stopping projector")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := healthSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown error", logger.Err(err))
		}

		if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("projector loop exited with error", logger.Err(err))
		}
		<-activityDone

	case err := <-loopDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("projector loop exited unexpectedly", logger.Err(err))
			return err
		}

	case err := <-healthDone:
		if err != nil {
			logger.Error("health server exited unexpectedly", logger.Err(err))
			return err
		}
	}

	logger.Info("projector stopped")
	return nil
}
