// Package main is the entry point for the dream evaluation engine.
//
// Startup sequence:
// 1. Load configuration from the environment (.env supported)
// 2. Wire databases, repositories, services and jobs
// 3. Start the cron scheduler and the HTTP server
// 4. Wait for a shutdown signal, then stop both gracefully
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/aristath/dreamengine/internal/config"
	"github.com/aristath/dreamengine/internal/di"
	"github.com/aristath/dreamengine/internal/server"
	"github.com/aristath/dreamengine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("db_driver", cfg.DBDriver).
		Msg("Starting dream engine")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	if len(container.Providers.Names()) == 0 {
		log.Warn().Msg("No AI providers configured, evaluations will fail until a key is set")
	}

	jobs.Scheduler.Start()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
		Jobs:      jobs,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Waits for a running retest pass or backup to finish
	jobs.Scheduler.Stop()

	// Flush WAL before the databases close
	for name, db := range container.Databases() {
		if _, err := db.WALCheckpoint("TRUNCATE"); err != nil {
			log.Warn().Err(err).Str("database", name).Msg("Final WAL checkpoint failed")
		}
	}

	log.Info().Msg("Server stopped")
}
