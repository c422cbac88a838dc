package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stwalsh4118/montage/internal/config"
	"github.com/stwalsh4118/montage/internal/db"
	"github.com/stwalsh4118/montage/internal/logger"
	"github.com/stwalsh4118/montage/internal/media"
	"github.com/stwalsh4118/montage/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info", true)
		logger.Log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)

	database, err := db.Open(cfg.Database.Path, db.Options{
		EnableWAL:   cfg.Database.EnableWAL,
		PingTimeout: cfg.Database.ConnectionTimeout,
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	sqlDB, err := database.GetSQLDB()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to get database handle")
	}
	if err := db.RunMigrations(sqlDB, cfg.Database.MigrationsPath); err != nil {
		logger.Log.Fatal().Err(err).Str("migrations", cfg.Database.MigrationsPath).Msg("Failed to run migrations")
	}

	// Runs left open by a crash can never finish now
	repos := db.NewRepositories(database)
	interrupted, err := repos.Runs.MarkInterrupted(context.Background(), time.Now())
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to close interrupted playback runs")
	}
	if interrupted > 0 {
		logger.Log.Warn().Int64("runs", interrupted).Msg("Marked playback runs from a previous process as interrupted")
	}

	if err := media.CheckFFprobeInstalled(); err != nil {
		logger.Log.Warn().Err(err).Msg("Media scanning will fail until ffprobe is installed")
	}

	srv := server.New(cfg, database)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Log.Error().Err(err).Msg("Server error")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Shutdown error")
	}
}
