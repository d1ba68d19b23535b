package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photoq/internal/api"
	"photoq/internal/config"
	"photoq/internal/pipeline"
	"photoq/internal/queue"
	"photoq/internal/repository"
	"photoq/internal/storage"
	"photoq/internal/transcoder"
	"photoq/pkg/logger"

	"go.uber.org/zap"
)

const (
	// Application information
	AppName    = "photoq"
	AppVersion = "0.1.0"

	// Graceful shutdown timeout
	ShutdownTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger first
	if err := logger.Init(logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Starting "+AppName+" worker",
		zap.String("version", AppVersion),
		zap.Int("workers", cfg.Worker.Count),
		zap.Bool("development", cfg.IsDevelopment()))

	// Initialize submission repository (Postgres)
	logger.Info("Initializing submission repository...")
	repo, err := repository.NewPostgresRepository(context.Background(), &cfg.Database, cfg.Pipeline.SubmissionCap)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()

	// Initialize marker store (Redis or Badger)
	logger.Info("Initializing marker store...", zap.String("type", cfg.Marker.Type))
	markers, err := repository.NewMarkerStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize marker store: %w", err)
	}
	defer func() {
		if err := markers.Close(); err != nil {
			logger.Error("Failed to close marker store", zap.Error(err))
		}
	}()

	// Initialize storage (S3)
	logger.Info("Initializing S3 storage...")
	blobs, err := storage.NewS3Storage(&cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Assemble the pipeline
	tc := transcoder.New(transcoder.Config{
		LargeSize:        cfg.Pipeline.LargeSize,
		MediumSize:       cfg.Pipeline.MediumSize,
		SmallSize:        cfg.Pipeline.SmallSize,
		ThumbnailSize:    cfg.Pipeline.ThumbnailSize,
		JPEGQuality:      cfg.Pipeline.JPEGQuality,
		ThumbnailSharpen: cfg.Pipeline.ThumbnailSharpen,
		GenerateSmall:    cfg.Pipeline.GenerateSmall,
	})
	pipe := pipeline.New(&cfg.Pipeline, &cfg.Worker, tc, blobs, repo, markers)

	// Initialize queue notifier and consumer
	logger.Info("Initializing queue...")
	notifier, err := queue.NewRabbitMQNotifier(&cfg.Queue)
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			logger.Error("Failed to close notifier", zap.Error(err))
		}
	}()

	consumer, err := queue.NewRabbitMQConsumer(&cfg.Queue, &cfg.Worker, pipe.Process, notifier)
	if err != nil {
		return fmt.Errorf("failed to initialize consumer: %w", err)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Error("Failed to close consumer", zap.Error(err))
		}
	}()

	// Health endpoint over the backing services
	health := api.NewHealthServer(cfg, map[string]api.HealthCheck{
		"database": repo.Health,
		"storage":  blobs.Health,
		"markers":  markers.Health,
		"queue":    consumer.Health,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 2)

	go func() {
		if err := health.Start(); err != nil {
			errChan <- fmt.Errorf("health server failed: %w", err)
		}
	}()

	go func() {
		if err := consumer.Start(ctx); err != nil {
			errChan <- fmt.Errorf("consumer failed: %w", err)
		}
	}()

	logger.Info(AppName + " worker started successfully")

	// Wait for interrupt signal or component failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		cancel()
		return err
	case sig := <-quit:
		logger.Info("Received shutdown signal, starting graceful shutdown...",
			zap.String("signal", sig.String()))
	}

	// Stop accepting deliveries and drain in-flight jobs
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	if err := health.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down health server", zap.Error(err))
	}

	logger.Info("Worker shut down successfully")
	return nil
}
