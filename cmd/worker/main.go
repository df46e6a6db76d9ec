package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imageeditor/internal/config"
	infradatabase "github.com/yokitheyo/imageeditor/internal/infrastructure/database"
	"github.com/yokitheyo/imageeditor/internal/infrastructure/kafka"
	"github.com/yokitheyo/imageeditor/internal/infrastructure/lock"
	"github.com/yokitheyo/imageeditor/internal/infrastructure/processor"
	"github.com/yokitheyo/imageeditor/internal/infrastructure/storage"
	"github.com/yokitheyo/imageeditor/internal/pipeline"
	"github.com/yokitheyo/imageeditor/internal/repository/postgres"
	"github.com/yokitheyo/imageeditor/internal/retry"
	"github.com/yokitheyo/imageeditor/internal/usecase"
	"github.com/yokitheyo/imageeditor/internal/worker"
)

func main() {
	zlog.Init()
	zlog.Logger.Info().Msg("Starting Image Editor Worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configPath := "config.yaml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configPath = "/app/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to load config")
	}

	database, err := infradatabase.Connect(&cfg.Database)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database after all retries")
	}
	defer infradatabase.Close(database)

	zlog.Logger.Info().Msg("Running database migrations...")
	if err := infradatabase.RunMigrations(database, cfg.Migrations.Path); err != nil {
		zlog.Logger.Warn().Err(err).Msg("Migrations warning (might be already applied)")
	}

	storageService, err := storage.New(&cfg.Storage)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	// the worker must share the API's lock backend for commits to exclude each other
	if cfg.Lock.Type != "redis" {
		zlog.Logger.Warn().Str("lock", cfg.Lock.Type).Msg("in-process lock does not exclude API commits")
	}
	locker, err := lock.New(&cfg.Lock)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize image lock")
	}

	repo := postgres.NewImageRepository(database, retry.DefaultStrategy)
	editorUsecase := usecase.NewEditorUsecase(
		repo,
		storageService,
		locker,
		pipeline.New(processor.NewImageProcessor(&cfg.Processing)),
		usecase.EditorSettings{
			CommitTimeout:    time.Duration(cfg.Editor.CommitTimeoutSec) * time.Second,
			DefaultWatermark: cfg.Processing.DefaultWatermark,
		},
	)
	processorUsecase := usecase.NewProcessorUsecase(repo, editorUsecase)
	imageWorker := worker.NewImageWorker(processorUsecase)

	kafkaConsumer, err := kafka.NewConsumer(&cfg.Kafka, imageWorker.HandleTransformTask)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize Kafka consumer")
	}
	defer kafkaConsumer.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := kafkaConsumer.Start(ctx); err != nil {
			zlog.Logger.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("Shutdown signal received")

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		zlog.Logger.Warn().Msg("Kafka consumer did not stop in time")
	}

	zlog.Logger.Info().Msg("Worker shutdown complete")
}
