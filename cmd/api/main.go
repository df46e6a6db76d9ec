package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imageeditor/internal/config"
	httpHandler "github.com/yokitheyo/imageeditor/internal/handler/http"
	"github.com/yokitheyo/imageeditor/internal/handler/middleware"
	infradatabase "github.com/yokitheyo/imageeditor/internal/infrastructure/database"
	"github.com/yokitheyo/imageeditor/internal/infrastructure/kafka"
	"github.com/yokitheyo/imageeditor/internal/infrastructure/lock"
	"github.com/yokitheyo/imageeditor/internal/infrastructure/processor"
	"github.com/yokitheyo/imageeditor/internal/infrastructure/storage"
	"github.com/yokitheyo/imageeditor/internal/pipeline"
	"github.com/yokitheyo/imageeditor/internal/repository/postgres"
	"github.com/yokitheyo/imageeditor/internal/retry"
	"github.com/yokitheyo/imageeditor/internal/usecase"
)

func main() {
	zlog.Init()
	zlog.Logger.Info().Msg("Starting Image Editor API Server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load("")
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to load config")
	}
	zlog.Logger.Info().
		Int("max_upload_size_mb", cfg.Server.MaxUploadSizeMB).
		Int("commit_timeout_sec", cfg.Editor.CommitTimeoutSec).
		Msg("Loaded server config")

	database, err := infradatabase.Connect(&cfg.Database)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database after all retries")
	}
	defer infradatabase.Close(database)

	zlog.Logger.Info().Msg("Running database migrations...")
	if err := infradatabase.RunMigrations(database, cfg.Migrations.Path); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Migrations failed")
	}

	storageService, err := storage.New(&cfg.Storage)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	locker, err := lock.New(&cfg.Lock)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize image lock")
	}

	kafkaProducer := kafka.NewProducer(&cfg.Kafka)
	defer kafkaProducer.Close()

	repo := postgres.NewImageRepository(database, retry.DefaultStrategy)
	imageUsecase := usecase.NewImageUsecase(
		repo,
		storageService,
		kafkaProducer,
		cfg.Processing.SupportedFormats,
		cfg.Processing.DefaultWatermark,
	)
	editorUsecase := usecase.NewEditorUsecase(
		repo,
		storageService,
		locker,
		pipeline.New(processor.NewImageProcessor(&cfg.Processing)),
		usecase.EditorSettings{
			HistoryLimit:     cfg.Editor.HistoryLimit,
			CommitTimeout:    time.Duration(cfg.Editor.CommitTimeoutSec) * time.Second,
			DefaultWatermark: cfg.Processing.DefaultWatermark,
		},
	)

	engine := ginext.New("release")
	engine.Use(
		middleware.ErrorHandlerMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.CORSMiddleware(),
	)

	engine.GET("/health", func(c *ginext.Context) {
		c.JSON(http.StatusOK, ginext.H{"status": "ok"})
	})

	httpHandler.NewImageHandler(
		imageUsecase,
		cfg.Server.MaxUploadSizeMB,
		cfg.Processing.SupportedFormats,
	).RegisterRoutes(engine)
	httpHandler.NewSessionHandler(editorUsecase).RegisterRoutes(engine)

	// commits hold the response open for up to the commit timeout
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec+cfg.Editor.CommitTimeoutSec) * time.Second,
	}

	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Logger.Fatal().Err(err).Msg("Failed to start API server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	} else {
		zlog.Logger.Info().Msg("HTTP server stopped gracefully")
	}

	zlog.Logger.Info().Msg("API shutdown complete")
}
