package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"storyboard-server/internal/config"
	"storyboard-server/internal/database"
	"storyboard-server/internal/imagegen"
	"storyboard-server/internal/interfaces"
	"storyboard-server/internal/logger"
	"storyboard-server/internal/messaging"
	"storyboard-server/internal/service"
	"storyboard-server/internal/storage"
	"storyboard-server/internal/worker"
	"storyboard-server/pkg/ai"
)

const metricsPushInterval = 15 * time.Second

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Logger)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	log.Info("Starting storyboard generation worker...", zap.String("env", cfg.AppEnv))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Метрики (Pushgateway) ---
	if cfg.Worker.PushGatewayURL != "" {
		if err := worker.InitMetricsPusher(cfg.Worker.PushGatewayURL); err != nil {
			log.Warn("Failed to initialize metrics pusher, metrics disabled", zap.Error(err))
		} else {
			worker.StartMetricsPusher(metricsPushInterval)
			defer worker.CleanupMetrics()
		}
	}

	// --- PostgreSQL ---
	dbPool, err := database.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()
	log.Info("Connected to PostgreSQL")

	// --- RabbitMQ ---
	rabbitConn, err := messaging.Connect(cfg.RabbitMQ.URL, log)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer rabbitConn.Close()
	log.Info("Connected to RabbitMQ")

	publisher, err := messaging.NewRabbitMQTaskPublisher(rabbitConn, cfg.RabbitMQ.TaskQueue, log)
	if err != nil {
		log.Fatal("Failed to initialize task publisher", zap.Error(err))
	}

	// --- Клиенты генерации ---
	textGen, err := ai.New(ai.Config{
		Backend:     cfg.AI.Backend,
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		OllamaHost:  cfg.AI.OllamaHost,
		Timeout:     time.Duration(cfg.AI.TimeoutSec) * time.Second,
		MaxRetries:  cfg.AI.MaxRetries,
		Temperature: cfg.AI.Temperature,
	})
	if err != nil {
		log.Fatal("Failed to initialize AI client", zap.Error(err))
	}

	imageGen, err := imagegen.NewClient(imagegen.Config{
		BaseURL: cfg.ImageGen.BaseURL,
		Timeout: time.Duration(cfg.ImageGen.TimeoutSec) * time.Second,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize image generation client", zap.Error(err))
	}

	blobStore, err := newBlobStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize blob store", zap.Error(err))
	}

	// --- Репозитории и обработчик задач ---
	userRepo := database.NewPgUserRepository(dbPool, log)
	storyRepo := database.NewPgStoryRepository(dbPool, log)
	segmentRepo := database.NewPgSegmentRepository(dbPool, log)

	tracker := service.NewCompletionTracker(storyRepo, segmentRepo, log, cfg.Worker.TrackerRetryAttempts)
	taskHandler := worker.NewHandler(log, userRepo, storyRepo, segmentRepo, textGen, imageGen, blobStore, publisher, tracker)

	// Sweeper добивает раунды, задачи которых потерялись (например, ушли в DLQ).
	sweeper := worker.NewSweeper(storyRepo, log,
		time.Duration(cfg.Worker.SweeperIntervalMin)*time.Minute,
		time.Duration(cfg.Worker.StaleThresholdMin)*time.Minute)
	go sweeper.Run(ctx)

	consumer := messaging.NewConsumer(rabbitConn, cfg.RabbitMQ, taskHandler, log)

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- consumer.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("Shutdown signal received, stopping worker...")
		cancel()
		<-consumerDone
	case err := <-consumerDone:
		if err != nil {
			log.Error("Consumer stopped with error", zap.Error(err))
		} else {
			log.Warn("Consumer stopped")
		}
	}

	log.Info("Worker stopped")
}

// newBlobStore выбирает реализацию хранилища по конфигурации.
func newBlobStore(cfg *config.Config, log *zap.Logger) (interfaces.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "local":
		return storage.NewLocalStore(storage.LocalConfig{
			Path:    cfg.Storage.LocalPath,
			BaseURL: cfg.Storage.LocalBaseURL,
		}, log)
	default:
		return storage.NewS3Store(storage.S3Config{
			Region:   cfg.Storage.S3Region,
			Bucket:   cfg.Storage.S3Bucket,
			Endpoint: cfg.Storage.S3Endpoint,
			URLTTL:   time.Duration(cfg.Storage.S3URLTTLMin) * time.Minute,
		}, log)
	}
}
