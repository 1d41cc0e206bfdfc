package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storyboard-server/internal/auth"
	"storyboard-server/internal/config"
	"storyboard-server/internal/database"
	"storyboard-server/internal/handler"
	"storyboard-server/internal/interfaces"
	"storyboard-server/internal/logger"
	"storyboard-server/internal/messaging"
	"storyboard-server/internal/service"
	"storyboard-server/internal/storage"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Logger)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	log.Info("Starting storyboard API server...", zap.String("env", cfg.AppEnv))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- PostgreSQL ---
	dbPool, err := database.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()
	log.Info("Connected to PostgreSQL")

	if err := database.Migrate(cfg.Postgres.URL, log); err != nil {
		log.Fatal("Failed to apply database migrations", zap.Error(err))
	}

	// --- Redis (дедупликация событий биллинга) ---
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	log.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

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

	// --- Blob-хранилище ---
	blobStore, err := newBlobStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize blob store", zap.Error(err))
	}

	// --- Репозитории и сервисы ---
	userRepo := database.NewPgUserRepository(dbPool, log)
	storyRepo := database.NewPgStoryRepository(dbPool, log)
	segmentRepo := database.NewPgSegmentRepository(dbPool, log)
	billingEventRepo := database.NewRedisBillingEventRepository(redisClient, log)

	tracker := service.NewCompletionTracker(storyRepo, segmentRepo, log, cfg.Worker.TrackerRetryAttempts)
	storyService := service.NewStoryService(userRepo, storyRepo, segmentRepo, blobStore, publisher, tracker, log)

	tokenTTL := time.Duration(cfg.HTTP.TokenTTLHours) * time.Hour
	authService, err := auth.NewService(userRepo, cfg.HTTP.JWTSecret, tokenTTL, log)
	if err != nil {
		log.Fatal("Failed to initialize auth service", zap.Error(err))
	}
	verifier, err := auth.NewJWTVerifier(cfg.HTTP.JWTSecret, log)
	if err != nil {
		log.Fatal("Failed to initialize token verifier", zap.Error(err))
	}

	// --- HTTP ---
	router := handler.NewRouter(handler.RouterDeps{
		Logger:          log,
		Verifier:        verifier,
		AuthHandler:     handler.NewAuthHandler(authService),
		UserHandler:     handler.NewUserHandler(userRepo),
		StoryHandler:    handler.NewStoryHandler(storyService),
		ProgressHandler: handler.NewProgressHandler(storyService, log),
		BillingHandler:  handler.NewBillingHandler(userRepo, billingEventRepo, cfg.Billing.WebhookSecret, log),
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
		Env:             cfg.AppEnv,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("port", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutdown signal received, stopping server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
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
