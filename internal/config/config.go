package config

import (
	"log"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"storyboard-server/internal/logger"
)

// Config — вся конфигурация приложения (API и worker читают одну структуру).
type Config struct {
	AppEnv   string `env:"APP_ENV" env-default:"development"`
	Logger   logger.Config
	HTTP     HTTPConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	AI       AIConfig
	ImageGen ImageGenConfig
	Storage  StorageConfig
	Billing  BillingConfig
	Worker   WorkerConfig
}

// HTTPConfig — настройки API-сервера.
type HTTPConfig struct {
	Port           string   `env:"HTTP_PORT" env-default:"8080"`
	JWTSecret      string   `env:"JWT_SECRET" env-required:"true"`
	TokenTTLHours  int      `env:"JWT_TTL_HOURS" env-default:"72"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
}

// PostgresConfig — подключение к базе данных.
type PostgresConfig struct {
	URL      string `env:"DATABASE_URL" env-required:"true"`
	MaxConns int32  `env:"DATABASE_MAX_CONNS" env-default:"10"`
}

// RedisConfig — подключение к Redis (дедупликация событий биллинга).
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" env-default:""`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

// RabbitMQConfig — подключение к очереди задач.
type RabbitMQConfig struct {
	URL          string `env:"RABBITMQ_URL" env-required:"true"`
	TaskQueue    string `env:"RABBITMQ_TASK_QUEUE" env-default:"storyboard_generation_tasks"`
	ConsumerName string `env:"RABBITMQ_CONSUMER_NAME" env-default:"storyboard_worker"`
	Prefetch     int    `env:"RABBITMQ_PREFETCH" env-default:"4"`
}

// AIConfig — текстовая модель. Backend: "openai" (совместимые API, включая
// DeepSeek/OpenRouter) либо "ollama" для локальной модели.
type AIConfig struct {
	Backend     string  `env:"AI_BACKEND" env-default:"openai"`
	APIKey      string  `env:"AI_API_KEY" env-default:""`
	BaseURL     string  `env:"AI_BASE_URL" env-default:"https://api.deepseek.com"`
	Model       string  `env:"AI_MODEL" env-default:"deepseek-chat"`
	OllamaHost  string  `env:"OLLAMA_HOST" env-default:"http://localhost:11434"`
	TimeoutSec  int     `env:"AI_TIMEOUT_SEC" env-default:"120"`
	MaxRetries  int     `env:"AI_MAX_RETRIES" env-default:"3"`
	Temperature float32 `env:"AI_TEMPERATURE" env-default:"0.8"`
}

// ImageGenConfig — сервис синтеза изображений.
type ImageGenConfig struct {
	BaseURL    string `env:"IMAGE_GEN_BASE_URL" env-required:"true"`
	TimeoutSec int    `env:"IMAGE_GEN_TIMEOUT_SEC" env-default:"120"`
}

// StorageConfig — blob-хранилище. Backend: "s3" либо "local".
type StorageConfig struct {
	Backend string `env:"STORAGE_BACKEND" env-default:"s3"`

	S3Region     string `env:"S3_REGION" env-default:"us-east-1"`
	S3Bucket     string `env:"S3_BUCKET" env-default:""`
	S3Endpoint   string `env:"S3_ENDPOINT" env-default:""` // для MinIO и совместимых
	S3URLTTLMin  int    `env:"S3_URL_TTL_MIN" env-default:"60"`

	LocalPath    string `env:"LOCAL_STORAGE_PATH" env-default:"/var/lib/storyboard/images"`
	LocalBaseURL string `env:"LOCAL_STORAGE_BASE_URL" env-default:""`
}

// BillingConfig — вебхук платежного провайдера.
type BillingConfig struct {
	WebhookSecret string `env:"BILLING_WEBHOOK_SECRET" env-required:"true"`
}

// WorkerConfig — настройки фонового воркера.
type WorkerConfig struct {
	PushGatewayURL      string `env:"PUSHGATEWAY_URL" env-default:""`
	SweeperIntervalMin  int    `env:"SWEEPER_INTERVAL_MIN" env-default:"10"`
	StaleThresholdMin   int    `env:"STALE_THRESHOLD_MIN" env-default:"60"`
	TrackerRetryAttempts int   `env:"TRACKER_RETRY_ATTEMPTS" env-default:"3"`
}

// Load загружает конфигурацию из переменных окружения и .env файла.
func Load() *Config {
	// .env может отсутствовать, это не ошибка
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	return &cfg
}
