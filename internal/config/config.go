package config

import (
	"os"
	"strconv"
	"time"

	"antifraud/internal/logger"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	AppPort     string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Topics and consumer identity
	InboundTopic  string
	OutboundTopic string
	ConsumerGroup string

	// Fraud thresholds
	MaxTransactionValue decimal.Decimal
	MaxDailyTotal       decimal.Decimal

	// Worker tuning
	WorkerLanes    int
	StoreTimeout   time.Duration
	PublishTimeout time.Duration
	PublishRetries int
	PublishBackoff time.Duration

	// Outbox relay
	OutboxInterval time.Duration
	OutboxGrace    time.Duration
	OutboxBatch    int

	// Worker metrics listener
	MetricsPort string

	// Intake rate limiting
	APIRateLimit  int
	APIRateWindow time.Duration
}

// Load reads configuration from the environment (.env supported)
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		logger.Fatal("REDIS_ADDR is not set")
	}

	cfg := &Config{
		AppPort:       envOr("APP_PORT", "8080"),
		DatabaseURL:   dbURL,
		RedisAddr:     redisAddr,
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		InboundTopic:  envOr("INBOUND_TOPIC", "transactions"),
		OutboundTopic: envOr("OUTBOUND_TOPIC", "transactions-status"),
		ConsumerGroup: envOr("CONSUMER_GROUP", "antifraud-consumer-group"),

		MaxTransactionValue: envDecimal("MAX_TRANSACTION_VALUE", "2000"),
		MaxDailyTotal:       envDecimal("MAX_DAILY_TOTAL", "20000"),

		WorkerLanes:    envInt("WORKER_LANES", 4),
		StoreTimeout:   envSeconds("STORE_TIMEOUT_SECONDS", 5),
		PublishTimeout: envSeconds("PUBLISH_TIMEOUT_SECONDS", 5),
		PublishRetries: envInt("PUBLISH_RETRIES", 3),
		PublishBackoff: envMillis("PUBLISH_BACKOFF_MS", 200),

		OutboxInterval: envSeconds("OUTBOX_INTERVAL_SECONDS", 30),
		OutboxGrace:    envSeconds("OUTBOX_GRACE_SECONDS", 60),
		OutboxBatch:    envInt("OUTBOX_BATCH", 100),

		MetricsPort: envOr("METRICS_PORT", "9090"),

		APIRateLimit:  envInt("API_RATE_LIMIT", 60),
		APIRateWindow: envSeconds("API_RATE_WINDOW_SECONDS", 60),
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}

func envMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func envDecimal(key, fallback string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && !d.IsNegative() {
			return d
		}
		logger.Warn("invalid decimal in env, using default", "key", key, "value", v)
	}
	return decimal.RequireFromString(fallback)
}
