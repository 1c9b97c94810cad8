package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the service.
type Config struct {
	HTTPPort       string
	AdminJWTSecret []byte // empty = management endpoints unauthenticated
	Database       DatabaseConfig
	Redis          RedisConfig
	Webhook        WebhookConfig
	DeliveryLog    DeliveryLogConfig
	RateLimit      RateLimitConfig
}

// DatabaseConfig holds database connection settings.
// An empty URL selects the in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	KeyCacheSize    int
	KeyCacheTTL     time.Duration
}

// RedisConfig holds Redis connection settings.
// An empty address selects the in-memory counter, gate and delivery queue.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// WebhookConfig holds dispatcher settings.
type WebhookConfig struct {
	Workers         int
	QueueSize       int
	DeliveryTimeout time.Duration
}

// DeliveryLogConfig holds configuration for the S3-based delivery log sink.
type DeliveryLogConfig struct {
	Enabled       bool
	BufferSize    int
	FlushSize     int
	FlushInterval time.Duration
	S3Bucket      string
	S3Region      string
	S3Prefix      string
	PodName       string
}

// RateLimitConfig controls the optional per-key sliding-window limiter.
type RateLimitConfig struct {
	Enforce bool
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val == "true" || val == "1"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:       getEnvString("HTTP_PORT", "8080"),
		AdminJWTSecret: []byte(os.Getenv("ADMIN_JWT_SECRET")),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
			KeyCacheSize:    getEnvInt("CACHE_KEY_SIZE", 1000),
			KeyCacheTTL:     getEnvDuration("CACHE_KEY_TTL", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", ""),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Webhook: WebhookConfig{
			Workers:         getEnvInt("WEBHOOK_WORKERS", 4),
			QueueSize:       getEnvInt("WEBHOOK_QUEUE_SIZE", 1024),
			DeliveryTimeout: getEnvDuration("WEBHOOK_DELIVERY_TIMEOUT", 10*time.Second),
		},
		DeliveryLog: DeliveryLogConfig{
			Enabled:       getEnvBool("DELIVERY_LOG_ENABLED", false),
			BufferSize:    getEnvInt("DELIVERY_LOG_BUFFER_SIZE", 10000),
			FlushSize:     getEnvInt("DELIVERY_LOG_FLUSH_SIZE", 1000),
			FlushInterval: getEnvDuration("DELIVERY_LOG_FLUSH_INTERVAL", 5*time.Minute),
			S3Bucket:      getEnvString("DELIVERY_LOG_S3_BUCKET", ""),
			S3Region:      getEnvString("DELIVERY_LOG_S3_REGION", "us-east-1"),
			S3Prefix:      getEnvString("DELIVERY_LOG_S3_PREFIX", "deliveries/"),
			PodName:       getEnvString("POD_NAME", "throttl-0"),
		},
		RateLimit: RateLimitConfig{
			Enforce: getEnvBool("RATE_LIMIT_ENFORCE", false),
		},
	}

	return cfg, nil
}
