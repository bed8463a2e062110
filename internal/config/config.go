package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	POS      POSConfig
}

type AppConfig struct {
	HTTPPort        string
	GRPCPort        string
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// StoreDriver is "postgres" or "memory".
	StoreDriver    string
	MemorySeedPath string
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	// SessionBackend is "redis" or "memory".
	SessionBackend string
	SessionTTL     time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type POSConfig struct {
	Currency        string
	DefaultSellerID int64
	PageSize        int
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	requestTimeout, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}
	shutdownTimeout, err := time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}
	sessionTTL, err := time.ParseDuration(getEnv("SESSION_TTL", "8h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	sellerID, err := strconv.ParseInt(getEnv("DEFAULT_SELLER_ID", "1"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_SELLER_ID: %w", err)
	}
	pageSize, err := strconv.Atoi(getEnv("PAGE_SIZE", "16"))
	if err != nil || pageSize <= 0 {
		return nil, fmt.Errorf("invalid PAGE_SIZE %q", os.Getenv("PAGE_SIZE"))
	}

	cfg := &Config{
		App: AppConfig{
			HTTPPort:        getEnv("HTTP_PORT", "8080"),
			GRPCPort:        getEnv("GRPC_PORT", "50060"),
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			RequestTimeout:  requestTimeout,
			ShutdownTimeout: shutdownTimeout,
			StoreDriver:     strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
			MemorySeedPath:  getEnv("MEMORY_SEED_PATH", ""),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           dbPort,
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "pos"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", "localhost:6379"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			SessionBackend: strings.ToLower(getEnv("SESSION_BACKEND", "redis")),
			SessionTTL:     sessionTTL,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "pos-orders"),
		},
		POS: POSConfig{
			Currency:        getEnv("CURRENCY", "VND"),
			DefaultSellerID: sellerID,
			PageSize:        pageSize,
		},
	}

	if cfg.App.StoreDriver != "postgres" && cfg.App.StoreDriver != "memory" {
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.App.StoreDriver)
	}
	if cfg.Redis.SessionBackend != "redis" && cfg.Redis.SessionBackend != "memory" {
		return nil, fmt.Errorf("unknown SESSION_BACKEND %q", cfg.Redis.SessionBackend)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
