package config

import (
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv       string
	DBPath       string
	DBDriver     string
	RedisAddr    string
	CacheEnabled bool
	CacheTTL     time.Duration
	HTTPPort     int
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() *Config {
	port, err := strconv.Atoi(getEnv("HTTP_PORT", "8080"))
	if err != nil {
		port = 8080
	}

	cacheEnabled, err := strconv.ParseBool(getEnv("CACHE_ENABLED", "true"))
	if err != nil {
		cacheEnabled = true
	}

	ttlMinutes, err := strconv.Atoi(getEnv("CACHE_TTL_MINUTES", "10"))
	if err != nil || ttlMinutes <= 0 {
		ttlMinutes = 10
	}

	return &Config{
		AppEnv:       getEnv("APP_ENV", "development"),
		DBPath:       getEnv("DB_PATH", "./data/insights.db"),
		DBDriver:     getEnv("DB_DRIVER", "sqlite3"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		CacheEnabled: cacheEnabled,
		CacheTTL:     time.Duration(ttlMinutes) * time.Minute,
		HTTPPort:     port,
	}
}

// NewLogger creates a new Zap logger based on the config.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.AppEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
