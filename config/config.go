package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the process reads from the environment. A local
// .env file is honored when present so development does not need exports.
type Config struct {
	DatabaseURL string
	JWTSecret   string
	HTTPAddr    string

	ShutdownGrace  time.Duration
	StorageTimeout time.Duration
}

// Load reads the environment, falling back to .env. DATABASE_URL and
// JWT_SECRET have no sane defaults and are required.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		ShutdownGrace:  getEnvDuration("SHUTDOWN_GRACE", 10*time.Second),
		StorageTimeout: getEnvDuration("STORAGE_TIMEOUT", 5*time.Second),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
