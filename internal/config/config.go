// Package config loads runtime configuration from the environment.
// A .env file in the working directory is read first when present;
// variables already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tillcore/internal/domain/heldsale"
)

// Config holds all runtime configuration.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	DatabaseURL string
	DBMaxConns  int

	JWTSecret string
	JWTIssuer string

	HoldExpiry        heldsale.ExpiryPolicy
	SaleNumberRetries int

	SweepInterval time.Duration
	SweepBatch    int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL    string
	EventsExchange string

	IdempotencyEnabled bool
	IdempotencyTTL     time.Duration
}

// IsDevelopment reports whether the process runs in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads .env (if any) and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (Config, error) {
	var problems []string
	fail := func(err error) {
		if err != nil {
			problems = append(problems, err.Error())
		}
	}

	cfg := Config{
		Env:                getEnv("APP_ENV", "development"),
		Port:               getEnv("APP_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTIssuer:          getEnv("JWT_ISSUER", "tillcore"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RabbitMQURL:        os.Getenv("RABBITMQ_URL"),
		EventsExchange:     getEnv("EVENTS_EXCHANGE", "tillcore.events"),
		IdempotencyEnabled: getEnvBool("IDEMPOTENCY_ENABLED", true),
	}

	var err error
	cfg.DBMaxConns, err = getEnvInt("DB_MAX_CONNS", 20)
	fail(err)
	cfg.SaleNumberRetries, err = getEnvInt("SALE_NUMBER_RETRIES", 5)
	fail(err)
	cfg.SweepBatch, err = getEnvInt("SWEEP_BATCH", heldsale.DefaultSweepBatch)
	fail(err)
	cfg.RedisDB, err = getEnvInt("REDIS_DB", 0)
	fail(err)
	cfg.SweepInterval, err = getEnvDuration("SWEEP_INTERVAL", time.Minute)
	fail(err)
	cfg.IdempotencyTTL, err = getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour)
	fail(err)

	ttl, err := getEnvDuration("HOLD_TTL", heldsale.DefaultTTL)
	fail(err)
	cfg.HoldExpiry, err = heldsale.ParseExpiryPolicy(getEnv("HOLD_EXPIRY_MODE", string(heldsale.ExpiryTTL)), ttl, os.Getenv("HOLD_SHIFT_END"))
	fail(err)

	if cfg.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}

	if len(problems) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: not an integer: %q", key, value)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: not a duration: %q", key, value)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
