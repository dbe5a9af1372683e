// Package config loads service settings from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Redis document store.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Hydrometric provider API.
	ProviderBaseURL string
	ProviderTimeout time.Duration

	// Kafka audit stream. Empty brokers disable auditing.
	KafkaBrokers    []string
	KafkaAuditTopic string

	// Sync engine tuning.
	HistoricalDays  int
	IncrementalDays int
	SyncWorkers     int
	KeepYears       int
	LockTTL         time.Duration

	// Job schedules (cron expressions).
	RealtimeSchedule   string
	HistoricalSchedule string

	// Query layer tuning.
	CacheTTL     time.Duration
	StaleHorizon time.Duration

	// Admin principals allowed to register stations, comma separated.
	AdminPrincipals []string
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	providerTimeout, err := parseDuration("PROVIDER_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	lockTTL, err := parseDuration("SYNC_LOCK_TTL", "30m")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("QUERY_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}
	staleHorizon, err := parseDuration("STALE_HORIZON", "6h")
	if err != nil {
		return nil, err
	}

	redisDB, err := parseInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	historicalDays, err := parseInt("HISTORICAL_DAYS", 1825)
	if err != nil {
		return nil, err
	}
	incrementalDays, err := parseInt("INCREMENTAL_DAYS", 3)
	if err != nil {
		return nil, err
	}
	syncWorkers, err := parseInt("SYNC_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	keepYears, err := parseInt("KEEP_YEARS", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		RedisAddr:     envOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		ProviderBaseURL: envOrDefault("PROVIDER_BASE_URL", "https://api.weather.gc.ca"),
		ProviderTimeout: providerTimeout,

		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaAuditTopic: envOrDefault("KAFKA_AUDIT_TOPIC", "hydrosync-audit"),

		HistoricalDays:  historicalDays,
		IncrementalDays: incrementalDays,
		SyncWorkers:     syncWorkers,
		KeepYears:       keepYears,
		LockTTL:         lockTTL,

		RealtimeSchedule:   envOrDefault("REALTIME_SCHEDULE", "@hourly"),
		HistoricalSchedule: envOrDefault("HISTORICAL_SCHEDULE", "@weekly"),

		CacheTTL:     cacheTTL,
		StaleHorizon: staleHorizon,

		AdminPrincipals: splitList(envOrDefault("ADMIN_PRINCIPALS", "admin")),
	}

	if cfg.RedisAddr == "" {
		return nil, errors.New("REDIS_ADDR is required")
	}
	if cfg.ProviderBaseURL == "" {
		return nil, errors.New("PROVIDER_BASE_URL is required")
	}
	if cfg.HistoricalDays < cfg.IncrementalDays {
		return nil, errors.New("HISTORICAL_DAYS must not be smaller than INCREMENTAL_DAYS")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

// splitList parses a comma separated list, trimming whitespace and dropping
// empty entries.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
