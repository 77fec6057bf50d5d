// Package config loads process settings from the environment. A .env file in
// the working directory is read first; variables already set win.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the service settings. OpenTelemetry settings are read
// separately from OTEL_* variables.
type Config struct {
	Env             string // "development" or "production"
	Port            string
	DatabasePath    string
	LogLevel        slog.Level
	RiverWorkers    int
	ShutdownTimeout time.Duration
}

// Load reads .env (if present) and builds Config with defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:          envOrDefault("APP_ENV", "development"),
		Port:         envOrDefault("PORT", "8080"),
		DatabasePath: envOrDefault("DATABASE_PATH", "statusgate.db"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(envOrDefault("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	workers, err := strconv.Atoi(envOrDefault("RIVER_WORKERS", "2"))
	if err != nil || workers < 1 {
		return Config{}, fmt.Errorf("RIVER_WORKERS must be a positive integer, got %q", os.Getenv("RIVER_WORKERS"))
	}
	cfg.RiverWorkers = workers

	timeout, err := time.ParseDuration(envOrDefault("SHUTDOWN_TIMEOUT", "5s"))
	if err != nil {
		return Config{}, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
	}
	cfg.ShutdownTimeout = timeout

	return cfg, nil
}

// Development reports whether the service runs in development mode.
func (c Config) Development() bool {
	return strings.EqualFold(c.Env, "development")
}

// NewLogger returns a text logger in development and a JSON logger otherwise.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.Development() {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
