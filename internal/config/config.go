// Package config reads the daemon settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultHTTPAddr        = ":8080"
	DefaultHistoryDSN      = "calculator.db"
	DefaultShutdownTimeout = 5 * time.Second
)

type Config struct {
	HTTPAddr        string
	HistoryDSN      string
	OTLPEnabled     bool
	ShutdownTimeout time.Duration
}

// Load reads .env when present and then the process environment.
func Load() (Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return FromEnv(os.LookupEnv)
}

// LoadDotEnv loads environment variables from path when it exists.
// Existing process environment variables are not overridden.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return fmt.Errorf("load %s: %w", path, err)
}

// FromEnv builds a Config from lookup, falling back to defaults for unset keys.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Config{
		HTTPAddr:        getEnvOrDefault(lookup, "CALC_HTTP_ADDR", DefaultHTTPAddr),
		HistoryDSN:      getEnvOrDefault(lookup, "CALC_HISTORY_DSN", DefaultHistoryDSN),
		OTLPEnabled:     true,
		ShutdownTimeout: DefaultShutdownTimeout,
	}

	if v, ok := lookup("CALC_OTLP_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("CALC_OTLP_ENABLED: %w", err)
		}
		cfg.OTLPEnabled = enabled
	}

	if v, ok := lookup("CALC_SHUTDOWN_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("CALC_SHUTDOWN_TIMEOUT: %w", err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("CALC_SHUTDOWN_TIMEOUT: must be positive, got %s", d)
		}
		cfg.ShutdownTimeout = d
	}

	return cfg, nil
}

func getEnvOrDefault(lookup func(string) (string, bool), key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}
