// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds application configuration
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	OTLPEndpoint string
	// OTLPLogsEndpoint is an OTLP/HTTP host:port; when set, log entries are
	// also shipped through the otelzap bridge.
	OTLPLogsEndpoint string
	SampleRate       float64

	KafkaBrokers      []string
	KafkaEnsureTopics bool
	EventWorkers      int
	EventQueueSize    int

	ShutdownTimeout time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, applying defaults for
// unset variables.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:              stringOr(getenv("PORT"), "8080"),
		LogLevel:          stringOr(getenv("LOG_LEVEL"), "info"),
		LogFormat:         stringOr(getenv("LOG_FORMAT"), "json"),
		OTLPEndpoint:      getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPLogsEndpoint:  getenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"),
		KafkaBrokers:      splitList(getenv("KAFKA_BROKERS")),
		SampleRate:        1.0,
		KafkaEnsureTopics: true,
		EventWorkers:      4,
		EventQueueSize:    1024,
		ShutdownTimeout:   15 * time.Second,
	}

	var errs []error
	if v := getenv("OTEL_SAMPLE_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATE must be a number between 0 and 1, got %q", v))
		} else {
			cfg.SampleRate = f
		}
	}
	if v := getenv("KAFKA_ENSURE_TOPICS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("KAFKA_ENSURE_TOPICS must be a boolean, got %q", v))
		} else {
			cfg.KafkaEnsureTopics = b
		}
	}
	if err := positiveInt(getenv, "EVENT_WORKERS", &cfg.EventWorkers); err != nil {
		errs = append(errs, err)
	}
	if err := positiveInt(getenv, "EVENT_QUEUE_SIZE", &cfg.EventQueueSize); err != nil {
		errs = append(errs, err)
	}
	if v := getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT must be a positive duration, got %q", v))
		} else {
			cfg.ShutdownTimeout = d
		}
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", cfg.LogFormat))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EventsEnabled reports whether lifecycle events are published to Redpanda.
func (c Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Level returns the parsed LOG_LEVEL.
func (c Config) Level() zapcore.Level {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// NewLogger builds the service logger for the configured level and format.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func stringOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
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

func positiveInt(getenv func(string) string, key string, dst *int) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	*dst = n
	return nil
}
