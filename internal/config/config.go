// Package config loads vidindex settings.
//
// Precedence, highest first: command-line flags (applied by the CLI),
// VIDINDEX_* environment variables, the YAML file, built-in defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvDatabase    = "VIDINDEX_DB"
	EnvLogLevel    = "VIDINDEX_LOG_LEVEL"
	EnvMetricsAddr = "VIDINDEX_METRICS_ADDR"
)

// Config is the resolved configuration.
type Config struct {
	Database    string `yaml:"database"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsAddr string `yaml:"metrics_addr"`

	// StrictSchema checks every input line against the CUE event schema
	// before decoding.
	StrictSchema bool `yaml:"strict_schema"`

	Retry Retry `yaml:"retry"`
}

// Retry bounds how the indexer retries store failures.
type Retry struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:  "vidindex.db",
		LogLevel:  "info",
		LogFormat: "text",
		Retry: Retry{
			Attempts:   5,
			Backoff:    100 * time.Millisecond,
			MaxBackoff: 5 * time.Second,
		},
	}
}

// Load resolves defaults, the YAML file at path (optional: "" skips it)
// and the environment. It does not validate: callers layer their flag
// overrides on top and then call Validate once.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}

	cfg.Database = getEnv(EnvDatabase, cfg.Database)
	cfg.LogLevel = getEnv(EnvLogLevel, cfg.LogLevel)
	cfg.MetricsAddr = getEnv(EnvMetricsAddr, cfg.MetricsAddr)
	return cfg, nil
}

// decode overlays YAML onto cfg. Unknown keys are an error so that typos
// do not silently fall back to defaults.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Database == "" {
		return errors.New("database must not be empty")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1, got %d", c.Retry.Attempts)
	}
	if c.Retry.Backoff <= 0 || c.Retry.MaxBackoff < c.Retry.Backoff {
		return fmt.Errorf("retry backoff must satisfy 0 < backoff <= max_backoff, got %s and %s",
			c.Retry.Backoff, c.Retry.MaxBackoff)
	}
	return nil
}

// ParseLevel maps a level name (debug, info, warn, error) or a number to a
// slog level.
func ParseLevel(s string) (slog.Level, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return slog.Level(n), nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("log_level: unknown level %q", s)
	}
	return l, nil
}

// NewLogger builds the process logger described by c.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
