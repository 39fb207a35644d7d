// Package loader resolves the metricsd runtime configuration.
//
// Resolution order: environment variables provide the defaults, then an
// optional override file shallow-merges on top. The override file is
// parsed as YAML; since YAML is a superset of JSON, a JSON file works
// unchanged. Resolution happens once at startup — there is no hot reload.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/metricsd/config"
	"github.com/xtxerr/metricsd/internal/storage"
)

// Config is the resolved runtime configuration.
type Config struct {
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	Storage   StorageConfig   `yaml:"storage"`
	Retention RetentionConfig `yaml:"retention"`
}

// StorageConfig selects and parameterizes the storage backend.
type StorageConfig struct {
	Type       string       `yaml:"type"`
	Path       string       `yaml:"path"`
	ArchiveDir string       `yaml:"archive_dir"`
	Remote     RemoteConfig `yaml:"remote"`
}

// RemoteConfig holds remote adapter connection parameters.
type RemoteConfig struct {
	URL       string `yaml:"url"`
	Token     string `yaml:"token"`
	Bucket    string `yaml:"bucket"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// RetentionConfig tunes the background expiry sweep.
type RetentionConfig struct {
	Days          int `yaml:"days"`
	IntervalHours int `yaml:"interval_hours"`
}

// FromEnv builds a Config from environment variables, falling back to the
// documented defaults for anything unset.
func FromEnv() *Config {
	return &Config{
		Listen:   envString("METRICSD_LISTEN", config.DefaultListenAddress),
		LogLevel: envString("METRICSD_LOG_LEVEL", "info"),
		LogJSON:  envBool("METRICSD_LOG_JSON", false),
		Storage: StorageConfig{
			Type:       envString("METRICSD_DB_TYPE", storage.TypeEmbedded),
			Path:       envString("METRICSD_DB_PATH", config.DefaultDBPath),
			ArchiveDir: envString("METRICSD_ARCHIVE_DIR", ""),
			Remote: RemoteConfig{
				URL:       envString("METRICSD_REMOTE_URL", ""),
				Token:     envString("METRICSD_REMOTE_TOKEN", ""),
				Bucket:    envString("METRICSD_REMOTE_BUCKET", config.DefaultRemoteBucket),
				TimeoutMs: envInt("METRICSD_REMOTE_TIMEOUT_MS", config.DefaultRemoteTimeoutMs),
			},
		},
		Retention: RetentionConfig{
			Days:          envInt("METRICSD_RETENTION_DAYS", config.DefaultCleanupDays),
			IntervalHours: envInt("METRICSD_RETENTION_INTERVAL_HOURS", 24),
		},
	}
}

// Load resolves the configuration: environment first, then the override
// file at path shallow-merged on top. A missing file is not an error when
// path is empty; an explicitly given path must exist.
func Load(path string) (*Config, error) {
	cfg := FromEnv()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables inside the file before parsing.
	expanded := os.ExpandEnv(string(data))

	// Unmarshal onto the env-resolved config: keys absent from the file
	// keep their environment values.
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// LoadOptional behaves like Load but treats a missing file as "use env
// only". Used for the default config path, which may legitimately not
// exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return FromEnv(), nil
	}
	return cfg, err
}

// ToStorageConfig converts the loader view to the storage package's
// backend configuration.
func (c *Config) ToStorageConfig() storage.Config {
	return storage.Config{
		Type:       strings.ToLower(c.Storage.Type),
		Path:       c.Storage.Path,
		ArchiveDir: c.Storage.ArchiveDir,
		Remote: storage.RemoteConfig{
			URL:     c.Storage.Remote.URL,
			Token:   c.Storage.Remote.Token,
			Bucket:  c.Storage.Remote.Bucket,
			Timeout: time.Duration(c.Storage.Remote.TimeoutMs) * time.Millisecond,
		},
	}
}

// RetentionPeriod returns the configured retention duration.
func (c *Config) RetentionPeriod() time.Duration {
	days := c.Retention.Days
	if days <= 0 {
		days = config.DefaultCleanupDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// CleanupInterval returns the configured sweep interval.
func (c *Config) CleanupInterval() time.Duration {
	hours := c.Retention.IntervalHours
	if hours <= 0 {
		return config.DefaultCleanupInterval
	}
	return time.Duration(hours) * time.Hour
}

// SlogLevel maps the configured level string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Environment helpers
// =============================================================================

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
