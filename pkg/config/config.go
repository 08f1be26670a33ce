package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pario-ai/dynroute/pkg/models"
	"gopkg.in/yaml.v3"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all dynroute configuration.
type Config struct {
	Listen      string                     `yaml:"listen"`
	AdminListen string                     `yaml:"admin_listen"`
	Log         LogConfig                  `yaml:"log"`
	Cache       CacheConfig                `yaml:"cache"`
	Metrics     MetricsConfig              `yaml:"metrics"`
	Endpoints   []models.MappingDescriptor `yaml:"endpoints"`
}

// LogConfig controls the zap logger.
// Format is "json" (default) or "console".
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CacheConfig selects and tunes the response cache store.
type CacheConfig struct {
	Backend         string        `yaml:"backend"`
	DBPath          string        `yaml:"db_path"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	CoalesceMisses  bool          `yaml:"coalesce_misses"`
}

// MetricsConfig controls the Prometheus endpoint on the admin listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:      ":8080",
		AdminListen: ":8081",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			Backend:         BackendMemory,
			DBPath:          "dynroute.db",
			TTL:             time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns Default when path is empty or the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// AdminPaths are the static routes of the admin API. The metrics endpoint
// shares that listener and must not shadow them.
var AdminPaths = []string{"/routes", "/routes/one", "/cache", "/cache/stats", "/counter"}

func validateMetricsPath(p string) error {
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("%w: metrics.path must start with /", ErrInvalidConfig)
	}
	if strings.ContainsAny(p, ":*") {
		return fmt.Errorf("%w: metrics.path %q must not contain wildcards", ErrInvalidConfig, p)
	}
	for _, a := range AdminPaths {
		if p == a {
			return fmt.Errorf("%w: metrics.path %q collides with an admin route", ErrInvalidConfig, p)
		}
	}
	return nil
}

// Validate checks the listeners, cache backend and declared endpoints.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("%w: listen address is required", ErrInvalidConfig)
	}
	if c.AdminListen != "" && c.AdminListen == c.Listen {
		return fmt.Errorf("%w: admin_listen must differ from listen", ErrInvalidConfig)
	}

	switch c.Cache.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Cache.DBPath == "" {
			return fmt.Errorf("%w: cache.db_path is required for the sqlite backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalidConfig, c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("%w: cache.ttl must not be negative", ErrInvalidConfig)
	}
	if c.Cache.TTL > 0 && c.Cache.TTL < time.Second {
		return fmt.Errorf("%w: cache.ttl must be 0 or at least 1s", ErrInvalidConfig)
	}

	if c.Metrics.Enabled {
		if err := validateMetricsPath(c.Metrics.Path); err != nil {
			return err
		}
	}

	for i, ep := range c.Endpoints {
		if ep.Pattern == "" {
			return fmt.Errorf("%w: endpoints[%d]: pattern is required", ErrInvalidConfig, i)
		}
		if _, ok := models.NormalizeMethod(ep.Method); !ok {
			return fmt.Errorf("%w: endpoints[%d]: unsupported method %q", ErrInvalidConfig, i, ep.Method)
		}
		if ep.Caching != nil {
			if err := ep.Caching.Validate(); err != nil {
				return fmt.Errorf("%w: endpoints[%d]: %w", ErrInvalidConfig, i, err)
			}
		}
	}
	return nil
}
