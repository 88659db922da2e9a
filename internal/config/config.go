// Package config loads exporter configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the exporter configuration.
type Config struct {
	API   APIConfig   `yaml:"api"`
	Fetch FetchConfig `yaml:"fetch"`
	Redis RedisConfig `yaml:"redis"`
	Log   LogConfig   `yaml:"log"`
}

// APIConfig configures the Opsgenie gateway.
type APIConfig struct {
	// Key is the Opsgenie API key. Also settable via GENIE_API_KEY.
	Key string `yaml:"key"`

	// BaseURL overrides the API root. Mostly for tests.
	BaseURL string `yaml:"base_url"`

	// TimeoutSeconds per HTTP request.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// FetchConfig configures pacing and parallelism.
type FetchConfig struct {
	// RequestsPerSecond is the shared request budget across all workers.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// MaxConcurrency bounds in-flight chunk fetches (0 = number of CPUs).
	MaxConcurrency int `yaml:"max_concurrency"`
}

// RedisConfig configures optional shared throttle state.
type RedisConfig struct {
	// Addr is host:port of a Redis shared by exporter instances using the
	// same API key. Empty disables Redis. Also settable via GENIE_REDIS_ADDR.
	Addr string `yaml:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			TimeoutSeconds: 30,
		},
		Fetch: FetchConfig{
			RequestsPerSecond: 2,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path when it exists, then applies environment
// overrides and defaults. An empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GENIE_API_KEY"); v != "" {
		cfg.API.Key = v
	}
	if v := os.Getenv("GENIE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("GENIE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.API.TimeoutSeconds <= 0 {
		cfg.API.TimeoutSeconds = 30
	}
	if cfg.Fetch.RequestsPerSecond <= 0 {
		cfg.Fetch.RequestsPerSecond = 2
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate rejects configurations the exporter cannot run with. The API key
// is checked at command time rather than here so --help works without one.
func Validate(cfg *Config) error {
	if cfg.Fetch.MaxConcurrency < 0 {
		return fmt.Errorf("fetch.max_concurrency must be >= 0 (got %d)", cfg.Fetch.MaxConcurrency)
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level)
	}
	return nil
}
