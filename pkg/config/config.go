// Package config loads bookchat client configuration from a YAML file with
// environment-variable fallbacks.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the client configuration.
type Config struct {
	// Backend
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Chat behavior
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	WelcomeText    string        `yaml:"welcome_text"`
	SendErrorText  string        `yaml:"send_error_text"`
	SendRate       float64       `yaml:"send_rate"`
	SendBurst      int           `yaml:"send_burst"`
	KeyCap         int           `yaml:"processed_key_cap"`
	HistoryLimit   int           `yaml:"history_limit"`

	// Storage
	Storage StorageConfig `yaml:"storage"`

	// Janitor
	Janitor JanitorConfig `yaml:"janitor"`

	// Metrics
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// StorageConfig selects and configures the local session store.
type StorageConfig struct {
	// Backend is "file" or "redis".
	Backend string `yaml:"backend"`
	// Dir is the base directory for the file backend (default ~/.bookchat).
	Dir string `yaml:"dir"`
	// Redis configures the redis backend.
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds redis store settings.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// JanitorConfig controls scheduled pruning of stale session mirrors.
type JanitorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Schedule string        `yaml:"schedule"`
	MaxAge   time.Duration `yaml:"max_age"`
}

// MetricsConfig controls the observability server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads configuration from a YAML file. A missing path yields the
// defaults. Environment variables fill in anything the file leaves empty.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 - path comes from the user's own flag
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if c.BaseURL == "" {
		c.BaseURL = os.Getenv("BOOKCHAT_BASE_URL")
	}
	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = os.Getenv("BOOKCHAT_REDIS_ADDR")
	}
	if c.Storage.Redis.Password == "" {
		c.Storage.Redis.Password = os.Getenv("BOOKCHAT_REDIS_PASSWORD")
	}
	if c.LogLevel == "" {
		c.LogLevel = os.Getenv("BOOKCHAT_LOG_LEVEL")
	}
	if c.Metrics.Port == 0 {
		if port, err := strconv.Atoi(os.Getenv("BOOKCHAT_METRICS_PORT")); err == nil {
			c.Metrics.Port = port
		}
	}
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8000"
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = 50
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Janitor.Schedule == "" {
		c.Janitor.Schedule = "@hourly"
	}
	if c.Janitor.MaxAge == 0 {
		c.Janitor.MaxAge = 30 * 24 * time.Hour
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	switch c.Storage.Backend {
	case "file":
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.SendRate < 0 {
		return fmt.Errorf("send_rate cannot be negative")
	}
	return nil
}

// Save writes the configuration to a YAML file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
