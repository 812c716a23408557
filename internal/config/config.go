package config

import (
	"errors"
	"time"
)

// Config represents the monitor service configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Jamf      JamfConfig      `mapstructure:"jamf"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Settings  SettingsConfig  `mapstructure:"settings"`
	Evaluator EvaluatorConfig `mapstructure:"evaluator"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// JamfConfig represents the upstream Jamf Pro connection
type JamfConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	ClientID         string        `mapstructure:"client_id"`
	ClientSecret     string        `mapstructure:"client_secret"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	TokenGracePeriod time.Duration `mapstructure:"token_grace_period"`
}

// DatabaseConfig represents the PostgreSQL store configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MinConnections int    `mapstructure:"min_connections"`
}

// RedisConfig represents the Redis cache backend configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig controls the device health cache
type CacheConfig struct {
	// Backend selects the cache implementation: postgres, redis or memory
	Backend       string        `mapstructure:"backend"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// SettingsConfig controls where thresholds and group settings are persisted
type SettingsConfig struct {
	// Backend selects the settings store implementation: postgres or memory
	Backend string `mapstructure:"backend"`
}

// EvaluatorConfig controls bulk evaluation fan-out
type EvaluatorConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
	QueueSize     int `mapstructure:"queue_size"`
}

// RateLimitConfig represents inbound request rate limiting
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// MetricsConfig represents Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if c.Jamf.BaseURL == "" {
		return errors.New("jamf.base_url is required")
	}
	if c.Jamf.ClientID == "" {
		return errors.New("jamf.client_id is required")
	}
	if c.Jamf.ClientSecret == "" {
		return errors.New("jamf.client_secret is required")
	}
	switch c.Cache.Backend {
	case "postgres", "redis", "memory":
	default:
		return errors.New("cache.backend must be one of: postgres, redis, memory")
	}
	switch c.Settings.Backend {
	case "postgres", "memory":
	default:
		return errors.New("settings.backend must be one of: postgres, memory")
	}
	if c.Cache.Backend == "postgres" || c.Settings.Backend == "postgres" {
		if c.Database.Host == "" {
			return errors.New("database.host is required")
		}
		if c.Database.Database == "" {
			return errors.New("database.database is required")
		}
		if c.Database.User == "" {
			return errors.New("database.user is required")
		}
	}
	if c.Cache.Backend == "redis" && c.Redis.Host == "" {
		return errors.New("redis.host is required")
	}
	if c.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be positive")
	}
	if c.Evaluator.MaxConcurrent <= 0 {
		return errors.New("evaluator.max_concurrent must be positive")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Jamf: JamfConfig{
			RequestTimeout:   30 * time.Second,
			TokenGracePeriod: 5 * time.Minute,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "jamf_monitor",
			User:           "monitor",
			MaxConnections: 20,
			MinConnections: 2,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
			DB:   0,
		},
		Cache: CacheConfig{
			Backend:       "memory",
			TTL:           5 * time.Minute,
			SweepInterval: 10 * time.Minute,
		},
		Settings: SettingsConfig{
			Backend: "memory",
		},
		Evaluator: EvaluatorConfig{
			MaxConcurrent: 16,
			QueueSize:     256,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 50,
			BurstSize:         100,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
