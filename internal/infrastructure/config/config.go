// Package config loads service configuration from the environment, with an
// optional YAML overrides file layered on top.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Cache     CacheConfig     `yaml:"cache"`
	Policy    PolicyConfig    `yaml:"policy"`
	PageSpeed PageSpeedConfig `yaml:"pagespeed"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" yaml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
}

// FetchConfig holds outbound page-fetch configuration.
type FetchConfig struct {
	Timeout   time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s" yaml:"timeout"`
	UserAgent string        `envconfig:"FETCH_USER_AGENT" default:"PageLift-Optimizer/1.0" yaml:"user_agent"`
	RateRPS   float64       `envconfig:"FETCH_RATE_RPS" default:"0" yaml:"rate_rps"`
}

// CacheConfig holds the optimization cache configuration.
type CacheConfig struct {
	TTL time.Duration `envconfig:"CACHE_TTL" default:"600s" yaml:"ttl"`
}

// PolicyConfig holds blocking-policy configuration.
type PolicyConfig struct {
	OwnOrigins  []string `envconfig:"POLICY_OWN_ORIGINS" default:"localhost,pagelift.dev" yaml:"own_origins"`
	ExemptHosts []string `envconfig:"POLICY_EXEMPT_HOSTS" yaml:"exempt_hosts"`
}

// PageSpeedConfig holds the PageSpeed proxy configuration.
type PageSpeedConfig struct {
	Endpoint string        `envconfig:"PAGESPEED_ENDPOINT" yaml:"endpoint"`
	APIKey   string        `envconfig:"PAGESPEED_API_KEY" yaml:"api_key"`
	Timeout  time.Duration `envconfig:"PAGESPEED_TIMEOUT" default:"45s" yaml:"timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
	File        string `envconfig:"LOG_FILE" yaml:"file"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadFile loads configuration from the environment, then applies overrides
// from a YAML file. Fields absent from the file keep their env/default
// values.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Fetch: FetchConfig{
			Timeout:   30 * time.Second,
			UserAgent: "PageLift-Optimizer/1.0",
		},
		Cache: CacheConfig{
			TTL: 600 * time.Second,
		},
		Policy: PolicyConfig{
			OwnOrigins: []string{"localhost", "pagelift.dev"},
		},
		PageSpeed: PageSpeedConfig{
			Timeout: 45 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
