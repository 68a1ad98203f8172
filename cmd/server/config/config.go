// Package config provides configuration structures for the dataset server.
package config

import (
	"fmt"
	"time"
)

// Config represents the server configuration.
type Config struct {
	// Server settings
	Address         string        `yaml:"address" json:"address"`
	LogLevel        string        `yaml:"log_level" json:"log_level"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// CORS configuration
	CORS CORSConfig `yaml:"cors" json:"cors"`

	// Authentication configuration
	Auth AuthConfig `yaml:"auth" json:"auth"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Persistent storage configuration
	Database DatabaseConfig `yaml:"database" json:"database"`

	// View cache configuration
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Loader configuration
	Loader LoaderConfig `yaml:"loader" json:"loader"`
}

// CORSConfig represents CORS configuration.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// AuthConfig represents authentication configuration.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Type    string `yaml:"type" json:"type"` // bearer, jwt

	// Bearer token auth: token -> principal name
	Tokens map[string]string `yaml:"tokens" json:"tokens"`

	// JWT auth
	JWT JWTConfig `yaml:"jwt" json:"jwt"`
}

// JWTConfig represents JWT authentication configuration.
type JWTConfig struct {
	Secret   string `yaml:"secret" json:"secret"`
	Issuer   string `yaml:"issuer" json:"issuer"`
	Audience string `yaml:"audience" json:"audience"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
	Path    string `yaml:"path" json:"path"`
}

// DatabaseConfig represents DuckDB persistence configuration. An empty path
// disables persistence.
type DatabaseConfig struct {
	Path string `yaml:"path" json:"path"`
}

// CacheConfig represents view cache configuration.
type CacheConfig struct {
	Enabled  bool  `yaml:"enabled" json:"enabled"`
	MaxBytes int64 `yaml:"max_bytes" json:"max_bytes"`
}

// LoaderConfig represents dataset loader configuration.
type LoaderConfig struct {
	HTTPTimeout  time.Duration `yaml:"http_timeout" json:"http_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
}

// Validate validates the configuration and fills defaults.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address is required")
	}

	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}

	// Validate auth
	if c.Auth.Enabled {
		switch c.Auth.Type {
		case "bearer":
			if len(c.Auth.Tokens) == 0 {
				return fmt.Errorf("bearer auth requires at least one token")
			}
		case "jwt":
			if c.Auth.JWT.Secret == "" {
				return fmt.Errorf("JWT auth requires secret")
			}
		default:
			return fmt.Errorf("unsupported auth type: %s", c.Auth.Type)
		}
	}

	// Set defaults for metrics
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}

	// Set defaults for cache
	if c.Cache.MaxBytes <= 0 {
		c.Cache.MaxBytes = 256 * 1024 * 1024 // 256MB
	}

	// Set defaults for loader
	if c.Loader.HTTPTimeout <= 0 {
		c.Loader.HTTPTimeout = 30 * time.Second
	}
	if c.Loader.MaxBodyBytes <= 0 {
		c.Loader.MaxBodyBytes = 512 * 1024 * 1024 // 512MB
	}

	return nil
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:         "0.0.0.0:8080",
		LogLevel:        "info",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		CORS: CORSConfig{
			Enabled:        true,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Auth: AuthConfig{
			Enabled: false,
			Type:    "bearer",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: ":9090",
			Path:    "/metrics",
		},
		Database: DatabaseConfig{
			Path: "",
		},
		Cache: CacheConfig{
			Enabled:  true,
			MaxBytes: 256 * 1024 * 1024,
		},
		Loader: LoaderConfig{
			HTTPTimeout:  30 * time.Second,
			MaxBodyBytes: 512 * 1024 * 1024,
		},
	}
}
