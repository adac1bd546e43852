// Package config provides configuration management for rulekeeper services.
package config

import (
	"net/url"
	"time"
)

// ServiceConfig holds everything the CLI needs to run the engine.
type ServiceConfig struct {
	Server   ServerConfig
	Engine   EngineConfig
	Database DatabaseConfig
	Log      LogConfig
}

// ServerConfig configures the gRPC listener and the metrics endpoint.
type ServerConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	// MetricsAddr is the listen address for /metrics; empty disables it.
	MetricsAddr string
}

// EngineConfig configures rule execution.
type EngineConfig struct {
	// CountPolicy is "considered" or "matched".
	CountPolicy string
	// Audit enables the rule execution log.
	Audit bool
}

// DatabaseConfig names the datastore.
type DatabaseConfig struct {
	URL string
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// DefaultServiceConfig returns configuration with default values.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           50061,
			RequestTimeout: 10 * time.Second,
			MetricsAddr:    ":9090",
		},
		Engine: EngineConfig{
			CountPolicy: "considered",
			Audit:       true,
		},
		Database: DatabaseConfig{
			URL: "sqlite://rulekeeper.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// hasPassword reports whether a database URL embeds a password.
func hasPassword(dbURL string) bool {
	u, err := url.Parse(dbURL)
	if err != nil || u.User == nil {
		return false
	}
	_, ok := u.User.Password()
	return ok
}
