package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration using viper.
// Precedence: CLI flags (applied by the caller) > environment > config file > defaults.
// Environment variables use the RK_ prefix with dots replaced by underscores,
// e.g. RK_SERVER_PORT or RK_DATABASE_URL.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	v := viper.New()

	d := DefaultServiceConfig()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout.String())
	v.SetDefault("server.metrics_addr", d.Server.MetricsAddr)
	v.SetDefault("engine.count_policy", d.Engine.CountPolicy)
	v.SetDefault("engine.audit", d.Engine.Audit)
	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetEnvPrefix("RK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := validateNoCredentialsInConfig(configPath); err != nil {
		return nil, err
	}

	cfg := &ServiceConfig{
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
			MetricsAddr:    v.GetString("server.metrics_addr"),
		},
		Engine: EngineConfig{
			CountPolicy: strings.ToLower(v.GetString("engine.count_policy")),
			Audit:       v.GetBool("engine.audit"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks ranges and enumerations. Callers that override fields from
// CLI flags should validate again.
func Validate(cfg *ServiceConfig) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	switch cfg.Engine.CountPolicy {
	case "considered", "matched":
	default:
		return fmt.Errorf("engine.count_policy must be considered or matched, got %q", cfg.Engine.CountPolicy)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Log.Format)
	}
	return nil
}

// validateNoCredentialsInConfig keeps database passwords out of config files.
// A password is fine when it arrives through RK_DATABASE_URL or --db-url, so
// the file is read on its own, without environment overlay.
func validateNoCredentialsInConfig(configPath string) error {
	if configPath == "" {
		return nil
	}
	fv := viper.New()
	fv.SetConfigFile(configPath)
	if err := fv.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if hasPassword(fv.GetString("database.url")) {
		return fmt.Errorf("database credentials not allowed in config files (use RK_DATABASE_URL environment variable)")
	}
	return nil
}
