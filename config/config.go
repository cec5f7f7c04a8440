// Package config loads server configuration from defaults, an optional
// config file and POINTS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the points server.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Economy   EconomyConfig   `mapstructure:"economy"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	LogLevel  string          `mapstructure:"log_level"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig selects the store. Driver is "sqlite3" or "postgres".
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// EconomyConfig holds the tunable economy rules.
type EconomyConfig struct {
	Timezone         string `mapstructure:"timezone"`
	ExchangeCost     int64  `mapstructure:"exchange_cost"`
	DailyExchangeCap int    `mapstructure:"daily_exchange_cap"`
	RetryAttempts    int    `mapstructure:"retry_attempts"`
}

// CatalogConfig points at an optional JSON or TOML catalog file.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// SchedulerConfig controls quota counter pruning.
type SchedulerConfig struct {
	PruneInterval time.Duration `mapstructure:"prune_interval"`
	RetainDays    int           `mapstructure:"retain_days"`
}

// EnvPrefix is prepended to every environment override, e.g. POINTS_DATABASE_DSN.
const EnvPrefix = "POINTS"

// Load reads configuration. An explicit path must exist; with an empty path
// a "points.{yaml,toml,json}" in the working directory is used if present.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("points")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "points.db")
	v.SetDefault("economy.timezone", "UTC")
	v.SetDefault("economy.exchange_cost", 10)
	v.SetDefault("economy.daily_exchange_cap", 3)
	v.SetDefault("economy.retry_attempts", 5)
	v.SetDefault("catalog.path", "")
	v.SetDefault("scheduler.prune_interval", time.Hour)
	v.SetDefault("scheduler.retain_days", 7)
	v.SetDefault("log_level", "info")
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("config: unsupported database.driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("config: database.dsn is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Economy.ExchangeCost <= 0 {
		return errors.New("config: economy.exchange_cost must be positive")
	}
	if c.Economy.DailyExchangeCap < 1 {
		return errors.New("config: economy.daily_exchange_cap must be at least 1")
	}
	if c.Economy.RetryAttempts < 1 {
		return errors.New("config: economy.retry_attempts must be at least 1")
	}
	if _, err := time.LoadLocation(c.Economy.Timezone); err != nil {
		return fmt.Errorf("config: economy.timezone: %w", err)
	}
	return nil
}
