// Package config loads server configuration from YAML files and
// DIFFLENS_* environment variables. Platform credentials are never part
// of the configuration: they arrive with each request and live only as
// long as the review they serve.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Platforms PlatformsConfig `mapstructure:"platforms"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Type string `mapstructure:"type"` // "sqlite", "postgres", or "sqlserver"
	DSN  string `mapstructure:"dsn"`

	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // "debug", "info", "warn", "error"
	Format     string `mapstructure:"format"` // "json" or "text"
	OutputFile string `mapstructure:"output_file"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// PlatformsConfig carries per-platform instance settings. Base URLs are
// only needed for self-hosted instances; the cloud defaults are built in.
type PlatformsConfig struct {
	GitHub      PlatformConfig `mapstructure:"github"`
	GitLab      PlatformConfig `mapstructure:"gitlab"`
	AzureDevOps PlatformConfig `mapstructure:"azure_devops"`
	Bitbucket   PlatformConfig `mapstructure:"bitbucket"`
}

type PlatformConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// Load reads configuration from ./configs/config.yaml (or ./config.yaml),
// a .env file if present, and the environment. A missing config file is
// fine; defaults and environment variables cover everything.
func Load() (*Config, error) {
	_ = gotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("DIFFLENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.dsn", "./data/difflens.db")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_file", "")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
}
