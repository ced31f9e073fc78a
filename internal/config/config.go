package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	SitesFile      string `mapstructure:"sites_file"`
	PublishersFile string `mapstructure:"publishers_file"`

	StorageType string `mapstructure:"storage_type"`
	BBoltPath   string `mapstructure:"bbolt_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`

	APIListenAddr string `mapstructure:"api_listen_addr"`
	APIPageSize   int    `mapstructure:"api_page_size"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "kaay-emploi-harvester")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("sites_file", "./configs/sites.yaml")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/postings.db")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("api_listen_addr", ":8080")
	v.SetDefault("api_page_size", 20)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.StorageType == "postgres" && cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("postgres storage requires postgres_dsn")
	}
	if cfg.APIPageSize <= 0 {
		return nil, fmt.Errorf("invalid api_page_size (must be positive)")
	}

	return &cfg, nil
}
