// Package config loads sheetrag's configuration from a YAML file with
// environment-variable overrides, following the layered viper pattern the
// teacher pack uses for its own services.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ErrConfigNotFound names the missing-config-file condition. Load does not
// return it: a missing config.yaml is not an error, and defaults plus
// SHEETRAG_* env vars apply instead.
var ErrConfigNotFound = errors.New("configuration file not found")

// Config is the complete application configuration.
type Config struct {
	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	Storage struct {
		DBPath string `mapstructure:"db_path"`
	} `mapstructure:"storage"`

	Embedding struct {
		Host      string `mapstructure:"host"`
		Model     string `mapstructure:"model"`
		BatchSize int    `mapstructure:"batch_size"`
	} `mapstructure:"embedding"`

	LLM struct {
		Host  string `mapstructure:"host"`
		Model string `mapstructure:"model"`
	} `mapstructure:"llm"`

	Cache struct {
		Backend    string `mapstructure:"backend"` // "memory" or "redis"
		RedisAddr  string `mapstructure:"redis_addr"`
		RedisDB    int    `mapstructure:"redis_db"`
		TTLSeconds int    `mapstructure:"ttl_seconds"`
	} `mapstructure:"cache"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// Load reads configuration from configPath (a directory containing
// config.yaml) and layers SHEETRAG_-prefixed environment variables on top,
// following viper's standard precedence (env beats file beats default).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}

	v.SetEnvPrefix("SHEETRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No file on disk is not fatal: defaults plus env vars may be enough.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8002)

	v.SetDefault("storage.db_path", "./data/sheetrag.db")

	v.SetDefault("embedding.host", "")
	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("embedding.batch_size", 32)

	v.SetDefault("llm.host", "")
	v.SetDefault("llm.model", "llama3.1")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl_seconds", 86400)

	v.SetDefault("log.level", "info")
}
