// Package config loads the service configuration from YAML with validated
// defaults.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// HTTPConfig configures the export API surface.
type HTTPConfig struct {
	Listen      string  `yaml:"listen" validate:"required"`
	RateLimit   float64 `yaml:"rate_limit" validate:"gt=0"` // requests per second
	RateBurst   int     `yaml:"rate_burst" validate:"gt=0"`
	EnableDebug bool    `yaml:"enable_debug"`
}

// RedisConfig configures the optional multiplier snapshot publisher.
type RedisConfig struct {
	Addr     string `yaml:"addr"` // empty disables publishing
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// PostgresConfig configures the optional trade/update archive.
type PostgresConfig struct {
	DSN string `yaml:"dsn"` // empty disables archiving
}

// Config is the top-level service configuration.
type Config struct {
	DataDir  string         `yaml:"data_dir" validate:"required"`
	HTTP     HTTPConfig     `yaml:"http"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// Default returns the production defaults.
func Default() *Config {
	return &Config{
		DataDir: "data",
		HTTP: HTTPConfig{
			Listen:    ":8093",
			RateLimit: 20,
			RateBurst: 40,
		},
		Redis: RedisConfig{
			Key: "adaptive:multipliers",
		},
	}
}

// Load reads YAML from path over the defaults and validates the result.
// An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
