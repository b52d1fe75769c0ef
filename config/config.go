// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
)

// Config holds the settings shared by the three services. Each binary reads
// only the fields it needs.
type Config struct {
	HTTPAddr      string `env:"HTTP_ADDR" envDefault:":8080"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	ConsumerGroup string `env:"CONSUMER_GROUP" envDefault:"bank-account-projection"`
	ConsumerName  string `env:"CONSUMER_NAME"`
	DatabaseDSN   string `env:"DATABASE_DSN" envDefault:"host=localhost user=postgres password=postgres dbname=banking port=5432 sslmode=disable"`
	EventStoreDir string `env:"EVENT_STORE_DIR" envDefault:"data/events"`
	LogMode       string `env:"LOG_MODE" envDefault:"production"`
}

// Load parses the configuration from the environment. The consumer name
// defaults to the hostname so replicas join the group under distinct names.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.ConsumerName == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "consumer"
		}
		cfg.ConsumerName = host
	}
	return cfg, nil
}

// Logger builds the zap logger for the configured mode.
func (c *Config) Logger() (*zap.Logger, error) {
	if c.LogMode == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
