// Package config содержит логику чтения конфигурации сервиса префондирования.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса префондирования.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	DatabaseURI    string `env:"DATABASE_URI"`
	StorageAddress string `env:"STORAGE_ADDRESS"`
	StorageBucket  string `env:"STORAGE_BUCKET"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envStorageAddress := cfg.StorageAddress
	envStorageBucket := cfg.StorageBucket

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.StorageAddress, "s", "", "object storage address")
	flag.StringVar(&cfg.StorageBucket, "b", "receipts", "object storage bucket for receipts")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envStorageAddress != "" {
		cfg.StorageAddress = envStorageAddress
	}
	if envStorageBucket != "" {
		cfg.StorageBucket = envStorageBucket
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
