package main

import (
	"garden-bridge/internal/config"
	"garden-bridge/internal/store"
)

// Config is the read side of the data logger's configuration.
type Config struct {
	Store      store.Config
	ValkeyAddr string
	LogLevel   string
}

func LoadConfig() Config {
	return Config{
		Store: store.Config{
			Driver:      config.GetEnv("STORE_DRIVER", store.DriverSQLite),
			Path:        config.GetEnv("DB_FILE", "iot_garden_data.db"),
			PostgresURL: config.GetEnv("POSTGRES_URL", ""),
		},
		ValkeyAddr: config.GetEnv("VALKEY_ADDR", ""),
		LogLevel:   config.GetEnv("LOG_LEVEL", "warn"),
	}
}
