package main

import (
	"garden-bridge/internal/broker"
	"garden-bridge/internal/config"
	"garden-bridge/internal/mqttlog"
)

// Config holds the Log Collector settings. Values come from the
// environment so the same image runs in Docker, K8s or on the Pi.
type Config struct {
	MQTT broker.Config

	// LogTopic is the filter we listen on (e.g. "logs/#").
	LogTopic string

	// LogDir is where <service>.log files are written. In Docker this is
	// usually a mounted volume.
	LogDir string

	LogLevel string
}

func LoadConfig() Config {
	return Config{
		MQTT: broker.Config{
			Broker:       config.GetEnv("MQTT_BROKER", "tcp://mosquitto:1883"),
			Username:     config.GetEnv("MQTT_USERNAME", ""),
			Password:     config.GetEnv("MQTT_PASSWORD", ""),
			ClientID:     config.GetEnv("MQTT_CLIENT_ID", ""),
			ClientPrefix: "log-collector",
		},
		LogTopic: config.GetEnv("LOG_TOPIC", mqttlog.TopicPrefix+"/#"),
		LogDir:   config.GetEnv("LOG_DIR", "/var/log/garden-bridge"),
		LogLevel: config.GetEnv("LOG_LEVEL", "info"),
	}
}
