package main

import (
	"errors"
	"time"

	"garden-bridge/internal/alert"
	"garden-bridge/internal/broker"
	"garden-bridge/internal/config"
)

// Config holds everything the notifier reads from the environment.
// 12-factor: no setting lives in code; .env files fill gaps only.
type Config struct {
	MQTT      broker.Config
	Namespace string

	// Alerting
	Threshold float64
	Cooldown  time.Duration

	// Discord webhook the cards are posted to
	WebhookURL     string
	WebhookTimeout time.Duration

	// App
	HTTPPort  string // empty disables /health and /status
	LogLevel  string
	LogToMQTT bool
}

// LoadConfig reads the environment. Missing values fall back to defaults.
func LoadConfig() Config {
	return Config{
		MQTT: broker.Config{
			Broker:       config.GetEnv("MQTT_BROKER", "tcp://mosquitto:1883"),
			Username:     config.GetEnv("MQTT_USERNAME", ""),
			Password:     config.GetEnv("MQTT_PASSWORD", ""),
			ClientID:     config.GetEnv("MQTT_CLIENT_ID", ""),
			ClientPrefix: "alert-notifier",
		},
		Namespace: config.GetEnv("TOPIC_NS", broker.DefaultNamespace),

		Threshold: config.GetEnvFloat("TEMP_THRESHOLD", alert.DefaultThreshold),
		Cooldown:  config.GetEnvSeconds("ALERT_COOLDOWN", alert.DefaultCooldown),

		WebhookURL:     config.GetEnv("DISCORD_WEBHOOK_URL", ""),
		WebhookTimeout: config.GetEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),

		HTTPPort:  config.GetEnv("HTTP_PORT", "8080"),
		LogLevel:  config.GetEnv("LOG_LEVEL", "info"),
		LogToMQTT: config.GetEnvBool("LOG_TO_MQTT", true),
	}
}

// Validate reports settings the notifier cannot run without.
func (c Config) Validate() error {
	var errs []error
	if c.WebhookURL == "" {
		errs = append(errs, errors.New("DISCORD_WEBHOOK_URL is not set"))
	}
	if c.MQTT.Broker == "" {
		errs = append(errs, errors.New("MQTT_BROKER is empty"))
	}
	return errors.Join(errs...)
}

// AlertConfig is the state machine part of the configuration.
func (c Config) AlertConfig() alert.Config {
	return alert.Config{Threshold: c.Threshold, Cooldown: c.Cooldown}
}
