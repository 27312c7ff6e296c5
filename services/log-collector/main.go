package main

import (
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"garden-bridge/internal/broker"
	"garden-bridge/internal/config"
	"garden-bridge/internal/mqttlog"
)

func main() {
	// 1. Configuration
	config.LoadDotEnv()
	cfg := LoadConfig()

	// 2. Own logger, stdout only: publishing our logs to logs/ would feed
	// them straight back to us.
	logger := mqttlog.NewLogger(nil, "log-collector", cfg.LogLevel)
	logger.Info("starting log collector", "dir", cfg.LogDir, "topic", cfg.LogTopic)

	// 3. Log directory
	collector, err := NewCollector(cfg.LogDir)
	if err != nil {
		logger.Error("cannot prepare log directory", "error", err)
		os.Exit(1)
	}

	// 4. Handler: one file line per message from any service
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		if err := collector.Append(msg.Topic(), msg.Payload()); err != nil {
			logger.Error("cannot write log line", "topic", msg.Topic(), "error", err)
		}
	}

	// 5. Connect; subscription is renewed on every reconnect
	client := broker.NewClient(cfg.MQTT, handler,
		[]broker.Subscription{{Topic: cfg.LogTopic, QoS: 0}},
		func(topic string, err error) {
			logger.Error("subscribe failed", "topic", topic, "error", err)
		})
	if err := broker.Connect(client); err != nil {
		logger.Error("mqtt connection failed", "error", err)
		os.Exit(1)
	}
	defer client.Disconnect(250)
	logger.Info("listening for logs", "topic", cfg.LogTopic)

	// 6. Wait for shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("log collector stopped")
}
