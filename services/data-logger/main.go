package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"garden-bridge/internal/broker"
	"garden-bridge/internal/config"
	"garden-bridge/internal/health"
	"garden-bridge/internal/livecache"
	"garden-bridge/internal/mqttlog"
	"garden-bridge/internal/store"
)

const serviceName = "data-logger"

func main() {
	// 1. Configuration
	config.LoadDotEnv()
	cfg := LoadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	topics := broker.NewTopics(cfg.Namespace)

	// 2. MQTT client first, so the logger can publish through it
	var events *EventLogger
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		events.HandleMessage(ctx, msg.Topic(), msg.Payload())
	}
	var subs []broker.Subscription
	for _, t := range topics.All() {
		subs = append(subs, broker.Subscription{Topic: t, QoS: 0})
	}

	var logger *slog.Logger
	client := broker.NewClient(cfg.MQTT, handler, subs, func(topic string, err error) {
		logger.Error("subscribe failed", "topic", topic, "error", err)
	})

	// 3. Logger
	var pub mqttlog.Publisher
	if cfg.LogToMQTT {
		pub = client
	}
	logger = mqttlog.NewLogger(pub, serviceName, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting mqtt to database logger",
		"broker", cfg.MQTT.Broker,
		"namespace", topics.Namespace,
		"driver", cfg.Store.Driver,
		"database", cfg.Store.Path,
		"valkey", cfg.ValkeyAddr,
	)

	// 4. Storage: schema is created on first run
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		logger.Error("cannot open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	if err := st.Init(ctx); err != nil {
		logger.Error("cannot initialise database", "error", err)
		os.Exit(1)
	}
	logger.Info("database initialised", "driver", cfg.Store.Driver)

	// 5. Optional live cache. Losing it is not fatal; rows still land in the store.
	var live LiveCache
	cache, err := livecache.Connect(ctx, cfg.ValkeyAddr)
	switch {
	case err != nil:
		logger.Warn("live cache disabled", "error", err)
	case cache != nil:
		defer cache.Close()
		live = cache
		logger.Info("live cache connected", "addr", cfg.ValkeyAddr)
	}

	events = NewEventLogger(st, live, logger)

	// 6. Health and status endpoints
	go health.Serve(ctx, cfg.HTTPPort, func() any {
		return map[string]any{
			"service":   serviceName,
			"driver":    cfg.Store.Driver,
			"connected": client.IsConnectionOpen(),
			"counters":  events.Counters(),
		}
	}, logger)

	// 7. Connect and subscribe to <ns>/sensor/state, device/state, sys/online, device/cmd
	if err := broker.Connect(client); err != nil {
		logger.Error("mqtt connection failed", "broker", cfg.MQTT.Broker, "error", err)
		os.Exit(1)
	}
	defer client.Disconnect(250)
	logger.Info("logger started", "topics", topics.All())

	// 8. Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("logger stopped", "counters", events.Counters())
	cancel()
}
