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
	"garden-bridge/internal/mqttlog"
	"garden-bridge/internal/notify"
	"garden-bridge/internal/sysinfo"
)

const serviceName = "alert-notifier"

func main() {
	// 1. Configuration (.env first, the real environment wins)
	config.LoadDotEnv()
	cfg := LoadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	topics := broker.NewTopics(cfg.Namespace)

	// 2. MQTT client. It is created before the logger so that log lines can
	// be published through it; the handler only runs once we are subscribed.
	var notifier *Notifier
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		notifier.HandleMessage(ctx, msg.Topic(), msg.Payload())
	}
	subs := []broker.Subscription{{Topic: topics.SensorState(), QoS: 0}}

	// OnConnect only fires after Connect below, when logger is set.
	var logger *slog.Logger
	client := broker.NewClient(cfg.MQTT, handler, subs, func(topic string, err error) {
		logger.Error("subscribe failed", "topic", topic, "error", err)
	})

	// 3. Logger: stdout, plus logs/alert-notifier when enabled
	var pub mqttlog.Publisher
	if cfg.LogToMQTT {
		pub = client
	}
	logger = mqttlog.NewLogger(pub, serviceName, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("starting temperature alert system",
		"broker", cfg.MQTT.Broker,
		"topic", topics.SensorState(),
		"threshold_c", cfg.Threshold,
		"cooldown_sec", int64(cfg.Cooldown.Seconds()),
		"webhook_timeout", cfg.WebhookTimeout.String(),
		"http_port", cfg.HTTPPort,
	)

	// 4. Webhook client and the state machine driver
	discord := notify.NewClient(cfg.WebhookURL, cfg.WebhookTimeout)
	notifier = NewNotifier(cfg.AlertConfig(), discord, cfg.WebhookTimeout, logger)

	// 5. Startup test card, so a bad webhook shows up right away
	host := sysinfo.Collect(ctx, "", logger)
	logger.Info("testing discord webhook")
	if notifier.SendStartupTest(ctx, notify.StartupInfo{
		Threshold: cfg.Threshold,
		Cooldown:  cfg.Cooldown,
		Broker:    cfg.MQTT.Broker,
		Host:      host.Label(),
	}) {
		logger.Info("discord webhook test successful")
	} else {
		logger.Warn("discord webhook test failed, continuing anyway")
	}

	// 6. Health and status endpoints
	go health.Serve(ctx, cfg.HTTPPort, func() any {
		s := notifier.Session()
		return map[string]any{
			"service":   serviceName,
			"state":     s.State(),
			"session":   s,
			"threshold": cfg.Threshold,
			"cooldown":  cfg.Cooldown.String(),
			"counters":  notifier.Counters(),
			"host":      sysinfo.Collect(context.Background(), "", logger),
		}
	}, logger)

	// 7. Connect; the OnConnect handler subscribes (and resubscribes after
	// every reconnect).
	if err := broker.Connect(client); err != nil {
		logger.Error("mqtt connection failed", "broker", cfg.MQTT.Broker, "error", err)
		os.Exit(1)
	}
	defer client.Disconnect(250)
	logger.Info("connected to mqtt broker", "broker", cfg.MQTT.Broker, "topic", topics.SensorState())

	// 8. Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()
}
