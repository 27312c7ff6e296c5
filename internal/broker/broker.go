// Package broker wraps the paho MQTT client the way every garden service
// uses it: connect once, subscribe on every (re)connect, hand each message to
// a single handler in arrival order.
package broker

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Config holds the connection settings shared by all services.
type Config struct {
	Broker   string // tcp://host:1883
	Username string
	Password string
	// ClientID is used as-is when set. Otherwise a random id is derived from
	// ClientPrefix so two copies of a service never kick each other off.
	ClientID     string
	ClientPrefix string
}

// Subscription is one topic filter and the QoS to request.
type Subscription struct {
	Topic string
	QoS   byte
}

// NewClient builds a paho client. Subscriptions are (re)issued from the
// OnConnect handler, so they survive automatic reconnects. Messages that do not
// match a per-subscription handler go to handler.
//
// The client is not connected yet; call Connect. Creating it early lets the
// logger publish through it before the connection exists.
func NewClient(cfg Config, handler mqtt.MessageHandler, subs []Subscription, onConnErr func(topic string, err error)) mqtt.Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(ClientID(cfg))
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	// One goroutine, arrival order: handlers may block on HTTP or the DB.
	opts.SetOrderMatters(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetCleanSession(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetDefaultPublishHandler(handler)

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		for _, s := range subs {
			if token := c.Subscribe(s.Topic, s.QoS, nil); token.Wait() && token.Error() != nil {
				if onConnErr != nil {
					onConnErr(s.Topic, token.Error())
				}
			}
		}
	})

	return mqtt.NewClient(opts)
}

// Connect blocks until the first connection attempt finishes.
func Connect(c mqtt.Client) error {
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return nil
}

// ClientID returns cfg.ClientID, or ClientPrefix plus a short random suffix.
func ClientID(cfg Config) string {
	if cfg.ClientID != "" {
		return cfg.ClientID
	}
	prefix := cfg.ClientPrefix
	if prefix == "" {
		prefix = "garden"
	}
	// MQTT 3.1.1 brokers may reject ids longer than 23 bytes.
	suffix := uuid.NewString()[:8]
	id := prefix + "-" + suffix
	if len(id) > 23 {
		id = prefix[:23-len(suffix)-1] + "-" + suffix
	}
	return id
}
