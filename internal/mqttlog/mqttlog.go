// Package mqttlog ships service logs over MQTT to logs/<service>, where the
// log collector picks them up.
package mqttlog

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// TopicPrefix is the root of every service's log topic.
const TopicPrefix = "logs"

// Publisher is the part of mqtt.Client the writer needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Writer is an io.Writer that publishes every write to logs/<service>.
type Writer struct {
	client Publisher
	topic  string
}

func NewWriter(client Publisher, service string) *Writer {
	return &Writer{
		client: client,
		topic:  Topic(service),
	}
}

// Topic returns the log topic for a service.
func Topic(service string) string {
	return TopicPrefix + "/" + service
}

// Write publishes one log line. It never waits for the broker and never
// fails: logging must not stall message handling.
func (w *Writer) Write(p []byte) (int, error) {
	// slog reuses its buffer after Write returns.
	line := bytes.TrimRight(p, "\n")
	payload := make([]byte, len(line))
	copy(payload, line)

	w.client.Publish(w.topic, 0, false, payload)
	return len(p), nil
}

// ParseLevel maps LOG_LEVEL values to slog levels; unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the JSON logger used by the services. With a non-nil
// client, lines go to stdout and to logs/<service>.
func NewLogger(client Publisher, service, level string) *slog.Logger {
	var out io.Writer = os.Stdout
	if client != nil {
		out = io.MultiWriter(os.Stdout, NewWriter(client, service))
	}
	return newLogger(out, service, level)
}

func newLogger(out io.Writer, service, level string) *slog.Logger {
	h := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(h).With("service", service)
}
