package main

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"garden-bridge/internal/alert"
	"garden-bridge/internal/notify"
	"garden-bridge/internal/payload"
)

// Sender delivers one rendered card. *notify.Client implements it.
type Sender interface {
	Send(ctx context.Context, n notify.Notification) error
}

// Notifier drives the alert state machine from sensor messages and performs
// the sends it asks for. HandleMessage is called from the single MQTT
// handler goroutine; Status may be called concurrently.
type Notifier struct {
	cfg     alert.Config
	sender  Sender
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	session alert.Session

	received   atomic.Int64
	dropped    atomic.Int64
	sent       atomic.Int64
	failed     atomic.Int64
	suppressed atomic.Int64
}

func NewNotifier(cfg alert.Config, sender Sender, timeout time.Duration, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:     cfg,
		sender:  sender,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

// HandleMessage processes one publish on the sensor topic.
func (n *Notifier) HandleMessage(ctx context.Context, topic string, raw []byte) {
	n.received.Add(1)

	fields, err := payload.Decode(raw)
	if err != nil {
		n.dropped.Add(1)
		n.logger.Warn("invalid JSON, message dropped", "topic", topic, "payload", string(raw), "error", err)
		return
	}
	sensor, err := payload.DecodeSensorReading(fields)
	if err != nil {
		if reqErr := requiredFieldTypes(fields); reqErr != nil {
			n.dropped.Add(1)
			n.logger.Warn("mistyped sensor fields, message dropped", "topic", topic, "payload", string(raw), "error", reqErr)
			return
		}
		// Mistyped optional fields decode as absent.
		n.logger.Warn("mistyped optional sensor fields ignored", "topic", topic, "error", err)
	}
	reading, err := alert.FromSensor(sensor)
	if err != nil {
		n.dropped.Add(1)
		n.logger.Warn("missing temperature or rain data, skipping", "topic", topic, "error", err)
		return
	}

	now := n.now()
	n.mu.Lock()
	next, decision := alert.Decide(n.cfg, n.session, reading, now)
	n.session = next
	n.mu.Unlock()

	n.logReading(reading, decision)

	switch decision.Kind {
	case alert.HighTemperature:
		if n.send(ctx, notify.HighTemperature(reading, n.cfg.Threshold, now)) {
			n.mu.Lock()
			n.session = n.session.MarkSent(now)
			n.mu.Unlock()
		}
	case alert.Suppressed:
		n.suppressed.Add(1)
		n.logger.Info("cooldown active, skipping alert",
			"wait_sec", int64(math.Ceil(decision.Remaining.Seconds())))
	case alert.Normalized:
		n.send(ctx, notify.Normalized(reading, n.cfg.Threshold, now))
	}
}

// requiredFieldTypes reports a type error on the fields the state machine
// cannot do without.
func requiredFieldTypes(f payload.Fields) error {
	if _, err := f.Float("temperature"); err != nil {
		return err
	}
	_, err := f.Bool("is_raining")
	return err
}

func (n *Notifier) logReading(r alert.Reading, d alert.Decision) {
	attrs := []any{
		"temperature", r.Temperature,
		"rain", notify.RainStatus(r.IsRaining),
		"verdict", verdict(n.cfg, r),
		"decision", d.Kind.String(),
	}
	if r.Humidity != nil {
		attrs = append(attrs, "humidity", *r.Humidity)
	}
	if r.RSSI != nil {
		attrs = append(attrs, "rssi", *r.RSSI)
	}
	n.logger.Info("sensor reading", attrs...)
}

func verdict(cfg alert.Config, r alert.Reading) string {
	if cfg.High(r) {
		return "high"
	}
	return "normal"
}

// send makes one delivery attempt and reports whether it succeeded.
// Failures are logged and never retried.
func (n *Notifier) send(ctx context.Context, note notify.Notification) bool {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	err := n.sender.Send(ctx, note)
	if err == nil {
		n.sent.Add(1)
		n.logger.Info("discord notification sent", "kind", note.Kind)
		return true
	}

	n.failed.Add(1)
	var de *notify.DeliveryError
	if errors.As(err, &de) {
		n.logger.Error("discord notification rejected", "kind", note.Kind, "status", de.StatusCode, "body", de.Body)
	} else {
		n.logger.Error("discord notification failed", "kind", note.Kind, "error", err)
	}
	return false
}

// SendStartupTest posts the startup card. The result is logged only; a
// broken webhook does not stop the service.
func (n *Notifier) SendStartupTest(ctx context.Context, info notify.StartupInfo) bool {
	return n.send(ctx, notify.StartupTest(info, n.now()))
}

// Session returns a copy of the current alert session.
func (n *Notifier) Session() alert.Session {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.session
}

// Counters is the message accounting shown on /status.
type Counters struct {
	Received   int64 `json:"received"`
	Dropped    int64 `json:"dropped"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Suppressed int64 `json:"suppressed"`
}

func (n *Notifier) Counters() Counters {
	return Counters{
		Received:   n.received.Load(),
		Dropped:    n.dropped.Load(),
		Sent:       n.sent.Load(),
		Failed:     n.failed.Load(),
		Suppressed: n.suppressed.Load(),
	}
}
