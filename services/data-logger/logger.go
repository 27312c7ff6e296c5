package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"garden-bridge/internal/broker"
	"garden-bridge/internal/livecache"
	"garden-bridge/internal/payload"
	"garden-bridge/internal/store"
)

// insertTimeout bounds one database write so a stuck store cannot stall the
// MQTT handler forever.
const insertTimeout = 5 * time.Second

// LiveCache is the part of *livecache.Cache the logger writes to.
type LiveCache interface {
	Put(ctx context.Context, e livecache.Entry) error
}

// EventLogger persists every device message as one row. Delivery is
// at-most-once: a failed insert is logged and the message counts as consumed.
type EventLogger struct {
	store  store.Writer
	live   LiveCache
	logger *slog.Logger
	now    func() time.Time

	received atomic.Int64
	saved    atomic.Int64
	dropped  atomic.Int64
	failed   atomic.Int64
}

// NewEventLogger wires the writer. live may be nil.
func NewEventLogger(w store.Writer, live LiveCache, logger *slog.Logger) *EventLogger {
	return &EventLogger{
		store:  w,
		live:   live,
		logger: logger,
		now:    time.Now,
	}
}

// HandleMessage routes one publish by topic suffix and stores it.
func (l *EventLogger) HandleMessage(ctx context.Context, topic string, raw []byte) {
	l.received.Add(1)

	stream := broker.Route(topic)
	if stream == broker.StreamUnknown {
		l.dropped.Add(1)
		l.logger.Debug("ignoring message on unknown topic", "topic", topic)
		return
	}

	fields, err := payload.Decode(raw)
	if err != nil {
		l.dropped.Add(1)
		l.logger.Warn("invalid JSON, message dropped", "topic", topic, "payload", string(raw), "error", err)
		return
	}

	receivedAt := l.now().UTC()
	record, err := l.insert(ctx, stream, receivedAt, fields)
	if err != nil {
		l.failed.Add(1)
		l.logger.Error("failed to save message", "stream", stream.String(), "topic", topic, "error", err)
		return
	}
	l.saved.Add(1)

	l.updateLive(ctx, stream, topic, receivedAt, record)
}

// insert decodes fields for the stream and writes one row. Mistyped fields
// are stored as NULL; the row is still written.
func (l *EventLogger) insert(ctx context.Context, stream broker.Stream, at time.Time, f payload.Fields) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, insertTimeout)
	defer cancel()

	switch stream {
	case broker.StreamSensor:
		r, err := payload.DecodeSensorReading(f)
		l.warnFields(stream, err)
		if err := l.store.InsertSensorReading(ctx, at, r); err != nil {
			return nil, err
		}
		l.logger.Debug("sensor reading saved",
			"temperature", r.Temperature, "humidity", r.Humidity,
			"is_raining", r.IsRaining, "rain_analog", r.RainAnalog)
		return r, nil

	case broker.StreamDeviceState:
		s, err := payload.DecodeDeviceState(f)
		l.warnFields(stream, err)
		if err := l.store.InsertDeviceState(ctx, at, s); err != nil {
			return nil, err
		}
		l.logger.Debug("device state saved", "light", s.Light, "pump", s.Pump, "pump_speed", s.PumpSpeed)
		return s, nil

	case broker.StreamOnline:
		o, err := payload.DecodeOnlineStatus(f)
		l.warnFields(stream, err)
		if err := l.store.InsertOnlineEvent(ctx, at, o); err != nil {
			return nil, err
		}
		l.logger.Debug("presence saved", "online", o.Online, "device_id", o.DeviceID)
		return o, nil

	case broker.StreamCommand:
		c := payload.DecodeCommand(f)
		if err := l.store.InsertCommand(ctx, at, c); err != nil {
			return nil, err
		}
		l.logger.Debug("command saved", "type", string(c.Type), "value", c.Value)
		return c, nil
	}
	return nil, fmt.Errorf("no table for stream %s", stream)
}

func (l *EventLogger) warnFields(stream broker.Stream, err error) {
	if err != nil {
		l.logger.Warn("mistyped fields stored as NULL", "stream", stream.String(), "error", err)
	}
}

// updateLive refreshes the last-value cache. Cache failures are not
// persistence failures: the row is already stored.
func (l *EventLogger) updateLive(ctx context.Context, stream broker.Stream, topic string, at time.Time, record any) {
	if l.live == nil {
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		l.logger.Warn("live cache encode failed", "stream", stream.String(), "error", err)
		return
	}
	err = l.live.Put(ctx, livecache.Entry{
		Stream:     stream.String(),
		Topic:      topic,
		ReceivedAt: at,
		Record:     data,
	})
	if err != nil {
		l.logger.Warn("live cache update failed", "stream", stream.String(), "error", err)
	}
}

// Counters is the message accounting shown on /status.
type Counters struct {
	Received int64 `json:"received"`
	Saved    int64 `json:"saved"`
	Dropped  int64 `json:"dropped"`
	Failed   int64 `json:"failed"`
}

func (l *EventLogger) Counters() Counters {
	return Counters{
		Received: l.received.Load(),
		Saved:    l.saved.Load(),
		Dropped:  l.dropped.Load(),
		Failed:   l.failed.Load(),
	}
}
