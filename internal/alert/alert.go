// Package alert holds the temperature alert state machine.
//
// The machine is a pure function over an explicit Session value: Decide
// never performs I/O. The caller sends whatever notification the returned
// Decision asks for and reports a successful delivery back with MarkSent.
package alert

import (
	"fmt"
	"time"

	"garden-bridge/internal/payload"
)

const (
	DefaultThreshold = 30.0
	DefaultCooldown  = 300 * time.Second
)

// Config is static for the life of the process.
type Config struct {
	Threshold float64       // readings strictly above this are "high"
	Cooldown  time.Duration // minimum gap between two delivered high alerts
}

// DefaultConfig returns the garden defaults: 30.0 °C and five minutes.
func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold, Cooldown: DefaultCooldown}
}

// Session is the in-memory alert state. The zero value is the initial
// state: Normal, with no alert ever sent.
type Session struct {
	Active    bool      `json:"active"`
	LastAlert time.Time `json:"last_alert"`
}

// State names the two machine states.
func (s Session) State() string {
	if s.Active {
		return "alerting"
	}
	return "normal"
}

// MarkSent records a delivered high-temperature notification.
func (s Session) MarkSent(now time.Time) Session {
	s.LastAlert = now
	return s
}

// Kind is what the driver has to do after a reading.
type Kind int

const (
	None            Kind = iota // nothing to send
	HighTemperature             // send a high-temperature alert
	Suppressed                  // would alert, but the cooldown is still running
	Normalized                  // send the back-to-normal notification
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case HighTemperature:
		return "high_temperature"
	case Suppressed:
		return "suppressed"
	case Normalized:
		return "normalized"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Decision is the outcome of one reading.
type Decision struct {
	Kind      Kind
	Remaining time.Duration // cooldown left, only set for Suppressed
}

// Reading carries the fields the machine looks at.
type Reading struct {
	Temperature float64
	Humidity    *float64
	RSSI        *int64
	IsRaining   bool
}

// High reports whether the reading is above the threshold.
func (c Config) High(r Reading) bool {
	return r.Temperature > c.Threshold
}

// FromSensor extracts a Reading. Temperature and is_raining are required;
// ErrMissingField is returned when either is absent.
func FromSensor(r payload.SensorReading) (Reading, error) {
	if r.Temperature == nil {
		return Reading{}, fmt.Errorf("%w: temperature", payload.ErrMissingField)
	}
	if r.IsRaining == nil {
		return Reading{}, fmt.Errorf("%w: is_raining", payload.ErrMissingField)
	}
	return Reading{
		Temperature: *r.Temperature,
		Humidity:    r.Humidity,
		RSSI:        r.RSSI,
		IsRaining:   *r.IsRaining,
	}, nil
}

// Decide advances the machine by one reading.
//
// A high reading always moves the session to alerting; whether a
// notification goes out depends on the cooldown gate measured from the last
// delivered alert. A reading at or below the threshold while alerting asks
// for the back-to-normal notification and clears LastAlert, so the first
// alert after a recovery is never suppressed.
func Decide(cfg Config, s Session, r Reading, now time.Time) (Session, Decision) {
	if cfg.High(r) {
		s.Active = true
		if !s.LastAlert.IsZero() {
			if elapsed := now.Sub(s.LastAlert); elapsed < cfg.Cooldown {
				return s, Decision{Kind: Suppressed, Remaining: cfg.Cooldown - elapsed}
			}
		}
		return s, Decision{Kind: HighTemperature}
	}

	if !s.Active {
		return s, Decision{Kind: None}
	}
	return Session{}, Decision{Kind: Normalized}
}
