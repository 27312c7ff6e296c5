package alert

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"garden-bridge/internal/payload"
)

var t0 = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

func reading(temp float64) Reading { return Reading{Temperature: temp} }

func TestDecideScenario(t *testing.T) {
	cfg := DefaultConfig()
	temps := []float64{25, 31, 32, 28}
	want := []Kind{None, HighTemperature, Suppressed, Normalized}

	var s Session
	for i, temp := range temps {
		var d Decision
		s, d = Decide(cfg, s, reading(temp), at(i))
		if d.Kind != want[i] {
			t.Fatalf("t=%d temp=%v: kind = %v, want %v", i, temp, d.Kind, want[i])
		}
		if d.Kind == HighTemperature {
			s = s.MarkSent(at(i))
		}
	}

	if s.Active {
		t.Errorf("final state = %s, want normal", s.State())
	}
	if !s.LastAlert.IsZero() {
		t.Errorf("LastAlert = %v, want zero after recovery", s.LastAlert)
	}
}

func TestDecideFailedDeliveryDoesNotStartCooldown(t *testing.T) {
	cfg := DefaultConfig()
	var s Session

	// First high reading: delivery fails, so MarkSent is never applied.
	s, d := Decide(cfg, s, reading(35), at(0))
	if d.Kind != HighTemperature {
		t.Fatalf("kind = %v, want high_temperature", d.Kind)
	}
	if !s.Active {
		t.Fatal("session should be alerting even though delivery failed")
	}

	// The next high reading is not suppressed.
	s, d = Decide(cfg, s, reading(35), at(1))
	if d.Kind != HighTemperature {
		t.Fatalf("kind = %v, want high_temperature (no cooldown after failed send)", d.Kind)
	}
	if !s.LastAlert.IsZero() {
		t.Errorf("LastAlert = %v, want zero", s.LastAlert)
	}
}

func TestDecideCooldownExpires(t *testing.T) {
	cfg := Config{Threshold: 30, Cooldown: 300 * time.Second}
	s := Session{Active: true}.MarkSent(at(0))

	_, d := Decide(cfg, s, reading(31), at(299))
	if d.Kind != Suppressed {
		t.Fatalf("kind at 299s = %v, want suppressed", d.Kind)
	}
	if d.Remaining != time.Second {
		t.Errorf("Remaining = %v, want 1s", d.Remaining)
	}

	_, d = Decide(cfg, s, reading(31), at(300))
	if d.Kind != HighTemperature {
		t.Fatalf("kind at 300s = %v, want high_temperature", d.Kind)
	}
}

func TestDecideThresholdIsExclusive(t *testing.T) {
	cfg := DefaultConfig()
	s, d := Decide(cfg, Session{}, reading(30.0), at(0))
	if d.Kind != None || s.Active {
		t.Errorf("reading equal to threshold should be normal, got %v/%s", d.Kind, s.State())
	}

	s, d = Decide(cfg, Session{Active: true}, reading(30.0), at(0))
	if d.Kind != Normalized || s.Active {
		t.Errorf("reading equal to threshold should recover, got %v/%s", d.Kind, s.State())
	}
}

func TestDecideRecoveryResetsCooldown(t *testing.T) {
	cfg := DefaultConfig()
	var s Session

	s, d := Decide(cfg, s, reading(31), at(0))
	if d.Kind != HighTemperature {
		t.Fatalf("kind = %v", d.Kind)
	}
	s = s.MarkSent(at(0))

	s, d = Decide(cfg, s, reading(29), at(5))
	if d.Kind != Normalized {
		t.Fatalf("kind = %v, want normalized", d.Kind)
	}

	// Only 10s after the last delivered alert, but recovery cleared the clock.
	_, d = Decide(cfg, s, reading(31), at(10))
	if d.Kind != HighTemperature {
		t.Errorf("kind = %v, want high_temperature right after recovery", d.Kind)
	}
}

// Random walks around the threshold: high alerts never go out closer than the
// cooldown except right after a recovery, and every recovery is announced
// exactly once.
func TestDecideInvariants(t *testing.T) {
	cfg := Config{Threshold: 30, Cooldown: 20 * time.Second}
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 50; run++ {
		var (
			s             Session
			lastSent      time.Time
			recovered     = true
			alerting      bool
			normalizedCnt int
			recoveries    int
		)
		for i := 0; i < 500; i++ {
			now := at(i)
			temp := 25 + rng.Float64()*10
			prev := s
			var d Decision
			s, d = Decide(cfg, s, reading(temp), now)

			switch d.Kind {
			case HighTemperature:
				if !recovered && !lastSent.IsZero() && now.Sub(lastSent) < cfg.Cooldown {
					t.Fatalf("run %d step %d: alert %v after previous send", run, i, now.Sub(lastSent))
				}
				// Deliveries fail now and then.
				if rng.Intn(4) != 0 {
					s = s.MarkSent(now)
					lastSent = now
					recovered = false
				}
			case Normalized:
				if !prev.Active {
					t.Fatalf("run %d step %d: normalized while already normal", run, i)
				}
				normalizedCnt++
				recovered = true
				lastSent = time.Time{}
			case None:
				if prev.Active {
					t.Fatalf("run %d step %d: no action while alerting and temp=%v", run, i, temp)
				}
			}

			if alerting && !s.Active {
				recoveries++
			}
			alerting = s.Active
		}
		if normalizedCnt != recoveries {
			t.Fatalf("run %d: %d normalized notifications for %d recoveries", run, normalizedCnt, recoveries)
		}
	}
}

func TestFromSensorRequiresTemperatureAndRain(t *testing.T) {
	temp := 31.0
	raining := true

	tests := []struct {
		name string
		in   payload.SensorReading
		ok   bool
	}{
		{"complete", payload.SensorReading{Temperature: &temp, IsRaining: &raining}, true},
		{"no temperature", payload.SensorReading{IsRaining: &raining}, false},
		{"no rain flag", payload.SensorReading{Temperature: &temp}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := FromSensor(tt.in)
			if tt.ok {
				if err != nil {
					t.Fatalf("FromSensor: %v", err)
				}
				if r.Temperature != temp || !r.IsRaining {
					t.Errorf("unexpected reading %+v", r)
				}
				return
			}
			if !errors.Is(err, payload.ErrMissingField) {
				t.Errorf("error = %v, want ErrMissingField", err)
			}
		})
	}
}
