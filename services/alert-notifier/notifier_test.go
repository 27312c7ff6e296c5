package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"garden-bridge/internal/alert"
	"garden-bridge/internal/notify"
)

type fakeSender struct {
	sent []notify.Notification
	err  error
}

func (f *fakeSender) Send(_ context.Context, n notify.Notification) error {
	f.sent = append(f.sent, n)
	return f.err
}

func (f *fakeSender) kinds() []string {
	out := make([]string, len(f.sent))
	for i, n := range f.sent {
		out[i] = string(n.Kind)
	}
	return out
}

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestNotifier(sender Sender, logs *bytes.Buffer) (*Notifier, *testClock) {
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	n := NewNotifier(alert.DefaultConfig(), sender, time.Second, logger)
	clk := &testClock{t: time.Date(2026, 7, 1, 13, 0, 0, 0, time.UTC)}
	n.now = clk.now
	return n, clk
}

func sensorJSON(temp float64) []byte {
	return []byte(fmt.Sprintf(`{"temperature":%v,"humidity":55,"is_raining":false,"rssi":-61}`, temp))
}

const sensorTopic = "demo/garden/sensor/state"

func TestScenarioRiseAndRecover(t *testing.T) {
	sender := &fakeSender{}
	var logs bytes.Buffer
	n, clk := newTestNotifier(sender, &logs)
	ctx := context.Background()

	for _, temp := range []float64{25, 31, 32, 28} {
		n.HandleMessage(ctx, sensorTopic, sensorJSON(temp))
		clk.advance(10 * time.Second)
	}

	want := []string{string(notify.KindHighTemperature), string(notify.KindNormalized)}
	if got := sender.kinds(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("sent = %v, want %v", got, want)
	}
	if s := n.Session(); s.Active || !s.LastAlert.IsZero() {
		t.Errorf("session after recovery = %+v, want zero", s)
	}
	c := n.Counters()
	if c.Received != 4 || c.Sent != 2 || c.Suppressed != 1 || c.Failed != 0 {
		t.Errorf("counters = %+v", c)
	}
	if !strings.Contains(logs.String(), `"wait_sec":290`) {
		t.Errorf("cooldown log missing remaining seconds:\n%s", logs.String())
	}
}

func TestFailedDeliveryDoesNotStartCooldown(t *testing.T) {
	sender := &fakeSender{err: &notify.DeliveryError{StatusCode: 500, Body: "boom"}}
	var logs bytes.Buffer
	n, clk := newTestNotifier(sender, &logs)
	ctx := context.Background()

	n.HandleMessage(ctx, sensorTopic, sensorJSON(35))
	s := n.Session()
	if !s.Active || !s.LastAlert.IsZero() {
		t.Fatalf("session after failed send = %+v", s)
	}

	// The next high reading retries at once instead of waiting out a cooldown.
	clk.advance(time.Second)
	n.HandleMessage(ctx, sensorTopic, sensorJSON(36))
	if len(sender.sent) != 2 {
		t.Fatalf("sends = %d, want 2", len(sender.sent))
	}
	if n.Counters().Failed != 2 {
		t.Errorf("failed = %d, want 2", n.Counters().Failed)
	}
	if !strings.Contains(logs.String(), `"status":500`) || !strings.Contains(logs.String(), `"body":"boom"`) {
		t.Errorf("delivery error not logged with status and body:\n%s", logs.String())
	}
}

func TestSuccessfulDeliveryStartsCooldown(t *testing.T) {
	sender := &fakeSender{}
	var logs bytes.Buffer
	n, clk := newTestNotifier(sender, &logs)
	ctx := context.Background()

	n.HandleMessage(ctx, sensorTopic, sensorJSON(31))
	sentAt := clk.t
	if got := n.Session().LastAlert; !got.Equal(sentAt) {
		t.Fatalf("LastAlert = %v, want %v", got, sentAt)
	}

	clk.advance(299 * time.Second)
	n.HandleMessage(ctx, sensorTopic, sensorJSON(31))
	if len(sender.sent) != 1 {
		t.Fatalf("sent during cooldown: %v", sender.kinds())
	}

	clk.advance(time.Second)
	n.HandleMessage(ctx, sensorTopic, sensorJSON(31))
	if len(sender.sent) != 2 {
		t.Fatalf("no alert after cooldown: %v", sender.kinds())
	}
}

func TestDroppedMessages(t *testing.T) {
	sender := &fakeSender{}
	var logs bytes.Buffer
	n, _ := newTestNotifier(sender, &logs)
	ctx := context.Background()

	for _, raw := range []string{
		`not json`,
		`[1,2]`,
		`{"humidity":50,"is_raining":false}`,
		`{"temperature":40}`,
		`{"temperature":"hot","is_raining":false}`,
	} {
		n.HandleMessage(ctx, sensorTopic, []byte(raw))
	}

	if len(sender.sent) != 0 {
		t.Errorf("dropped messages triggered sends: %v", sender.kinds())
	}
	if s := n.Session(); s.Active {
		t.Error("dropped messages changed the session")
	}
	if c := n.Counters(); c.Dropped != 5 || c.Received != 5 {
		t.Errorf("counters = %+v", c)
	}
}

func TestNoNotificationWhileNormal(t *testing.T) {
	sender := &fakeSender{}
	var logs bytes.Buffer
	n, _ := newTestNotifier(sender, &logs)

	for _, temp := range []float64{20, 30, 29.9} {
		n.HandleMessage(context.Background(), sensorTopic, sensorJSON(temp))
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent = %v, want none", sender.kinds())
	}
	if strings.Count(logs.String(), `"msg":"sensor reading"`) != 3 {
		t.Errorf("expected one log line per reading:\n%s", logs.String())
	}
}

func TestWithWebhookServer(t *testing.T) {
	var posts []notify.Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m notify.Message
		_ = json.NewDecoder(r.Body).Decode(&m)
		posts = append(posts, m)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var logs bytes.Buffer
	n, clk := newTestNotifier(notify.NewClient(srv.URL, time.Second), &logs)
	ctx := context.Background()

	if !n.SendStartupTest(ctx, notify.StartupInfo{Threshold: 30, Broker: "tcp://test:1883"}) {
		t.Fatal("startup test failed")
	}
	n.HandleMessage(ctx, sensorTopic, sensorJSON(33))
	clk.advance(time.Minute)
	n.HandleMessage(ctx, sensorTopic, sensorJSON(22))

	if len(posts) != 3 {
		t.Fatalf("posts = %d, want 3", len(posts))
	}
	colors := []int{posts[0].Embeds[0].Color, posts[1].Embeds[0].Color, posts[2].Embeds[0].Color}
	if colors[0] != notify.ColorBlue || colors[1] != notify.ColorRed || colors[2] != notify.ColorGreen {
		t.Errorf("colors = %v", colors)
	}
}

func TestMistypedOptionalFieldsStillDecide(t *testing.T) {
	sender := &fakeSender{}
	var logs bytes.Buffer
	n, clk := newTestNotifier(sender, &logs)
	ctx := context.Background()

	n.HandleMessage(ctx, sensorTopic, []byte(`{"temperature":35,"humidity":"n/a","is_raining":false,"rssi":-61}`))
	if got := sender.kinds(); len(got) != 1 || got[0] != string(notify.KindHighTemperature) {
		t.Fatalf("sent = %v, want one high temperature alert", got)
	}

	clk.advance(time.Minute)
	n.HandleMessage(ctx, sensorTopic, []byte(`{"temperature":25,"humidity":50,"is_raining":false,"rssi":-61.5}`))
	if got := sender.kinds(); len(got) != 2 || got[1] != string(notify.KindNormalized) {
		t.Fatalf("sent = %v, want a normalized notification", got)
	}
	if s := n.Session(); s.State() != "normal" {
		t.Errorf("state = %s, want normal", s.State())
	}
	if c := n.Counters(); c.Dropped != 0 || c.Received != 2 {
		t.Errorf("counters = %+v", c)
	}
	if !strings.Contains(logs.String(), "mistyped optional sensor fields ignored") {
		t.Errorf("expected a warning for the mistyped fields:\n%s", logs.String())
	}
}

func TestFailedRecoveryDeliveryStillNormalizes(t *testing.T) {
	sender := &fakeSender{}
	var logs bytes.Buffer
	n, clk := newTestNotifier(sender, &logs)
	ctx := context.Background()

	n.HandleMessage(ctx, sensorTopic, sensorJSON(34))
	sender.err = errors.New("connection refused")
	clk.advance(time.Minute)
	n.HandleMessage(ctx, sensorTopic, sensorJSON(24))

	if got := sender.kinds(); len(got) != 2 || got[1] != string(notify.KindNormalized) {
		t.Fatalf("sent = %v, want a normalized attempt", got)
	}
	if s := n.Session(); s.Active || !s.LastAlert.IsZero() {
		t.Errorf("session = %+v, want zero after recovery", s)
	}
	if c := n.Counters(); c.Failed != 1 || c.Sent != 1 {
		t.Errorf("counters = %+v", c)
	}

	// Cooldown was reset, so the next high reading alerts at once.
	sender.err = nil
	clk.advance(time.Second)
	n.HandleMessage(ctx, sensorTopic, sensorJSON(33))
	if got := sender.kinds(); len(got) != 3 || got[2] != string(notify.KindHighTemperature) {
		t.Errorf("sent = %v, want a fresh high temperature alert", got)
	}
}
