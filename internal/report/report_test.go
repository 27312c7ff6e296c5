package report

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"garden-bridge/internal/payload"
	"garden-bridge/internal/store"
)

var received = time.Date(2026, 6, 1, 7, 30, 5, 0, time.UTC)

type fakeReader struct {
	sensors  []store.SensorRow
	states   []store.StateRow
	online   []store.OnlineRow
	commands []store.CommandRow
	stats    store.Stats
	err      error

	// Recorded limits, in call order.
	calls []string
}

func (f *fakeReader) record(name string, limit int) {
	f.calls = append(f.calls, name+":"+strconv.Itoa(limit))
}

func (f *fakeReader) LatestSensorReadings(_ context.Context, limit int) ([]store.SensorRow, error) {
	f.record("sensor", limit)
	return f.sensors, f.err
}

func (f *fakeReader) LatestDeviceStates(_ context.Context, limit int) ([]store.StateRow, error) {
	f.record("state", limit)
	return f.states, f.err
}

func (f *fakeReader) LatestOnlineEvents(_ context.Context, limit int) ([]store.OnlineRow, error) {
	f.record("online", limit)
	return f.online, f.err
}

func (f *fakeReader) LatestCommands(_ context.Context, limit int) ([]store.CommandRow, error) {
	f.record("commands", limit)
	return f.commands, f.err
}

func (f *fakeReader) Stats(_ context.Context, _ time.Time) (store.Stats, error) {
	f.calls = append(f.calls, "stats")
	return f.stats, f.err
}

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }
func bptr(v bool) *bool      { return &v }
func sptr(v string) *string  { return &v }

func TestSensorRowsRenderNulls(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf).SensorRows(20, []store.SensorRow{
		{ID: 2, ReceivedAt: received, SensorReading: payload.SensorReading{RainAnalog: i64(4095), IsRaining: bptr(false)}},
		{ID: 1, ReceivedAt: received, SensorReading: payload.SensorReading{Temperature: f64(31.25), Humidity: f64(60), IsRaining: bptr(true), RSSI: i64(-70)}},
	})
	out := buf.String()

	lines := strings.Split(out, "\n")
	var dataLines []string
	for _, l := range lines {
		if strings.HasPrefix(l, "2026-06-01 07:30:05") {
			dataLines = append(dataLines, l)
		}
	}
	if len(dataLines) != 2 {
		t.Fatalf("data lines = %d:\n%s", len(dataLines), out)
	}
	if got := strings.Fields(dataLines[0]); len(got) != 7 || got[2] != "N/A" || got[3] != "N/A" || got[4] != "4095" || got[5] != "NO" || got[6] != "N/A" {
		t.Errorf("null row = %q", got)
	}
	if got := strings.Fields(dataLines[1]); got[2] != "31.2" && got[2] != "31.3" {
		t.Errorf("temperature cell = %q", got[2])
	}
	if !strings.Contains(dataLines[1], "YES") || !strings.Contains(dataLines[1], "-70") {
		t.Errorf("full row = %q", dataLines[1])
	}
	if !strings.Contains(out, "Latest 20 records") || !strings.Contains(out, "Total records: 2") {
		t.Errorf("header/footer missing:\n%s", out)
	}
}

func TestCommandAndOnlineRows(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)
	r.CommandRows(5, []store.CommandRow{
		{ReceivedAt: received, Command: payload.Command{Type: payload.CommandLight, Source: "mqtt"}},
	})
	r.OnlineRows(5, []store.OnlineRow{
		{ReceivedAt: received, OnlineStatus: payload.OnlineStatus{Online: bptr(false), DeviceID: sptr("esp32")}},
	})
	out := buf.String()

	if !strings.Contains(out, "light") || !strings.Contains(out, "N/A") {
		t.Errorf("command row:\n%s", out)
	}
	if !strings.Contains(out, "🔴 Offline") || !strings.Contains(out, "esp32") {
		t.Errorf("online row:\n%s", out)
	}
}

func TestStatsRendering(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf).Stats(store.Stats{
		SensorCount: 120, StateCount: 4, OnlineCount: 9, CommandCount: 3,
		Window: &store.WindowStats{Readings: 12, AvgTemperature: f64(24.44), MinTemperature: f64(18), MaxTemperature: f64(31.9), AvgHumidity: f64(61.05), RainEvents: 2},
		Uptime: f64(87.5),
	})
	out := buf.String()
	for _, want := range []string{
		"Sensor Data:         120",
		"Commands:              3",
		"Avg Temperature:   24.4°C",
		"Max Temperature:   31.9°C",
		"Rain Events:     2 records",
		"Device Uptime (24h): 87.5%",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}

	buf.Reset()
	NewRenderer(&buf).Stats(store.Stats{SensorCount: 1})
	if !strings.Contains(buf.String(), "no sensor readings") || strings.Contains(buf.String(), "Uptime") {
		t.Errorf("empty window:\n%s", buf.String())
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		args      []string
		wantView  View
		wantLimit int
		wantErr   bool
	}{
		{nil, "", 0, false},
		{[]string{"sensor"}, ViewSensor, 20, false},
		{[]string{"online"}, ViewOnline, 10, false},
		{[]string{"COMMANDS", "7"}, ViewCommands, 7, false},
		{[]string{"stats"}, ViewStats, 0, false},
		{[]string{"state", "abc"}, "", 0, true},
		{[]string{"state", "-3"}, "", 0, true},
		{[]string{"dump"}, "", 0, true},
	}
	for _, tt := range tests {
		v, n, err := ParseArgs(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseArgs(%v) error = %v", tt.args, err)
			continue
		}
		if err != nil && !errors.Is(err, ErrUsage) {
			t.Errorf("ParseArgs(%v) error %v is not ErrUsage", tt.args, err)
		}
		if v != tt.wantView || n != tt.wantLimit {
			t.Errorf("ParseArgs(%v) = %q, %d; want %q, %d", tt.args, v, n, tt.wantView, tt.wantLimit)
		}
	}
}

func TestAllUsesReducedLimits(t *testing.T) {
	src := &fakeReader{}
	var buf bytes.Buffer
	if err := NewViewer(src, nil, &buf).Run(context.Background(), ViewAll, 0); err != nil {
		t.Fatalf("Run(all): %v", err)
	}
	want := []string{"stats", "sensor:10", "state:10", "online:5", "commands:10"}
	if strings.Join(src.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", src.calls, want)
	}
}

func TestRunReturnsStoreError(t *testing.T) {
	src := &fakeReader{err: errors.New("database is locked")}
	var buf bytes.Buffer
	err := NewViewer(src, nil, &buf).Run(context.Background(), ViewSensor, 0)
	if err == nil || !strings.Contains(err.Error(), "locked") {
		t.Errorf("err = %v", err)
	}
}

func TestLiveWithoutCache(t *testing.T) {
	var buf bytes.Buffer
	if err := NewViewer(&fakeReader{}, nil, &buf).Run(context.Background(), ViewLive, 0); err != nil {
		t.Fatalf("Run(live): %v", err)
	}
	out := buf.String()
	for _, s := range LiveStreams {
		if !strings.Contains(out, s) {
			t.Errorf("stream %q not listed:\n%s", s, out)
		}
	}
}

func TestMenu(t *testing.T) {
	src := &fakeReader{
		sensors: []store.SensorRow{{ReceivedAt: received, SensorReading: payload.SensorReading{Temperature: f64(22)}}},
	}
	// Sensor view with default count, bad option, state view with a retyped
	// count, stats, then exit.
	in := strings.NewReader("1\n\n9\n2\nlots\n3\n5\n0\n")
	var buf bytes.Buffer
	NewViewer(src, nil, &buf).Menu(context.Background(), in)

	want := []string{"sensor:20", "state:3", "stats"}
	if strings.Join(src.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", src.calls, want)
	}
	out := buf.String()
	if !strings.Contains(out, "Invalid option!") {
		t.Error("invalid option not reported")
	}
	if !strings.Contains(out, `invalid record count "lots"`) {
		t.Error("invalid count not reported")
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "Goodbye!") {
		t.Errorf("menu did not say goodbye:\n%s", out)
	}
}

func TestMenuEndsOnEOF(t *testing.T) {
	src := &fakeReader{err: errors.New("no such table: sensor_data")}
	var buf bytes.Buffer
	NewViewer(src, nil, &buf).Menu(context.Background(), strings.NewReader("1\n\n5"))

	out := buf.String()
	if strings.Count(out, "❌ Error:") != 2 {
		t.Errorf("expected two printed errors:\n%s", out)
	}
	if !strings.Contains(out, "Goodbye!") {
		t.Error("EOF should end the menu")
	}
}
