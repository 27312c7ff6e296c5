// Package report renders the event log as fixed-width terminal tables.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"garden-bridge/internal/livecache"
	"garden-bridge/internal/store"
)

const (
	na         = "N/A"
	timeLayout = "2006-01-02 15:04:05"
	ruleWidth  = 80
)

// Renderer writes tables to w. Write errors are ignored: the output is a
// terminal.
type Renderer struct {
	w io.Writer
}

func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

func (r *Renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
}

func (r *Renderer) header(title string) {
	r.printf("\n%s\n  %s\n%s\n", strings.Repeat("=", ruleWidth), title, strings.Repeat("=", ruleWidth))
}

func (r *Renderer) rule(n int) {
	r.printf("%s\n", strings.Repeat("-", n))
}

func (r *Renderer) footer(n int) {
	r.printf("\nTotal records: %d\n", n)
}

func (r *Renderer) SensorRows(limit int, rows []store.SensorRow) {
	r.header(fmt.Sprintf("🌡️  SENSOR DATA (Latest %d records)", limit))
	r.printf("%-20s %-12s %-15s %-15s %-15s %-12s\n", "Time", "Temp (°C)", "Humidity (%)", "Rain Analog", "Is Raining?", "RSSI (dBm)")
	r.rule(90)
	for _, row := range rows {
		r.printf("%-20s %-12s %-15s %-15s %-15s %-12s\n",
			formatTime(row.ReceivedAt),
			formatFloat(row.Temperature),
			formatFloat(row.Humidity),
			formatInt(row.RainAnalog),
			formatYesNo(row.IsRaining),
			formatInt(row.RSSI))
	}
	r.footer(len(rows))
}

func (r *Renderer) StateRows(limit int, rows []store.StateRow) {
	r.header(fmt.Sprintf("💡 DEVICE STATE (Latest %d records)", limit))
	r.printf("%-20s %-10s %-10s %-18s %-12s\n", "Time", "Light", "Pump", "Pump Speed (%)", "RSSI (dBm)")
	r.rule(ruleWidth)
	for _, row := range rows {
		r.printf("%-20s %-10s %-10s %-18s %-12s\n",
			formatTime(row.ReceivedAt),
			formatString(row.Light),
			formatString(row.Pump),
			formatInt(row.PumpSpeed),
			formatInt(row.RSSI))
	}
	r.footer(len(rows))
}

func (r *Renderer) OnlineRows(limit int, rows []store.OnlineRow) {
	r.header(fmt.Sprintf("🟢 ONLINE STATUS (Latest %d records)", limit))
	r.printf("%-20s %-10s %-20s %-20s %-10s\n", "Time", "Status", "Device ID", "Firmware", "RSSI")
	r.rule(ruleWidth)
	for _, row := range rows {
		r.printf("%-20s %-10s %-20s %-20s %-10s\n",
			formatTime(row.ReceivedAt),
			formatOnline(row.Online),
			formatString(row.DeviceID),
			formatString(row.Firmware),
			formatInt(row.RSSI))
	}
	r.footer(len(rows))
}

func (r *Renderer) CommandRows(limit int, rows []store.CommandRow) {
	r.header(fmt.Sprintf("📥 COMMAND HISTORY (Latest %d records)", limit))
	r.printf("%-20s %-15s %-15s %-10s\n", "Time", "Type", "Value", "Source")
	r.rule(ruleWidth)
	for _, row := range rows {
		r.printf("%-20s %-15s %-15s %-10s\n",
			formatTime(row.ReceivedAt),
			orNA(string(row.Type)),
			formatString(row.Value),
			orNA(row.Source))
	}
	r.footer(len(rows))
}

func (r *Renderer) Stats(st store.Stats) {
	r.header("📊 DATABASE STATISTICS")
	r.printf("📊 Total Records:\n")
	r.printf("  • Sensor Data:    %8d\n", st.SensorCount)
	r.printf("  • Device State:   %8d\n", st.StateCount)
	r.printf("  • Online Status:  %8d\n", st.OnlineCount)
	r.printf("  • Commands:       %8d\n", st.CommandCount)

	if w := st.Window; w != nil {
		r.printf("\n🌡️  Last 24 Hours (%d readings):\n", w.Readings)
		r.printf("  • Avg Temperature: %s°C\n", formatStat(w.AvgTemperature))
		r.printf("  • Min Temperature: %s°C\n", formatStat(w.MinTemperature))
		r.printf("  • Max Temperature: %s°C\n", formatStat(w.MaxTemperature))
		r.printf("  • Avg Humidity:    %s%%\n", formatStat(w.AvgHumidity))
		r.printf("  • Rain Events:     %d records\n", w.RainEvents)
	} else {
		r.printf("\n🌡️  Last 24 Hours: no sensor readings\n")
	}

	if st.Uptime != nil {
		r.printf("\n🟢 Device Uptime (24h): %.1f%%\n", *st.Uptime)
	}
}

// Live prints the last cached record of each stream. Streams without an
// entry are listed as missing.
func (r *Renderer) Live(entries []livecache.Entry, missing []string) {
	r.header("⚡ LIVE VALUES (last message per stream)")
	r.printf("%-10s %-20s %-30s %s\n", "Stream", "Received", "Topic", "Record")
	r.rule(ruleWidth)
	for _, e := range entries {
		r.printf("%-10s %-20s %-30s %s\n", e.Stream, formatTime(e.ReceivedAt), e.Topic, string(e.Record))
	}
	for _, s := range missing {
		r.printf("%-10s %-20s %-30s %s\n", s, na, na, na)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return na
	}
	return t.UTC().Format(timeLayout)
}

func formatFloat(v *float64) string {
	if v == nil {
		return na
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

func formatStat(v *float64) string {
	if v == nil {
		return fmt.Sprintf("%6s", na)
	}
	return fmt.Sprintf("%6.1f", *v)
}

func formatInt(v *int64) string {
	if v == nil {
		return na
	}
	return strconv.FormatInt(*v, 10)
}

func formatString(v *string) string {
	if v == nil {
		return na
	}
	return *v
}

func orNA(s string) string {
	if s == "" {
		return na
	}
	return s
}

func formatYesNo(v *bool) string {
	switch {
	case v == nil:
		return na
	case *v:
		return "YES"
	default:
		return "NO"
	}
}

func formatOnline(v *bool) string {
	switch {
	case v == nil:
		return na
	case *v:
		return "🟢 Online"
	default:
		return "🔴 Offline"
	}
}
