package notify

import (
	"fmt"
	"strconv"
	"time"

	"garden-bridge/internal/alert"
)

// Kind identifies which card a notification renders.
type Kind string

const (
	KindHighTemperature Kind = "high_temperature"
	KindNormalized      Kind = "normalized"
	KindStartupTest     Kind = "startup_test"
)

// Embed colours.
const (
	ColorRed   = 16711680
	ColorGreen = 65280
	ColorBlue  = 3447003
)

const localTimeLayout = "2006-01-02 15:04:05"

// Notification is a rendered card ready for Send.
type Notification struct {
	Kind  Kind
	Embed Embed
}

// HighTemperature renders the alert card for a reading above threshold.
func HighTemperature(r alert.Reading, threshold float64, now time.Time) Notification {
	return Notification{
		Kind: KindHighTemperature,
		Embed: Embed{
			Title:       "🚨 HIGH TEMPERATURE ALERT (GARDEN)",
			Description: fmt.Sprintf("⚠️ Temperature is above the **%s°C** threshold", formatFloat(threshold)),
			Color:       ColorRed,
			Fields: []Field{
				{Name: "🌡️ Current temperature", Value: fmt.Sprintf("**%s°C**", formatFloat(r.Temperature)), Inline: true},
				{Name: "💧 Humidity", Value: formatPercent(r.Humidity), Inline: true},
				{Name: "🌧️ Rain", Value: fmt.Sprintf("**%s**", RainStatus(r.IsRaining)), Inline: true},
				{Name: "📶 Signal", Value: formatRSSI(r.RSSI), Inline: true},
				{Name: "⏰ Time", Value: now.Local().Format(localTimeLayout), Inline: false},
			},
			Footer:    &Footer{Text: footerText},
			Timestamp: now.UTC().Format(time.RFC3339),
		},
	}
}

// Normalized renders the back-to-normal card.
func Normalized(r alert.Reading, threshold float64, now time.Time) Notification {
	return Notification{
		Kind: KindNormalized,
		Embed: Embed{
			Title:       "✅ TEMPERATURE BACK TO NORMAL (GARDEN)",
			Description: fmt.Sprintf("Temperature is back below the %s°C threshold", formatFloat(threshold)),
			Color:       ColorGreen,
			Fields: []Field{
				{Name: "🌡️ Current temperature", Value: fmt.Sprintf("**%s°C**", formatFloat(r.Temperature)), Inline: true},
				{Name: "💧 Humidity", Value: formatPercent(r.Humidity), Inline: true},
				{Name: "🌧️ Rain", Value: RainStatus(r.IsRaining), Inline: true},
				{Name: "⏰ Time", Value: now.Local().Format(localTimeLayout), Inline: false},
			},
			Footer:    &Footer{Text: footerText},
			Timestamp: now.UTC().Format(time.RFC3339),
		},
	}
}

// StartupInfo describes the running notifier for the startup card.
type StartupInfo struct {
	Threshold float64
	Cooldown  time.Duration
	Broker    string
	Host      string // optional, e.g. "garden-pi (up 3h12m)"
}

// StartupTest renders the card sent once at startup to prove the webhook works.
func StartupTest(info StartupInfo, now time.Time) Notification {
	fields := []Field{
		{Name: "Status", Value: "✅ Online", Inline: true},
		{Name: "MQTT Broker", Value: info.Broker, Inline: true},
		{Name: "Cooldown", Value: info.Cooldown.String(), Inline: true},
	}
	if info.Host != "" {
		fields = append(fields, Field{Name: "Host", Value: info.Host, Inline: false})
	}
	return Notification{
		Kind: KindStartupTest,
		Embed: Embed{
			Title:       "🚀 Garden Alert System Started",
			Description: fmt.Sprintf("Temperature & rain monitoring active with threshold: **%s°C**", formatFloat(info.Threshold)),
			Color:       ColorBlue,
			Fields:      fields,
			Footer:      &Footer{Text: footerText},
			Timestamp:   now.UTC().Format(time.RFC3339),
		},
	}
}

// RainStatus is the human label for the rain flag.
func RainStatus(raining bool) string {
	if raining {
		return "🌧️ Raining"
	}
	return "☀️ Dry"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatPercent(f *float64) string {
	if f == nil {
		return "N/A"
	}
	return formatFloat(*f) + "%"
}

func formatRSSI(rssi *int64) string {
	if rssi == nil {
		return "N/A"
	}
	return strconv.FormatInt(*rssi, 10) + " dBm"
}
