package payload

import (
	"errors"
)

// SensorReading is one publish on <ns>/sensor/state.
type SensorReading struct {
	DeviceTimestamp *int64   `json:"timestamp,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	Humidity        *float64 `json:"humidity,omitempty"`
	RainAnalog      *int64   `json:"rain_analog,omitempty"`
	RainDigital     *int64   `json:"rain_digital,omitempty"`
	IsRaining       *bool    `json:"is_raining,omitempty"`
	RSSI            *int64   `json:"rssi,omitempty"`
}

// DeviceState is one publish on <ns>/device/state.
type DeviceState struct {
	DeviceTimestamp *int64  `json:"timestamp,omitempty"`
	Light           *string `json:"light,omitempty"`
	Pump            *string `json:"pump,omitempty"`
	PumpSpeed       *int64  `json:"pumpSpeed,omitempty"`
	RSSI            *int64  `json:"rssi,omitempty"`
}

// OnlineStatus is one publish on <ns>/sys/online.
type OnlineStatus struct {
	DeviceTimestamp *int64  `json:"timestamp,omitempty"`
	Online          *bool   `json:"online,omitempty"`
	DeviceID        *string `json:"deviceId,omitempty"`
	Firmware        *string `json:"firmware,omitempty"`
	RSSI            *int64  `json:"rssi,omitempty"`
}

// CommandType is inferred from which control key a command carries.
type CommandType string

const (
	CommandLight     CommandType = "light"
	CommandPump      CommandType = "pump"
	CommandPumpSpeed CommandType = "pumpSpeed"
	CommandUnknown   CommandType = "unknown"
)

// CommandSource tags commands seen on the broker.
const CommandSource = "mqtt"

// Command is one publish on <ns>/device/cmd.
type Command struct {
	Type   CommandType `json:"type"`
	Value  *string     `json:"value,omitempty"`
	Source string      `json:"source"`
}

// DecodeSensorReading maps f onto a SensorReading. Absent fields stay nil.
func DecodeSensorReading(f Fields) (SensorReading, error) {
	rd := fieldReader{f: f}
	var r SensorReading
	r.DeviceTimestamp = rd.intField("timestamp")
	r.Temperature = rd.floatField("temperature")
	r.Humidity = rd.floatField("humidity")
	r.RainAnalog = rd.intField("rain_analog")
	r.RainDigital = rd.intField("rain_digital")
	r.IsRaining = rd.boolField("is_raining")
	r.RSSI = rd.intField("rssi")
	return r, rd.err()
}

// DecodeDeviceState maps f onto a DeviceState.
func DecodeDeviceState(f Fields) (DeviceState, error) {
	rd := fieldReader{f: f}
	var s DeviceState
	s.DeviceTimestamp = rd.intField("timestamp")
	s.Light = rd.strField("light")
	s.Pump = rd.strField("pump")
	s.PumpSpeed = rd.intField("pumpSpeed")
	s.RSSI = rd.intField("rssi")
	return s, rd.err()
}

// DecodeOnlineStatus maps f onto an OnlineStatus.
func DecodeOnlineStatus(f Fields) (OnlineStatus, error) {
	rd := fieldReader{f: f}
	var o OnlineStatus
	o.DeviceTimestamp = rd.intField("timestamp")
	o.Online = rd.boolField("online")
	o.DeviceID = rd.strField("deviceId")
	o.Firmware = rd.strField("firmware")
	o.RSSI = rd.intField("rssi")
	return o, rd.err()
}

// DecodeCommand classifies a command by the first control key present, in
// the order light, pump, pumpSpeed. A payload with none of them is logged
// as "unknown" with the whole object as its value.
func DecodeCommand(f Fields) Command {
	for _, t := range []CommandType{CommandLight, CommandPump, CommandPumpSpeed} {
		if f.Has(string(t)) {
			return Command{Type: t, Value: f.Text(string(t)), Source: CommandSource}
		}
	}
	raw := f.Raw()
	return Command{Type: CommandUnknown, Value: &raw, Source: CommandSource}
}

// fieldReader reads typed fields and keeps every type error it meets, so one
// decode reports all mistyped fields at once.
type fieldReader struct {
	f    Fields
	errs []error
}

func (r *fieldReader) note(err error) {
	if err != nil {
		r.errs = append(r.errs, err)
	}
}

func (r *fieldReader) floatField(key string) *float64 {
	v, err := r.f.Float(key)
	r.note(err)
	return v
}

func (r *fieldReader) intField(key string) *int64 {
	v, err := r.f.Int(key)
	r.note(err)
	return v
}

func (r *fieldReader) boolField(key string) *bool {
	v, err := r.f.Bool(key)
	r.note(err)
	return v
}

func (r *fieldReader) strField(key string) *string {
	v, err := r.f.String(key)
	r.note(err)
	return v
}

func (r *fieldReader) err() error {
	return errors.Join(r.errs...)
}
