package broker

import "strings"

// DefaultNamespace is the topic prefix the garden firmware publishes under.
const DefaultNamespace = "demo/garden"

// Stream identifies which of the four device channels a message came from.
type Stream int

const (
	StreamUnknown Stream = iota
	StreamSensor
	StreamDeviceState
	StreamOnline
	StreamCommand
)

func (s Stream) String() string {
	switch s {
	case StreamSensor:
		return "sensor"
	case StreamDeviceState:
		return "state"
	case StreamOnline:
		return "online"
	case StreamCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Topic suffixes, relative to the namespace.
const (
	suffixSensor = "/sensor/state"
	suffixState  = "/device/state"
	suffixOnline = "/sys/online"
	suffixCmd    = "/device/cmd"
)

// Topics builds the concrete topic names under a namespace.
type Topics struct {
	Namespace string
}

func NewTopics(ns string) Topics {
	ns = strings.TrimRight(ns, "/")
	if ns == "" {
		ns = DefaultNamespace
	}
	return Topics{Namespace: ns}
}

func (t Topics) SensorState() string { return t.Namespace + suffixSensor }
func (t Topics) DeviceState() string { return t.Namespace + suffixState }
func (t Topics) SysOnline() string   { return t.Namespace + suffixOnline }
func (t Topics) DeviceCmd() string   { return t.Namespace + suffixCmd }

// All returns the four device topics, subscribed by the data logger.
func (t Topics) All() []string {
	return []string{t.SensorState(), t.DeviceState(), t.SysOnline(), t.DeviceCmd()}
}

// Route maps a topic to its stream by suffix, so a message is recognised
// whatever namespace it arrived under.
func Route(topic string) Stream {
	switch {
	case strings.HasSuffix(topic, suffixSensor):
		return StreamSensor
	case strings.HasSuffix(topic, suffixState):
		return StreamDeviceState
	case strings.HasSuffix(topic, suffixOnline):
		return StreamOnline
	case strings.HasSuffix(topic, suffixCmd):
		return StreamCommand
	default:
		return StreamUnknown
	}
}
