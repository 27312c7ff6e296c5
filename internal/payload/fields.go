// Package payload decodes the JSON objects the garden controller publishes.
//
// Every field is optional on the wire. Accessors return a nil pointer when a
// key is absent or explicitly null, so callers can tell "not reported" apart
// from a zero reading and store it as NULL.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

var (
	// ErrNotObject is returned when the payload is valid JSON but not an object.
	ErrNotObject = errors.New("payload is not a JSON object")
	// ErrFieldType is returned when a known field carries the wrong JSON type.
	ErrFieldType = errors.New("unexpected field type")
	// ErrMissingField is returned by record decoders when a required field is absent.
	ErrMissingField = errors.New("missing required field")
)

// Fields is a decoded JSON object. Numbers are kept as json.Number so
// integers survive untouched.
type Fields struct {
	raw    []byte
	values map[string]any
}

// Decode parses raw as a JSON object.
func Decode(raw []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Fields{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Fields{}, errors.New("invalid JSON: trailing data after object")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return Fields{}, ErrNotObject
	}
	return Fields{raw: raw, values: obj}, nil
}

// Has reports whether key is present, even with a null value.
func (f Fields) Has(key string) bool {
	_, ok := f.values[key]
	return ok
}

// Raw returns the payload compacted to a single line.
func (f Fields) Raw() string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, f.raw); err != nil {
		return strings.TrimSpace(string(f.raw))
	}
	return buf.String()
}

func (f Fields) lookup(key string) (any, bool) {
	v, ok := f.values[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Float returns key as a float64.
func (f Fields) Float(key string) (*float64, error) {
	v, ok := f.lookup(key)
	if !ok {
		return nil, nil
	}
	n, ok := v.(json.Number)
	if !ok {
		return nil, typeError(key, "number", v)
	}
	x, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	return &x, nil
}

// Int returns key as an int64. Floats with no fractional part are accepted
// because some firmware JSON encoders write 42.0.
func (f Fields) Int(key string) (*int64, error) {
	v, ok := f.lookup(key)
	if !ok {
		return nil, nil
	}
	n, ok := v.(json.Number)
	if !ok {
		return nil, typeError(key, "integer", v)
	}
	if i, err := n.Int64(); err == nil {
		return &i, nil
	}
	x, err := n.Float64()
	// float64(MaxInt64) rounds up to 2^63, which no int64 holds.
	if err != nil || x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
		return nil, fmt.Errorf("field %q: %w: want integer, got %s", key, ErrFieldType, n.String())
	}
	i := int64(x)
	return &i, nil
}

// Bool returns key as a bool.
func (f Fields) Bool(key string) (*bool, error) {
	v, ok := f.lookup(key)
	if !ok {
		return nil, nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil, typeError(key, "boolean", v)
	}
	return &b, nil
}

// String returns key as a string.
func (f Fields) String(key string) (*string, error) {
	v, ok := f.lookup(key)
	if !ok {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, typeError(key, "string", v)
	}
	return &s, nil
}

// Text renders any present value as text: strings as-is, numbers by their JSON
// spelling and everything else JSON-encoded.
func (f Fields) Text(key string) *string {
	v, ok := f.lookup(key)
	if !ok {
		return nil
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case json.Number:
		s = x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			s = fmt.Sprint(x)
		} else {
			s = string(b)
		}
	}
	return &s
}

func typeError(key, want string, got any) error {
	return fmt.Errorf("field %q: %w: want %s, got %s", key, ErrFieldType, want, jsonKind(got))
}

func jsonKind(v any) string {
	switch v.(type) {
	case json.Number:
		return "number"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
