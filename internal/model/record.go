// Package model defines the core data types shared across the monitor:
// decoded records, trace snapshots, and the statistics structures served
// to readers.
package model

import "time"

// PayloadKind tags the decoded payload with its source encoding.
type PayloadKind string

const (
	PayloadJSON     PayloadKind = "json"
	PayloadAvro     PayloadKind = "avro"
	PayloadProtobuf PayloadKind = "protobuf"
	PayloadBytes    PayloadKind = "bytes"
)

// Payload is a decoded message body. The Kind tag says which decoder
// produced it; Fields holds the structured view and Raw the original bytes.
// Access goes through the typed getters so callers do not reach into the
// map with unchecked assertions.
type Payload struct {
	Kind   PayloadKind    `json:"kind"`
	Fields map[string]any `json:"fields,omitempty"`
	Raw    []byte         `json:"raw,omitempty"`
}

// String returns the named field as a string.
func (p Payload) String(field string) (string, bool) {
	v, ok := p.Fields[field]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int returns the named field as an int64. JSON numbers decode as float64,
// so both representations are accepted.
func (p Payload) Int(field string) (int64, bool) {
	switch v := p.Fields[field].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// Float returns the named field as a float64.
func (p Payload) Float(field string) (float64, bool) {
	switch v := p.Fields[field].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Clone returns an independent copy of the payload.
func (p Payload) Clone() Payload {
	out := Payload{Kind: p.Kind}
	if p.Fields != nil {
		out.Fields = make(map[string]any, len(p.Fields))
		for k, v := range p.Fields {
			out.Fields[k] = v
		}
	}
	if p.Raw != nil {
		out.Raw = append([]byte(nil), p.Raw...)
	}
	return out
}

// Record is a single decoded event received from a topic.
// Records are immutable once created; the assembler stamps CorrelationID
// at ingest time and nothing mutates them afterwards.
type Record struct {
	Topic         string            `json:"topic"`
	Headers       map[string]string `json:"headers,omitempty"`
	Payload       Payload           `json:"payload"`
	ReceivedAt    time.Time         `json:"received_at"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	out := r
	if r.Headers != nil {
		out.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			out.Headers[k] = v
		}
	}
	out.Payload = r.Payload.Clone()
	return out
}
