// Package phx is a client for Phoenix channels over WebSocket: a
// multiplexed Socket carrying topic-addressed Channels with join, call,
// cast, and per-channel event and status streams. It speaks the V2 wire
// protocol (JSON arrays) plus the binary push frame used for bulk
// payloads such as upload chunks.
package phx

import (
	"encoding/json"
	"strings"
)

// Payload is the body of a channel message: decoded JSON or raw bytes.
type Payload struct {
	// JSON holds objects, arrays, strings, numbers, booleans, or nil.
	JSON any
	// Binary holds the raw body. IsBinary marks a payload that is only
	// bytes; a decoded binary reply keeps its status in JSON and its body
	// here with IsBinary unset.
	Binary   []byte
	IsBinary bool
}

// JSONPayload wraps a decoded JSON value.
func JSONPayload(value any) Payload {
	return Payload{JSON: value}
}

// BinaryPayload wraps raw bytes.
func BinaryPayload(data []byte) Payload {
	return Payload{Binary: data, IsBinary: true}
}

// EmptyPayload is the JSON object payload `{}`.
func EmptyPayload() Payload {
	return Payload{JSON: map[string]any{}}
}

// Object returns the payload as a JSON object, when it is one.
func (p Payload) Object() (map[string]any, bool) {
	obj, ok := p.JSON.(map[string]any)
	return obj, ok && !p.IsBinary
}

// Get looks up a key in a JSON object payload.
func (p Payload) Get(key string) (any, bool) {
	obj, ok := p.Object()
	if !ok {
		return nil, false
	}
	v, ok := obj[key]
	return v, ok
}

// GetString looks up a string value in a JSON object payload.
func (p Payload) GetString(key string) (string, bool) {
	v, ok := p.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// MarshalJSON renders the JSON form; binary payloads have no JSON form
// and marshal as null.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.IsBinary {
		return []byte("null"), nil
	}
	return json.Marshal(p.JSON)
}

func (p Payload) String() string {
	if p.IsBinary {
		return "<binary payload>"
	}
	out, err := json.Marshal(p.JSON)
	if err != nil {
		return "<unencodable payload>"
	}
	return string(out)
}

// PhoenixKind enumerates the protocol-reserved channel events.
type PhoenixKind uint8

const (
	PhoenixJoin PhoenixKind = iota
	PhoenixClose
	PhoenixError
	PhoenixReply
	PhoenixLeave
	PhoenixHeartbeat
)

var phoenixWire = map[PhoenixKind]string{
	PhoenixJoin:      "phx_join",
	PhoenixClose:     "phx_close",
	PhoenixError:     "phx_error",
	PhoenixReply:     "phx_reply",
	PhoenixLeave:     "phx_leave",
	PhoenixHeartbeat: "heartbeat",
}

func (k PhoenixKind) String() string { return phoenixWire[k] }

// Event identifies a channel event: a protocol-reserved Phoenix event or
// a user-defined one.
type Event struct {
	Phoenix   PhoenixKind
	User      string
	IsPhoenix bool
}

// PhoenixEvent builds a protocol event.
func PhoenixEvent(kind PhoenixKind) Event {
	return Event{Phoenix: kind, IsPhoenix: true}
}

// UserEvent builds a user-defined event.
func UserEvent(name string) Event {
	return Event{User: name}
}

// ParseEvent maps a wire event name to an Event.
func ParseEvent(name string) Event {
	if strings.HasPrefix(name, "phx_") || name == "heartbeat" {
		for kind, wire := range phoenixWire {
			if wire == name {
				return PhoenixEvent(kind)
			}
		}
	}
	return UserEvent(name)
}

// WireName returns the event name as sent on the wire.
func (e Event) WireName() string {
	if e.IsPhoenix {
		return phoenixWire[e.Phoenix]
	}
	return e.User
}

func (e Event) String() string { return e.WireName() }

// Is reports whether the event is the given user event.
func (e Event) Is(name string) bool {
	return !e.IsPhoenix && e.User == name
}

// EventPayload pairs an event with its payload, as observed on a
// channel's event stream.
type EventPayload struct {
	Event   Event
	Payload Payload
}
