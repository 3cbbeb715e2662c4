package phx

import (
	"encoding/json"
	"fmt"
)

// Message is one frame of the V2 channel protocol:
// `[join_ref, ref, topic, event, payload]`.
type Message struct {
	JoinRef string
	Ref     string
	Topic   string
	Event   string
	Payload Payload
}

// encodeText renders the JSON array form.
func (m *Message) encodeText() ([]byte, error) {
	arr := [5]any{nullable(m.JoinRef), nullable(m.Ref), m.Topic, m.Event, m.Payload.JSON}
	return json.Marshal(arr)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// decodeText parses the JSON array form.
func decodeText(data []byte) (*Message, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, fmt.Errorf("phx: malformed frame: %w", err)
	}
	if len(arr) != 5 {
		return nil, fmt.Errorf("phx: frame has %d elements, want 5", len(arr))
	}
	var m Message
	if err := decodeNullableString(arr[0], &m.JoinRef); err != nil {
		return nil, err
	}
	if err := decodeNullableString(arr[1], &m.Ref); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(arr[2], &m.Topic); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(arr[3], &m.Event); err != nil {
		return nil, err
	}
	var payload any
	if err := json.Unmarshal(arr[4], &payload); err != nil {
		return nil, err
	}
	m.Payload = JSONPayload(payload)
	return &m, nil
}

func decodeNullableString(data json.RawMessage, out *string) error {
	if string(data) == "null" {
		*out = ""
		return nil
	}
	return json.Unmarshal(data, out)
}

// Binary frame kinds, first byte of a binary frame.
const (
	binaryPush      = 0
	binaryReply     = 1
	binaryBroadcast = 2
)

// encodeBinaryPush renders the binary push frame used for bulk payloads:
// a kind byte, the join ref / ref / topic / event lengths, the four
// strings, then the raw body.
func (m *Message) encodeBinaryPush() []byte {
	joinRef, ref, topic, event := []byte(m.JoinRef), []byte(m.Ref), []byte(m.Topic), []byte(m.Event)
	out := make([]byte, 0, 5+len(joinRef)+len(ref)+len(topic)+len(event)+len(m.Payload.Binary))
	out = append(out, binaryPush, byte(len(joinRef)), byte(len(ref)), byte(len(topic)), byte(len(event)))
	out = append(out, joinRef...)
	out = append(out, ref...)
	out = append(out, topic...)
	out = append(out, event...)
	out = append(out, m.Payload.Binary...)
	return out
}

// decodeBinary parses a server-sent binary frame (reply or broadcast).
func decodeBinary(data []byte) (*Message, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("phx: empty binary frame")
	}
	kind := data[0]
	switch kind {
	case binaryReply:
		if len(data) < 5 {
			return nil, fmt.Errorf("phx: short binary reply")
		}
		joinRefLen, refLen, topicLen, eventLen := int(data[1]), int(data[2]), int(data[3]), int(data[4])
		offset := 5
		if len(data) < offset+joinRefLen+refLen+topicLen+eventLen {
			return nil, fmt.Errorf("phx: truncated binary reply")
		}
		m := &Message{}
		m.JoinRef = string(data[offset : offset+joinRefLen])
		offset += joinRefLen
		m.Ref = string(data[offset : offset+refLen])
		offset += refLen
		m.Topic = string(data[offset : offset+topicLen])
		offset += topicLen
		status := string(data[offset : offset+eventLen])
		offset += eventLen
		m.Event = "phx_reply"
		m.Payload = JSONPayload(map[string]any{"status": status, "response": nil})
		if len(data) > offset {
			// A reply with a binary body keeps the status in JSON and the
			// body in Binary.
			m.Payload.Binary = append([]byte(nil), data[offset:]...)
		}
		return m, nil
	case binaryBroadcast:
		if len(data) < 3 {
			return nil, fmt.Errorf("phx: short binary broadcast")
		}
		topicLen, eventLen := int(data[1]), int(data[2])
		offset := 3
		if len(data) < offset+topicLen+eventLen {
			return nil, fmt.Errorf("phx: truncated binary broadcast")
		}
		m := &Message{}
		m.Topic = string(data[offset : offset+topicLen])
		offset += topicLen
		m.Event = string(data[offset : offset+eventLen])
		offset += eventLen
		m.Payload = BinaryPayload(append([]byte(nil), data[offset:]...))
		return m, nil
	default:
		return nil, fmt.Errorf("phx: unsupported binary frame kind %d", kind)
	}
}
