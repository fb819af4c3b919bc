// ABOUTME: Websocket frame envelope used by the push channel in both directions
// ABOUTME: Every frame is {"event": <name>, "data": <payload>}

package chat

import (
	"encoding/json"
	"fmt"
)

// Frame is the envelope for a single push-channel event.
type Frame struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// EncodeFrame marshals payload into a frame for the named event.
func EncodeFrame(name EventName, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", name, err)
	}
	return json.Marshal(Frame{Event: name, Data: data})
}

// EncodeEvent marshals an inbound event the way the remote sends it.
// NewMessage travels as the bare message object.
func EncodeEvent(evt Event) ([]byte, error) {
	if nm, ok := evt.(NewMessage); ok {
		return EncodeFrame(evt.Name(), nm.Message)
	}
	return EncodeFrame(evt.Name(), evt)
}

// ParseFrame unmarshals a raw websocket message into a frame.
func ParseFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("parsing frame: %w", err)
	}
	if f.Event == "" {
		return Frame{}, fmt.Errorf("parsing frame: missing event name")
	}
	return f, nil
}
