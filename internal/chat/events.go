// ABOUTME: Tagged push-channel event variants and their validation at the wire boundary
// ABOUTME: Decodes inbound frames into typed events and encodes outbound typing signals

package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventName identifies an event kind on the push channel.
type EventName string

const (
	EventNewMessage  EventName = "newMessage"
	EventTypingStart EventName = "typing:start"
	EventTypingStop  EventName = "typing:stop"
	EventMessageRead EventName = "message:read"
)

// Decode errors.
var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrInvalidPayload = errors.New("invalid event payload")
)

// Event is an inbound push-channel event. The concrete types are
// NewMessage, TypingStarted, TypingStopped and MessageRead.
type Event interface {
	Name() EventName
	isEvent()
}

// NewMessage delivers a message sent to the local user.
type NewMessage struct {
	Message Message
}

// TypingStarted reports that SenderID started typing to the local user.
type TypingStarted struct {
	SenderID string `json:"senderId"`
}

// TypingStopped reports that SenderID stopped typing.
type TypingStopped struct {
	SenderID string `json:"senderId"`
}

// MessageRead acknowledges that a message was read.
type MessageRead struct {
	MessageID string    `json:"messageId"`
	ReadAt    time.Time `json:"readAt"`
}

func (NewMessage) Name() EventName    { return EventNewMessage }
func (TypingStarted) Name() EventName { return EventTypingStart }
func (TypingStopped) Name() EventName { return EventTypingStop }
func (MessageRead) Name() EventName   { return EventMessageRead }

func (NewMessage) isEvent()    {}
func (TypingStarted) isEvent() {}
func (TypingStopped) isEvent() {}
func (MessageRead) isEvent()   {}

// DecodeEvent turns a raw inbound payload into a typed event. Payloads
// missing required fields are rejected with ErrInvalidPayload so that
// nothing loosely shaped reaches the conversation state.
func DecodeEvent(name EventName, data []byte) (Event, error) {
	switch name {
	case EventNewMessage:
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, name, err)
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, name, err)
		}
		return NewMessage{Message: m}, nil

	case EventTypingStart:
		var e TypingStarted
		if err := decodeSender(name, data, &e.SenderID); err != nil {
			return nil, err
		}
		return e, nil

	case EventTypingStop:
		var e TypingStopped
		if err := decodeSender(name, data, &e.SenderID); err != nil {
			return nil, err
		}
		return e, nil

	case EventMessageRead:
		var e MessageRead
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, name, err)
		}
		if e.MessageID == "" {
			return nil, fmt.Errorf("%w: %s: missing messageId", ErrInvalidPayload, name)
		}
		if e.ReadAt.IsZero() {
			return nil, fmt.Errorf("%w: %s: missing readAt", ErrInvalidPayload, name)
		}
		return e, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
}

func decodeSender(name EventName, data []byte, dst *string) error {
	var p struct {
		SenderID string `json:"senderId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, name, err)
	}
	if p.SenderID == "" {
		return fmt.Errorf("%w: %s: missing senderId", ErrInvalidPayload, name)
	}
	*dst = p.SenderID
	return nil
}

// Outbound is an event the local client emits on the push channel.
type Outbound interface {
	Name() EventName
	isOutbound()
}

// StartTyping tells ReceiverID that the local user is typing.
type StartTyping struct {
	ReceiverID string `json:"receiverId"`
	SenderName string `json:"senderName"`
}

// StopTyping tells ReceiverID that the local user stopped typing.
type StopTyping struct {
	ReceiverID string `json:"receiverId"`
}

func (StartTyping) Name() EventName { return EventTypingStart }
func (StopTyping) Name() EventName  { return EventTypingStop }

func (StartTyping) isOutbound() {}
func (StopTyping) isOutbound()  {}
