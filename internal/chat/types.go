// ABOUTME: Core chat data model shared by the sync layer, transports and dev server
// ABOUTME: Users, messages and outgoing drafts with their JSON wire shapes

package chat

import (
	"errors"
	"time"
)

// Validation errors returned by Validate methods.
var (
	ErrMissingID     = errors.New("missing id")
	ErrMissingSender = errors.New("missing sender id")
)

// User is a participant known to the remote store.
type User struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// Message is a single one-to-one chat message. The remote store assigns ID
// and CreatedAt; local copies never invent them.
type Message struct {
	ID          string     `json:"_id"`
	SenderID    string     `json:"senderId"`
	ReceiverID  string     `json:"receiverId"`
	Content     string     `json:"content"`
	Attachments []string   `json:"attachments,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	IsRead      bool       `json:"isRead"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}

// Validate checks the fields every message delivered by the remote must carry.
func (m *Message) Validate() error {
	if m.ID == "" {
		return ErrMissingID
	}
	if m.SenderID == "" {
		return ErrMissingSender
	}
	return nil
}

// Clone returns a copy of m that shares no memory with it.
func (m Message) Clone() Message {
	if m.Attachments != nil {
		m.Attachments = append([]string(nil), m.Attachments...)
	}
	if m.ReadAt != nil {
		t := *m.ReadAt
		m.ReadAt = &t
	}
	return m
}

// MarkRead flags the message as read at the given time.
func (m *Message) MarkRead(at time.Time) {
	m.IsRead = true
	m.ReadAt = &at
}

// Draft is the body of POST /messages/send/{counterpartId}.
type Draft struct {
	Content     string   `json:"content"`
	Attachments []string `json:"attachments,omitempty"`
}

// Empty reports whether the draft has nothing to send.
func (d Draft) Empty() bool {
	return d.Content == "" && len(d.Attachments) == 0
}
