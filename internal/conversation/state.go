// ABOUTME: Observable conversation state and deep-copy snapshots of it
// ABOUTME: Users, loaded messages, selected counterpart, typing set and loading flags

package conversation

import (
	"slices"

	"github.com/2389/chatsync/internal/chat"
)

// State is a point-in-time view of the store.
type State struct {
	Users    []chat.User
	Messages []chat.Message

	// Selected is the active counterpart, nil when none is selected.
	Selected *chat.User

	// TypingUsers holds counterpart IDs currently typing, in first-seen order.
	TypingUsers []string

	UsersLoading    bool
	MessagesLoading bool
	Subscribed      bool
}

// IsTyping reports whether userID is in the typing set.
func (s State) IsTyping(userID string) bool {
	return slices.Contains(s.TypingUsers, userID)
}

// clone returns a copy of s that shares no memory with it.
func (s State) clone() State {
	out := s
	out.Users = slices.Clone(s.Users)
	out.TypingUsers = slices.Clone(s.TypingUsers)

	if s.Messages != nil {
		out.Messages = make([]chat.Message, len(s.Messages))
		for i, m := range s.Messages {
			out.Messages[i] = m.Clone()
		}
	}
	if s.Selected != nil {
		u := *s.Selected
		out.Selected = &u
	}
	return out
}

// indexOf returns the position of the loaded message with the given ID, or -1.
func (s State) indexOf(messageID string) int {
	return slices.IndexFunc(s.Messages, func(m chat.Message) bool {
		return m.ID == messageID
	})
}
