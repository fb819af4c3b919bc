// ABOUTME: Typing indicators: outbound signals to the counterpart and the inbound typing set
// ABOUTME: The typing set only ever reflects remote users, never the local user

package conversation

import (
	"context"
	"slices"

	"github.com/2389/chatsync/internal/chat"
	"github.com/2389/chatsync/internal/realtime"
)

// SignalTyping tells the selected counterpart whether the local user is
// typing. It is a no-op without a selection, a local user or a connected
// push channel. Emit failures are logged and dropped.
func (s *Store) SignalTyping(ctx context.Context, isTyping bool) {
	counterpartID := s.selectedID()
	if counterpartID == "" || s.self == nil || !s.channel.Connected() {
		return
	}

	var evt chat.Outbound = chat.StopTyping{ReceiverID: counterpartID}
	if isTyping {
		evt = chat.StartTyping{ReceiverID: counterpartID, SenderName: s.self.Name}
	}

	if err := s.channel.Emit(ctx, evt); err != nil {
		s.logger.Debug("typing signal not sent",
			"event", evt.Name(),
			"counterpart_id", counterpartID,
			"error", err)
	}
}

func (s *Store) onTypingStart(sub *subscription) realtime.Listener {
	return s.live(sub, func(evt chat.Event) bool {
		e, ok := evt.(chat.TypingStarted)
		if !ok || e.SenderID != sub.counterpartID {
			return false
		}
		if slices.Contains(s.state.TypingUsers, e.SenderID) {
			return false
		}
		s.state.TypingUsers = append(s.state.TypingUsers, e.SenderID)
		return true
	})
}

// onTypingStop removes the sender whichever conversation it belongs to.
func (s *Store) onTypingStop(sub *subscription) realtime.Listener {
	return s.live(sub, func(evt chat.Event) bool {
		e, ok := evt.(chat.TypingStopped)
		if !ok {
			return false
		}
		i := slices.Index(s.state.TypingUsers, e.SenderID)
		if i < 0 {
			return false
		}
		s.state.TypingUsers = slices.Delete(s.state.TypingUsers, i, i+1)
		return true
	})
}
