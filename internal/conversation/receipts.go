// ABOUTME: Read receipts: best-effort mark-read requests and acknowledgement handling
// ABOUTME: Local read state changes only when the push channel acknowledges it

package conversation

import (
	"context"

	"github.com/2389/chatsync/internal/chat"
	"github.com/2389/chatsync/internal/realtime"
)

// MarkRead asks the remote to mark messageID read. The local message is
// updated later by the message:read acknowledgement. Failures are logged
// and not retried.
func (s *Store) MarkRead(ctx context.Context, messageID string) {
	if messageID == "" {
		return
	}
	if err := s.remote.MarkRead(ctx, messageID); err != nil {
		s.logger.Warn("mark read failed", "message_id", messageID, "error", err)
	}
}

func (s *Store) onMessageRead(sub *subscription) realtime.Listener {
	return s.live(sub, func(evt chat.Event) bool {
		e, ok := evt.(chat.MessageRead)
		if !ok {
			return false
		}
		i := s.state.indexOf(e.MessageID)
		if i < 0 {
			s.logger.Debug("read receipt for message not loaded", "message_id", e.MessageID)
			return false
		}
		m := &s.state.Messages[i]
		if m.IsRead && m.ReadAt != nil && m.ReadAt.Equal(e.ReadAt) {
			return false
		}
		m.MarkRead(e.ReadAt)
		return true
	})
}
