// ABOUTME: Outbound message submission to the selected counterpart
// ABOUTME: Appends the server's canonical copy on success, nothing on failure

package conversation

import (
	"context"
	"fmt"

	"github.com/2389/chatsync/internal/chat"
)

// Send submits draft to the selected counterpart and appends the message the
// server returns. Nothing is inserted before the server confirms, so a
// failure leaves history untouched.
func (s *Store) Send(ctx context.Context, draft chat.Draft) (*chat.Message, error) {
	if draft.Empty() {
		return nil, ErrEmptyMessage
	}

	counterpartID := s.selectedID()
	if counterpartID == "" {
		return nil, ErrNoSelection
	}

	msg, err := s.remote.Send(ctx, counterpartID, draft)
	if err != nil {
		return nil, s.fail(fmt.Errorf("send to %s: %w", counterpartID, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen != nil {
		s.seen.Remember(seenKey(counterpartID, msg.ID))
	}

	// The selection may have moved on while the request was in flight.
	if s.state.Selected == nil || s.state.Selected.ID != counterpartID {
		s.logger.Debug("sent message not appended, selection changed",
			"counterpart_id", counterpartID,
			"message_id", msg.ID)
		return msg, nil
	}

	// A history reload that finished first may already hold it.
	if s.state.indexOf(msg.ID) >= 0 {
		s.logger.Debug("sent message already loaded",
			"counterpart_id", counterpartID,
			"message_id", msg.ID)
		return msg, nil
	}

	s.state.Messages = append(s.state.Messages, msg.Clone())
	s.publishLocked()

	s.logger.Debug("message sent",
		"counterpart_id", counterpartID,
		"message_id", msg.ID)
	return msg, nil
}
