// ABOUTME: Pull side of the store: the user roster and per-counterpart history
// ABOUTME: Failures keep the last-known-good lists and always clear loading flags

package conversation

import (
	"context"
	"fmt"
	"slices"

	"github.com/2389/chatsync/internal/chat"
)

// ListUsers replaces the user roster with the remote's. On failure the
// previous roster is kept and the error is reported and returned.
func (s *Store) ListUsers(ctx context.Context) error {
	s.mu.Lock()
	s.pendingUsers++
	s.state.UsersLoading = true
	s.publishLocked()
	s.mu.Unlock()

	users, err := s.remote.ListUsers(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pendingUsers--
	s.state.UsersLoading = s.pendingUsers > 0
	if err == nil {
		s.state.Users = slices.Clone(users)
		s.logger.Debug("users loaded", "count", len(users))
	}
	s.publishLocked()

	if err != nil {
		return s.fail(fmt.Errorf("list users: %w", err))
	}
	return nil
}

// LoadHistory replaces the message list with the full history exchanged
// with counterpartID. It does not check that counterpartID is still selected
// when the response arrives.
func (s *Store) LoadHistory(ctx context.Context, counterpartID string) error {
	if counterpartID == "" {
		return ErrInvalidUserID
	}

	s.mu.Lock()
	s.pendingMessages++
	s.state.MessagesLoading = true
	s.publishLocked()
	s.mu.Unlock()

	msgs, err := s.remote.History(ctx, counterpartID)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pendingMessages--
	s.state.MessagesLoading = s.pendingMessages > 0
	if err == nil {
		loaded := make([]chat.Message, len(msgs))
		for i, m := range msgs {
			loaded[i] = m.Clone()
		}
		s.state.Messages = loaded
		s.rememberAll(counterpartID, msgs)
		s.logger.Debug("history loaded",
			"counterpart_id", counterpartID,
			"count", len(msgs))
	}
	s.publishLocked()

	if err != nil {
		return s.fail(fmt.Errorf("load history for %s: %w", counterpartID, err))
	}
	return nil
}

func (s *Store) rememberAll(counterpartID string, msgs []chat.Message) {
	if s.seen == nil {
		return
	}
	for _, m := range msgs {
		s.seen.Remember(seenKey(counterpartID, m.ID))
	}
}

// seenKey scopes a message ID to one conversation in the dedupe window.
func seenKey(counterpartID, messageID string) string {
	return counterpartID + "/" + messageID
}
