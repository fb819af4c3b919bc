// ABOUTME: Live event subscription scoped to the selected counterpart
// ABOUTME: Registers four push-channel listeners and releases them exactly once

package conversation

import (
	"sync"

	"github.com/2389/chatsync/internal/chat"
	"github.com/2389/chatsync/internal/realtime"
)

// subscription owns the listener registrations for one counterpart.
type subscription struct {
	counterpartID string
	releases      []func()
	once          sync.Once
}

// Release removes every registration. Safe to call more than once.
func (sub *subscription) Release() {
	sub.once.Do(func() {
		for _, release := range sub.releases {
			release()
		}
	})
}

// Subscribe registers live-event listeners for the selected counterpart. It
// does nothing when no counterpart is selected or a subscription is active.
func (s *Store) Subscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state.Selected == nil || s.sub != nil {
		return
	}

	sub := &subscription{counterpartID: s.state.Selected.ID}
	sub.releases = []func(){
		s.channel.Listen(chat.EventNewMessage, s.onNewMessage(sub)),
		s.channel.Listen(chat.EventTypingStart, s.onTypingStart(sub)),
		s.channel.Listen(chat.EventTypingStop, s.onTypingStop(sub)),
		s.channel.Listen(chat.EventMessageRead, s.onMessageRead(sub)),
	}
	s.sub = sub
	s.state.Subscribed = true
	s.publishLocked()

	s.logger.Debug("subscribed", "counterpart_id", sub.counterpartID)
}

// Unsubscribe releases the live-event listeners. Safe to call when not
// subscribed.
func (s *Store) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub == nil {
		return
	}
	s.releaseLocked()
	s.publishLocked()
}

func (s *Store) releaseLocked() {
	if s.sub == nil {
		return
	}
	s.sub.Release()
	s.logger.Debug("unsubscribed", "counterpart_id", s.sub.counterpartID)
	s.sub = nil
	s.state.Subscribed = false
}

// live wraps a handler so it only runs while sub is the active
// subscription. A dispatch already in progress when sub was released is
// ignored.
func (s *Store) live(sub *subscription, fn func(evt chat.Event) bool) realtime.Listener {
	return func(evt chat.Event) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.sub != sub {
			return
		}
		if fn(evt) {
			s.publishLocked()
		}
	}
}

func (s *Store) onNewMessage(sub *subscription) realtime.Listener {
	return s.live(sub, func(evt chat.Event) bool {
		e, ok := evt.(chat.NewMessage)
		if !ok {
			return false
		}
		if e.Message.SenderID != sub.counterpartID {
			return false
		}
		if s.seen != nil && s.seen.Seen(seenKey(sub.counterpartID, e.Message.ID)) {
			s.logger.Debug("duplicate message dropped", "message_id", e.Message.ID)
			return false
		}
		s.state.Messages = append(s.state.Messages, e.Message.Clone())
		return true
	})
}
