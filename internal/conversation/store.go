// ABOUTME: Aggregate conversation store composing selection, fetch, send, live events
// ABOUTME: Serializes mutations behind one mutex and publishes snapshots to watchers

package conversation

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/2389/chatsync/internal/chat"
	"github.com/2389/chatsync/internal/dedupe"
	"github.com/2389/chatsync/internal/realtime"
)

// Store errors
var (
	ErrNoSelection   = errors.New("no conversation selected")
	ErrInvalidUserID = errors.New("invalid user id")
	ErrEmptyMessage  = errors.New("message has no content or attachments")
)

// Remote is the request/response side of the message store.
type Remote interface {
	ListUsers(ctx context.Context) ([]chat.User, error)
	History(ctx context.Context, counterpartID string) ([]chat.Message, error)
	Send(ctx context.Context, counterpartID string, draft chat.Draft) (*chat.Message, error)
	MarkRead(ctx context.Context, messageID string) error
}

// Notifier displays failures to the user.
type Notifier interface {
	NotifyError(msg string)
}

// userMessager is implemented by errors that carry display text.
type userMessager interface {
	UserMessage() string
}

// Options configures a Store. All fields are optional.
type Options struct {
	Logger   *slog.Logger
	Notifier Notifier

	// Self is the local user. Typing signals are skipped while it is nil.
	Self *chat.User

	// Dedupe, when set, drops newMessage events already seen for the
	// selected conversation.
	Dedupe *dedupe.Window
}

// Store holds the observable state of one chat client.
type Store struct {
	remote   Remote
	channel  realtime.Channel
	notifier Notifier
	self     *chat.User
	seen     *dedupe.Window
	logger   *slog.Logger

	mu              sync.Mutex
	state           State
	sub             *subscription
	pendingUsers    int
	pendingMessages int
	closed          bool

	watchers *watchers
}

// NewStore creates a store over the given remote and push channel.
func NewStore(remote Remote, channel realtime.Channel, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "conversation")

	s := &Store{
		remote:   remote,
		channel:  channel,
		notifier: opts.Notifier,
		seen:     opts.Dedupe,
		logger:   logger,
		watchers: newWatchers(logger),
	}
	if opts.Self != nil {
		self := *opts.Self
		s.self = &self
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Watch returns a channel receiving a snapshot after every mutation, and an
// ID for Unwatch. The watch ends when ctx is cancelled or the store closes.
func (s *Store) Watch(ctx context.Context) (<-chan State, string) {
	return s.watchers.add(ctx)
}

// Unwatch stops a watch started by Watch and closes its channel.
func (s *Store) Unwatch(id string) {
	s.watchers.remove(id)
}

// SelectUser makes user the active counterpart, or clears the selection when
// user is nil. The previous subscription is released and the message list
// and typing set are cleared. It neither fetches nor subscribes.
func (s *Store) SelectUser(user *chat.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked()
	s.state.Messages = nil
	s.state.TypingUsers = nil

	if user == nil {
		s.state.Selected = nil
		s.logger.Debug("selection cleared")
	} else {
		u := *user
		s.state.Selected = &u
		s.logger.Debug("counterpart selected", "counterpart_id", u.ID)
	}
	s.publishLocked()
}

// Open selects user, subscribes to its live events, then loads history.
// Subscribing first means events arriving during the fetch are not missed;
// the fetched history then replaces whatever they appended.
func (s *Store) Open(ctx context.Context, user chat.User) error {
	if user.ID == "" {
		return ErrInvalidUserID
	}
	s.SelectUser(&user)
	s.Subscribe()
	return s.LoadHistory(ctx, user.ID)
}

// Close releases the live subscription and closes all watchers. The store
// must not be used afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.releaseLocked()
	s.mu.Unlock()

	s.watchers.closeAll()
	s.logger.Debug("store closed")
}

// selectedID returns the selected counterpart's ID, or "" when none is set.
func (s *Store) selectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Selected == nil {
		return ""
	}
	return s.state.Selected.ID
}

// publishLocked sends a snapshot to watchers. Callers hold s.mu, which keeps
// snapshots in mutation order.
func (s *Store) publishLocked() {
	s.watchers.publish(s.state.clone())
}

// fail reports err to the notifier and returns it.
func (s *Store) fail(err error) error {
	if s.notifier == nil {
		return err
	}
	msg := err.Error()
	var um userMessager
	if errors.As(err, &um) && um.UserMessage() != "" {
		msg = um.UserMessage()
	}
	s.notifier.NotifyError(msg)
	return err
}
