// ABOUTME: Push-channel abstraction shared by all conversations of one client
// ABOUTME: Listener registry with per-registration release and serial dispatch

package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/chatsync/internal/chat"
)

// ErrNotConnected is returned by Emit when there is no live connection.
var ErrNotConnected = errors.New("push channel not connected")

// Listener handles one inbound event. Listeners run on the channel's
// dispatch goroutine and must not block.
type Listener func(evt chat.Event)

// Channel is the persistent bidirectional connection delivering push events.
type Channel interface {
	// Listen registers fn for events of the given kind. The returned release
	// func removes exactly this registration and is safe to call repeatedly.
	Listen(name chat.EventName, fn Listener) (release func())

	// Emit sends an outbound event to the remote.
	Emit(ctx context.Context, evt chat.Outbound) error

	// Connected reports whether Emit can currently succeed.
	Connected() bool
}

// registry tracks listeners by event name. It is embedded by every Channel
// implementation in this package.
type registry struct {
	mu        sync.RWMutex
	listeners map[chat.EventName]map[string]Listener
	logger    *slog.Logger
}

func (r *registry) init(logger *slog.Logger) {
	r.listeners = make(map[chat.EventName]map[string]Listener)
	r.logger = logger
}

// Listen implements Channel.
func (r *registry) Listen(name chat.EventName, fn Listener) func() {
	id := uuid.New().String()

	r.mu.Lock()
	if _, ok := r.listeners[name]; !ok {
		r.listeners[name] = make(map[string]Listener)
	}
	r.listeners[name][id] = fn
	r.mu.Unlock()

	r.logger.Debug("listener added", "event", name, "listener_id", id)

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(name, id) })
	}
}

func (r *registry) remove(name chat.EventName, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.listeners[name]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(r.listeners, name)
	}

	r.logger.Debug("listener removed", "event", name, "listener_id", id)
}

// ListenerCount returns how many listeners are registered for name.
func (r *registry) ListenerCount(name chat.EventName) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners[name])
}

// dispatch delivers evt to every listener registered for its kind.
// Listeners are copied under the read lock and invoked without it, so a
// listener may release itself or register others.
func (r *registry) dispatch(evt chat.Event) {
	r.mu.RLock()
	subs := r.listeners[evt.Name()]
	targets := make([]Listener, 0, len(subs))
	for _, fn := range subs {
		targets = append(targets, fn)
	}
	r.mu.RUnlock()

	if len(targets) == 0 {
		r.logger.Debug("no listeners for event", "event", evt.Name())
		return
	}

	for _, fn := range targets {
		fn(evt)
	}
}
