// ABOUTME: In-memory fan-out of state snapshots to presentation-layer watchers
// ABOUTME: Non-blocking publish, context-bound cleanup and close-all on shutdown

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// watcherBufferSize is the channel buffer for each watcher.
	watcherBufferSize = 64
)

type watcher struct {
	ch   chan State
	done chan struct{}
}

// watchers delivers State snapshots to every registered watcher.
type watchers struct {
	mu     sync.RWMutex
	subs   map[string]*watcher
	closed bool
	logger *slog.Logger
}

func newWatchers(logger *slog.Logger) *watchers {
	return &watchers{
		subs:   make(map[string]*watcher),
		logger: logger,
	}
}

// add registers a watcher. The watcher is removed automatically when ctx is
// cancelled. After close, add returns an already-closed channel.
func (w *watchers) add(ctx context.Context) (<-chan State, string) {
	id := uuid.New().String()
	sub := &watcher{
		ch:   make(chan State, watcherBufferSize),
		done: make(chan struct{}),
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		close(sub.ch)
		return sub.ch, id
	}
	w.subs[id] = sub
	w.mu.Unlock()

	w.logger.Debug("watcher added", "watch_id", id)

	go func() {
		select {
		case <-ctx.Done():
			w.remove(id)
		case <-sub.done:
		}
	}()

	return sub.ch, id
}

// publish sends snap to every watcher. Watchers whose buffers are full miss
// this snapshot.
func (w *watchers) publish(snap State) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for id, sub := range w.subs {
		select {
		case sub.ch <- snap:
		default:
			w.logger.Debug("dropped snapshot for slow watcher", "watch_id", id)
		}
	}
}

// remove unregisters a watcher and closes its channel.
func (w *watchers) remove(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	sub, ok := w.subs[id]
	if !ok {
		return
	}
	delete(w.subs, id)
	close(sub.ch)
	close(sub.done)

	w.logger.Debug("watcher removed", "watch_id", id)
}

// count returns the number of registered watchers.
func (w *watchers) count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.subs)
}

// closeAll closes every watcher channel and rejects new watchers.
func (w *watchers) closeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for id, sub := range w.subs {
		close(sub.ch)
		close(sub.done)
		delete(w.subs, id)
	}
	w.closed = true
}
