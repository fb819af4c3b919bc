// ABOUTME: Bounded TTL window of recently seen message keys
// ABOUTME: Lets the sync layer drop echoed or redelivered messages when enabled

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// sweepInterval is how often expired keys are removed in the background.
const sweepInterval = time.Minute

type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Window remembers keys for a fixed TTL, holding at most maxSize of them.
// When full, the oldest key is evicted first.
type Window struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // keys, oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	done   chan struct{}
	closed bool
}

// NewWindow creates a window and starts its background sweeper.
// Call Close to stop the sweeper.
func NewWindow(ttl time.Duration, maxSize int) *Window {
	w := &Window{
		entries: make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go w.sweepLoop()
	return w
}

// Seen reports whether key was remembered within the TTL. A key that was
// not seen is remembered, so exactly one of several concurrent callers with
// the same key gets false.
func (w *Window) Seen(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.entries[key]; ok && w.now().Sub(e.seenAt) < w.ttl {
		return true
	}
	w.rememberLocked(key)
	return false
}

// Remember records key as seen now.
func (w *Window) Remember(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rememberLocked(key)
}

// Len returns the number of keys currently held, expired or not.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

func (w *Window) rememberLocked(key string) {
	now := w.now()

	if e, ok := w.entries[key]; ok {
		e.seenAt = now
		w.order.MoveToBack(e.element)
		return
	}

	if w.maxSize > 0 && len(w.entries) >= w.maxSize {
		if front := w.order.Front(); front != nil {
			oldest, _ := front.Value.(string)
			w.order.Remove(front)
			delete(w.entries, oldest)
		}
	}

	w.entries[key] = &entry{seenAt: now, element: w.order.PushBack(key)}
}

func (w *Window) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.done:
			return
		}
	}
}

// sweep drops expired keys.
func (w *Window) sweep() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	for key, e := range w.entries {
		if now.Sub(e.seenAt) >= w.ttl {
			w.order.Remove(e.element)
			delete(w.entries, key)
		}
	}
}

// Close stops the background sweeper. It is safe to call multiple times.
func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed {
		close(w.done)
		w.closed = true
	}
}
