// ABOUTME: Tests for the snapshot fan-out to state watchers
// ABOUTME: Covers publish, slow watchers, context cancellation, unwatch and close

package conversation

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chatsync/internal/chat"
)

func snapshotWith(ids ...string) State {
	s := State{}
	for _, id := range ids {
		s.Messages = append(s.Messages, chat.Message{ID: id, SenderID: "u-b"})
	}
	return s
}

func TestWatchers_MultipleWatchersReceiveSameSnapshot(t *testing.T) {
	w := newWatchers(slog.Default())
	defer w.closeAll()

	ctx := t.Context()
	ch1, _ := w.add(ctx)
	ch2, _ := w.add(ctx)

	w.publish(snapshotWith("m1"))

	for i, ch := range []<-chan State{ch1, ch2} {
		select {
		case got := <-ch:
			require.Len(t, got.Messages, 1, "watcher %d", i)
			assert.Equal(t, "m1", got.Messages[0].ID)
		case <-time.After(time.Second):
			t.Fatalf("watcher %d timed out", i)
		}
	}
}

func TestWatchers_SlowWatcherDoesNotBlockPublisher(t *testing.T) {
	w := newWatchers(slog.Default())
	defer w.closeAll()

	ctx := t.Context()
	_, _ = w.add(ctx) // never read
	fast, _ := w.add(ctx)

	done := make(chan struct{})
	go func() {
		for range watcherBufferSize * 2 {
			w.publish(snapshotWith("m"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow watcher")
	}

	received := 0
	for {
		select {
		case <-fast:
			received++
			continue
		case <-time.After(100 * time.Millisecond):
		}
		break
	}
	assert.Equal(t, watcherBufferSize, received)
}

func TestWatchers_ContextCancellationCleansUp(t *testing.T) {
	w := newWatchers(slog.Default())
	defer w.closeAll()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := w.add(ctx)
	assert.Equal(t, 1, w.count())

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after context cancel")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
	assert.Equal(t, 0, w.count())
}

func TestWatchers_RemoveThenPublish(t *testing.T) {
	w := newWatchers(slog.Default())
	defer w.closeAll()

	ch, id := w.add(t.Context())
	w.remove(id)
	w.remove(id)

	_, ok := <-ch
	assert.False(t, ok)

	// Publishing after removal must not panic.
	w.publish(snapshotWith("m1"))
}

func TestWatchers_CloseAllClosesEveryChannel(t *testing.T) {
	w := newWatchers(slog.Default())

	ch1, _ := w.add(t.Context())
	ch2, _ := w.add(t.Context())

	w.closeAll()

	for i, ch := range []<-chan State{ch1, ch2} {
		_, ok := <-ch
		assert.False(t, ok, "channel %d should be closed", i)
	}

	late, _ := w.add(t.Context())
	_, ok := <-late
	assert.False(t, ok, "watchers added after close are closed immediately")
}

func TestWatchers_ConcurrentPublishAndAdd(t *testing.T) {
	w := newWatchers(slog.Default())
	defer w.closeAll()

	ctx := t.Context()
	var wg sync.WaitGroup

	for _i := 0; _i < 10; _i++ {
		wg.Go(func() {
			ch, id := w.add(ctx)
			defer w.remove(id)
			for _i := 0; _i < 5; _i++ {
				select {
				case <-ch:
				case <-time.After(200 * time.Millisecond):
					return
				}
			}
		})
	}
	for _i := 0; _i < 10; _i++ {
		wg.Go(func() {
			for _i := 0; _i < 10; _i++ {
				w.publish(snapshotWith("m"))
			}
		})
	}

	wg.Wait()
}
