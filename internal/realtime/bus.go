// ABOUTME: In-memory push channel for tests and embedding without a network
// ABOUTME: Delivers inbound events synchronously and records everything emitted

package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/2389/chatsync/internal/chat"
)

// Bus is a Channel backed by memory. Deliver plays the role of the remote.
type Bus struct {
	registry

	mu        sync.Mutex
	connected bool
	emitted   []chat.Outbound
}

// NewBus creates a connected bus. Pass nil logger for default.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{connected: true}
	b.init(logger.With("component", "bus"))
	return b
}

// Deliver dispatches evt to its listeners on the caller's goroutine.
func (b *Bus) Deliver(evt chat.Event) {
	b.dispatch(evt)
}

// DeliverRaw decodes a raw payload the way a network transport would and
// dispatches it. Malformed payloads are returned as errors, not delivered.
func (b *Bus) DeliverRaw(name chat.EventName, data []byte) error {
	evt, err := chat.DecodeEvent(name, data)
	if err != nil {
		return err
	}
	b.dispatch(evt)
	return nil
}

// Emit implements Channel.
func (b *Bus) Emit(_ context.Context, evt chat.Outbound) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return ErrNotConnected
	}
	b.emitted = append(b.emitted, evt)
	return nil
}

// Connected implements Channel.
func (b *Bus) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// SetConnected toggles the simulated connection state.
func (b *Bus) SetConnected(connected bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = connected
}

// Emitted returns a copy of everything emitted so far.
func (b *Bus) Emitted() []chat.Outbound {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]chat.Outbound(nil), b.emitted...)
}
