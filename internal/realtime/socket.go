// ABOUTME: Websocket push channel client built on gorilla/websocket
// ABOUTME: Single reader goroutine dispatches validated events in wire order

package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/chatsync/internal/chat"
)

var (
	writeWait      = 10 * time.Second    // time allowed to write a frame
	pongWait       = 60 * time.Second    // time allowed to read the next pong
	pingInterval   = (pongWait * 9) / 10 // send pings with this period
	maxMessageSize = int64(512 * 1024)   // max inbound frame size
)

// Socket is a Channel over a websocket connection.
type Socket struct {
	registry

	conn    *websocket.Conn
	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to the push endpoint, authenticating with a bearer token.
// Call Run to start receiving events.
func Dial(ctx context.Context, url, token string, logger *slog.Logger) (*Socket, error) {
	if logger == nil {
		logger = slog.Default()
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s: status %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}

	s := &Socket{
		conn:   conn,
		closed: make(chan struct{}),
	}
	s.init(logger.With("component", "socket"))
	return s, nil
}

// Run reads frames until the connection closes or ctx is cancelled.
// Events are decoded and dispatched one at a time in the order they arrive;
// malformed frames are logged and dropped. A clean close returns nil.
func (s *Socket) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-stop:
		}
	}()
	go s.keepalive(stop)

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("push channel closed by remote")
				s.Close()
				return nil
			}
			s.Close()
			return fmt.Errorf("reading push channel: %w", err)
		}

		frame, err := chat.ParseFrame(raw)
		if err != nil {
			s.logger.Warn("dropping unparseable frame", "error", err)
			continue
		}

		evt, err := chat.DecodeEvent(frame.Event, frame.Data)
		if err != nil {
			if errors.Is(err, chat.ErrUnknownEvent) {
				s.logger.Debug("ignoring unknown event", "event", frame.Event)
			} else {
				s.logger.Warn("dropping malformed event", "event", frame.Event, "error", err)
			}
			continue
		}

		s.dispatch(evt)
	}
}

// keepalive pings the remote until stop is closed or a write fails.
func (s *Socket) keepalive(stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				s.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

// Emit implements Channel.
func (s *Socket) Emit(ctx context.Context, evt chat.Outbound) error {
	if s.isClosed() {
		return ErrNotConnected
	}

	raw, err := chat.EncodeFrame(evt.Name(), evt)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(deadline)
	if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("writing %s: %w", evt.Name(), err)
	}
	return nil
}

// Connected implements Channel.
func (s *Socket) Connected() bool {
	return !s.isClosed()
}

func (s *Socket) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Close sends a close frame and tears down the connection. Safe to call
// multiple times and concurrently with Run.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)

		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()

		err = s.conn.Close()
	})
	return err
}
