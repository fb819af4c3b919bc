// ABOUTME: Websocket hub tracking push connections per user
// ABOUTME: Pushes server events and relays typing signals between users

package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/2389/chatsync/internal/chat"
)

var (
	writeWait      = 10 * time.Second
	maxMessageSize = int64(64 * 1024)

	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // development server, any origin
		},
	}
)

// client is one push connection belonging to userID.
type client struct {
	userID string
	conn   *websocket.Conn
	mu     sync.Mutex
}

func (c *client) write(raw []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

type hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	logger  *slog.Logger
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		clients: make(map[string]map[*client]struct{}),
		logger:  logger,
	}
}

func (h *hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.logger.Debug("push client connected", "user_id", c.userID)
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[c.userID]
	if !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.userID)
	}
	h.logger.Debug("push client disconnected", "user_id", c.userID)
}

func (h *hub) count(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// push sends evt to every connection of userID. Connections that fail to
// accept the write are closed; their read loop unregisters them.
func (h *hub) push(userID string, evt chat.Event) {
	raw, err := chat.EncodeEvent(evt)
	if err != nil {
		h.logger.Error("encoding event", "event", evt.Name(), "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(raw); err != nil {
			h.logger.Debug("push failed", "user_id", userID, "event", evt.Name(), "error", err)
			_ = c.conn.Close()
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.clients {
		for c := range conns {
			_ = c.conn.Close()
		}
		delete(h.clients, userID)
	}
}

// handleSocket upgrades an authenticated request to a push connection.
func (s *Server) handleSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	cl := &client{userID: c.GetString(identityKey), conn: conn}
	s.hub.register(cl)
	defer func() {
		s.hub.unregister(cl)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("push client read error", "user_id", cl.userID, "error", err)
			}
			return
		}
		s.relay(cl.userID, raw)
	}
}

// relay forwards a client's typing signal to its receiver as {senderId}.
func (s *Server) relay(senderID string, raw []byte) {
	frame, err := chat.ParseFrame(raw)
	if err != nil {
		s.logger.Warn("dropping unparseable client frame", "user_id", senderID, "error", err)
		return
	}

	var target struct {
		ReceiverID string `json:"receiverId"`
	}
	if err := json.Unmarshal(frame.Data, &target); err != nil || target.ReceiverID == "" {
		s.logger.Warn("dropping client frame without receiver", "event", frame.Event, "user_id", senderID)
		return
	}

	switch frame.Event {
	case chat.EventTypingStart:
		s.hub.push(target.ReceiverID, chat.TypingStarted{SenderID: senderID})
	case chat.EventTypingStop:
		s.hub.push(target.ReceiverID, chat.TypingStopped{SenderID: senderID})
	default:
		s.logger.Debug("ignoring client event", "event", frame.Event, "user_id", senderID)
	}
}
