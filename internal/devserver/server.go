// ABOUTME: In-memory chat server implementing the message API and push channel
// ABOUTME: Used by integration tests and the chatsync-dev command; nothing is persisted

package devserver

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/2389/chatsync/internal/chat"
	"github.com/2389/chatsync/internal/session"
)

// identityKey is the gin context key holding the caller's user ID.
const identityKey = "chatsync.user_id"

// Server is a development stand-in for the remote message store.
type Server struct {
	mu       sync.RWMutex
	users    map[string]chat.User
	order    []string
	messages []*chat.Message

	secret []byte
	hub    *hub
	router *gin.Engine
	logger *slog.Logger
	now    func() time.Time
}

// New creates a server with no users that accepts bearer tokens signed with
// secret. Pass nil logger for default.
func New(secret []byte, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "devserver")

	s := &Server{
		users:  make(map[string]chat.User),
		secret: secret,
		hub:    newHub(logger),
		logger: logger,
		now:    time.Now,
	}
	s.router = s.routes()
	return s
}

// AddUser registers a user who may authenticate and receive messages.
func (s *Server) AddUser(u chat.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		s.order = append(s.order, u.ID)
	}
	s.users[u.ID] = u
}

// Handler returns the HTTP handler serving the API and the /ws endpoint.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Messages returns a copy of every stored message in creation order.
func (s *Server) Messages() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chat.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// Connections returns how many push connections userID has open.
func (s *Server) Connections(userID string) int {
	return s.hub.count(userID)
}

// Close disconnects every push client.
func (s *Server) Close() {
	s.hub.closeAll()
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	authed := r.Group("/", s.authenticate())
	authed.GET("/messages/users", s.handleListUsers)
	authed.GET("/messages/:id", s.handleHistory)
	authed.POST("/messages/send/:id", s.handleSend)
	authed.PATCH("/messages/read/:id", s.handleMarkRead)
	authed.GET("/ws", s.handleSocket)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// authenticate verifies the bearer token and resolves it to a known user.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := session.VerifyAuthorization(s.secret, c.GetHeader("Authorization"))
		if err != nil {
			s.logger.Debug("rejected request", "path", c.Request.URL.Path, "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - invalid token"})
			return
		}
		if _, ok := s.user(sess.UserID); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - user not found"})
			return
		}
		c.Set(identityKey, sess.UserID)
		c.Next()
	}
}

func (s *Server) user(id string) (chat.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *Server) handleListUsers(c *gin.Context) {
	self := c.GetString(identityKey)

	s.mu.RLock()
	users := make([]chat.User, 0, len(s.order))
	for _, id := range s.order {
		if id != self {
			users = append(users, s.users[id])
		}
	}
	s.mu.RUnlock()

	c.JSON(http.StatusOK, users)
}

func (s *Server) handleHistory(c *gin.Context) {
	self := c.GetString(identityKey)
	other := c.Param("id")

	s.mu.RLock()
	history := make([]chat.Message, 0)
	for _, m := range s.messages {
		if between(m, self, other) {
			history = append(history, m.Clone())
		}
	}
	s.mu.RUnlock()

	c.JSON(http.StatusOK, history)
}

func (s *Server) handleSend(c *gin.Context) {
	self := c.GetString(identityKey)
	receiverID := c.Param("id")

	var draft chat.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	if draft.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Message content is required"})
		return
	}
	if _, ok := s.user(receiverID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "Receiver not found"})
		return
	}

	msg := &chat.Message{
		ID:          uuid.New().String(),
		SenderID:    self,
		ReceiverID:  receiverID,
		Content:     draft.Content,
		Attachments: slices.Clone(draft.Attachments),
		CreatedAt:   s.now().UTC(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.logger.Info("message stored",
		"message_id", msg.ID,
		"sender_id", self,
		"receiver_id", receiverID)

	s.hub.push(receiverID, chat.NewMessage{Message: msg.Clone()})

	c.JSON(http.StatusCreated, msg.Clone())
}

var (
	errMessageNotFound = errors.New("message not found")
	errNotRecipient    = errors.New("only the recipient can mark a message read")
)

func (s *Server) handleMarkRead(c *gin.Context) {
	self := c.GetString(identityKey)

	receipt, senderID, err := s.markRead(c.Param("id"), self)
	switch {
	case errors.Is(err, errMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Message not found"})
		return
	case errors.Is(err, errNotRecipient):
		c.JSON(http.StatusForbidden, gin.H{"message": "Not allowed to mark this message read"})
		return
	}

	s.hub.push(senderID, receipt)
	if senderID != self {
		s.hub.push(self, receipt)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message marked as read"})
}

// markRead flags messageID read by readerID and returns the receipt to
// broadcast to the message sender too. Marking twice keeps the first
// read time.
func (s *Server) markRead(messageID, readerID string) (chat.MessageRead, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.ID != messageID {
			continue
		}
		if m.ReceiverID != readerID {
			return chat.MessageRead{}, "", errNotRecipient
		}
		if !m.IsRead {
			m.MarkRead(s.now().UTC())
		}
		return chat.MessageRead{MessageID: m.ID, ReadAt: *m.ReadAt}, m.SenderID, nil
	}
	return chat.MessageRead{}, "", errMessageNotFound
}

func between(m *chat.Message, a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}
