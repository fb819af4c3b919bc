// ABOUTME: Tests for the development chat server's API and push relay
// ABOUTME: Drives the server through the real API client and websocket channel

package devserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chatsync/internal/api"
	"github.com/2389/chatsync/internal/chat"
	"github.com/2389/chatsync/internal/realtime"
	"github.com/2389/chatsync/internal/session"
)

var (
	secret = []byte("devserver-test-secret-0123456789ab")

	alice = chat.User{ID: "u-a", Name: "Alice"}
	bob   = chat.User{ID: "u-b", Name: "Bob"}
	carol = chat.User{ID: "u-c", Name: "Carol"}
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func startServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(secret, nil)
	for _, u := range []chat.User{alice, bob, carol} {
		s.AddUser(u)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		srv.Close()
	})
	return s, srv
}

func tokenFor(t *testing.T, u chat.User) string {
	t.Helper()
	tok, err := session.NewToken(secret, u, time.Hour)
	require.NoError(t, err)
	return tok
}

func clientFor(t *testing.T, srv *httptest.Server, u chat.User) *api.Client {
	return api.New(srv.URL, tokenFor(t, u))
}

// dialAs opens a push connection for u and starts its reader.
func dialAs(t *testing.T, srv *httptest.Server, u chat.User) *realtime.Socket {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	sock, err := realtime.Dial(t.Context(), wsURL, tokenFor(t, u), nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sock.Run(context.Background())
	}()
	t.Cleanup(func() {
		_ = sock.Close()
		<-done
	})
	return sock
}

func TestServer_RejectsMissingOrUnknownToken(t *testing.T) {
	_, srv := startServer(t)

	_, err := api.New(srv.URL, "").ListUsers(t.Context())
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	stranger := chat.User{ID: "u-x", Name: "Stranger"}
	_, err = clientFor(t, srv, stranger).ListUsers(t.Context())
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Unauthorized - user not found", apiErr.UserMessage())
}

func TestServer_RejectsForgedToken(t *testing.T) {
	_, srv := startServer(t)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": alice.ID}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	wrongKey, err := session.NewToken([]byte("not-the-server-secret-0123456789ab"), alice, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"alg none", unsigned},
		{"wrong key", wrongKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := api.New(srv.URL, tt.token).History(t.Context(), bob.ID)
			var apiErr *api.Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
			assert.Equal(t, "Unauthorized - invalid token", apiErr.UserMessage())
		})
	}
}

func TestServer_ListUsersExcludesCaller(t *testing.T) {
	_, srv := startServer(t)

	users, err := clientFor(t, srv, alice).ListUsers(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []chat.User{bob, carol}, users)
}

func TestServer_SendAndHistory(t *testing.T) {
	s, srv := startServer(t)
	a := clientFor(t, srv, alice)
	b := clientFor(t, srv, bob)

	m1, err := a.Send(t.Context(), bob.ID, chat.Draft{Content: "hi bob"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, m1.SenderID)
	assert.Equal(t, bob.ID, m1.ReceiverID)
	assert.NotEmpty(t, m1.ID)
	assert.False(t, m1.CreatedAt.IsZero())

	m2, err := b.Send(t.Context(), alice.ID, chat.Draft{Content: "hi alice"})
	require.NoError(t, err)

	_, err = a.Send(t.Context(), carol.ID, chat.Draft{Content: "hi carol"})
	require.NoError(t, err)

	history, err := b.History(t.Context(), alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, m1.ID, history[0].ID)
	assert.Equal(t, m2.ID, history[1].ID)

	assert.Len(t, s.Messages(), 3)
}

func TestServer_SendRejections(t *testing.T) {
	_, srv := startServer(t)
	a := clientFor(t, srv, alice)

	tests := []struct {
		name       string
		receiverID string
		draft      chat.Draft
		status     int
		message    string
	}{
		{"empty draft", bob.ID, chat.Draft{}, http.StatusBadRequest, "Message content is required"},
		{"unknown receiver", "u-nobody", chat.Draft{Content: "hello?"}, http.StatusNotFound, "Receiver not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Send(t.Context(), tt.receiverID, tt.draft)
			var apiErr *api.Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.message, apiErr.UserMessage())
		})
	}
}

func TestServer_MarkRead(t *testing.T) {
	s, srv := startServer(t)
	a := clientFor(t, srv, alice)
	b := clientFor(t, srv, bob)

	m, err := a.Send(t.Context(), bob.ID, chat.Draft{Content: "read me"})
	require.NoError(t, err)

	err = a.MarkRead(t.Context(), m.ID)
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr), "sender cannot mark own message read")
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)

	require.NoError(t, b.MarkRead(t.Context(), m.ID))
	first := s.Messages()[0].ReadAt
	require.NotNil(t, first)

	require.NoError(t, b.MarkRead(t.Context(), m.ID))
	assert.Equal(t, *first, *s.Messages()[0].ReadAt, "second mark keeps the first read time")

	err = b.MarkRead(t.Context(), "missing")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestServer_PushesNewMessageAndReceipts(t *testing.T) {
	s, srv := startServer(t)

	bobSock := dialAs(t, srv, bob)
	aliceSock := dialAs(t, srv, alice)
	require.Eventually(t, func() bool {
		return s.Connections(bob.ID) == 1 && s.Connections(alice.ID) == 1
	}, time.Second, 10*time.Millisecond)

	bobEvents := make(chan chat.Event, 4)
	bobSock.Listen(chat.EventNewMessage, func(evt chat.Event) { bobEvents <- evt })
	aliceEvents := make(chan chat.Event, 4)
	aliceSock.Listen(chat.EventMessageRead, func(evt chat.Event) { aliceEvents <- evt })

	sent, err := clientFor(t, srv, alice).Send(t.Context(), bob.ID, chat.Draft{Content: "ping"})
	require.NoError(t, err)

	select {
	case evt := <-bobEvents:
		nm, ok := evt.(chat.NewMessage)
		require.True(t, ok)
		assert.Equal(t, sent.ID, nm.Message.ID)
		assert.Equal(t, "ping", nm.Message.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("bob did not receive newMessage")
	}

	require.NoError(t, clientFor(t, srv, bob).MarkRead(t.Context(), sent.ID))

	select {
	case evt := <-aliceEvents:
		mr, ok := evt.(chat.MessageRead)
		require.True(t, ok)
		assert.Equal(t, sent.ID, mr.MessageID)
		assert.False(t, mr.ReadAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("alice did not receive message:read")
	}
}

func TestServer_RelaysTyping(t *testing.T) {
	s, srv := startServer(t)

	aliceSock := dialAs(t, srv, alice)
	bobSock := dialAs(t, srv, bob)
	require.Eventually(t, func() bool {
		return s.Connections(bob.ID) == 1 && s.Connections(alice.ID) == 1
	}, time.Second, 10*time.Millisecond)

	typing := make(chan chat.Event, 4)
	bobSock.Listen(chat.EventTypingStart, func(evt chat.Event) { typing <- evt })
	bobSock.Listen(chat.EventTypingStop, func(evt chat.Event) { typing <- evt })

	require.NoError(t, aliceSock.Emit(t.Context(), chat.StartTyping{ReceiverID: bob.ID, SenderName: alice.Name}))
	require.NoError(t, aliceSock.Emit(t.Context(), chat.StopTyping{ReceiverID: bob.ID}))

	var got []chat.Event
	for _i := 0; _i < 2; _i++ {
		select {
		case evt := <-typing:
			got = append(got, evt)
		case <-time.After(2 * time.Second):
			t.Fatal("typing signal not relayed")
		}
	}
	assert.Equal(t, []chat.Event{
		chat.TypingStarted{SenderID: alice.ID},
		chat.TypingStopped{SenderID: alice.ID},
	}, got)
}

func TestServer_SocketRequiresAuth(t *testing.T) {
	_, srv := startServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, err := realtime.Dial(t.Context(), wsURL, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
