// ABOUTME: Tests for the chat message API client against httptest servers
// ABOUTME: Covers request shapes, bearer auth, decoding and remote rejection errors

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chatsync/internal/chat"
)

func TestClient_ListUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/messages/users", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"_id":"u-b","name":"Bob"},{"_id":"u-c","name":"Carol"}]`)
	}))
	defer srv.Close()

	users, err := New(srv.URL+"/", "tok").ListUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []chat.User{{ID: "u-b", Name: "Bob"}, {ID: "u-c", Name: "Carol"}}, users)
}

func TestClient_HistoryEscapesCounterpart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages/a%2Fb", r.URL.EscapedPath())
		_, _ = io.WriteString(w, `[{"_id":"m1","senderId":"a/b","receiverId":"me","content":"one"},{"_id":"m2","senderId":"me","receiverId":"a/b","content":"two"}]`)
	}))
	defer srv.Close()

	msgs, err := New(srv.URL, "").History(context.Background(), "a/b")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestClient_SendPostsDraft(t *testing.T) {
	created := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/messages/send/u-b", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var draft chat.Draft
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&draft))
		assert.Equal(t, chat.Draft{Content: "hello", Attachments: []string{"https://x/1.png"}}, draft)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(chat.Message{
			ID: "srv-1", SenderID: "u-a", ReceiverID: "u-b", Content: "hello",
			Attachments: draft.Attachments, CreatedAt: created,
		})
	}))
	defer srv.Close()

	msg, err := New(srv.URL, "tok").Send(context.Background(), "u-b", chat.Draft{Content: "hello", Attachments: []string{"https://x/1.png"}})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", msg.ID)
	assert.Equal(t, created, msg.CreatedAt)
}

func TestClient_SendRejectsResponseWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"content":"hello"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").Send(context.Background(), "u-b", chat.Draft{Content: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, chat.ErrMissingID)
}

func TestClient_MarkReadIgnoresBody(t *testing.T) {
	var called atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/messages/read/m1", r.URL.Path)
		_, _ = io.WriteString(w, `{"whatever":true}`)
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL, "").MarkRead(context.Background(), "m1"))
	assert.True(t, called.Load())
}

func TestClient_RemoteRejection(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"message field", http.StatusBadRequest, `{"message":"Receiver not found"}`, "Receiver not found"},
		{"error field", http.StatusUnauthorized, `{"error":"invalid token"}`, "invalid token"},
		{"plain text", http.StatusInternalServerError, "boom\n", "boom"},
		{"empty body", http.StatusBadGateway, "", "Bad Gateway"},
		{"unknown json", http.StatusForbidden, `{"detail":"x"}`, "Forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := New(srv.URL, "").ListUsers(context.Background())
			require.Error(t, err)

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr), "expected *api.Error, got %T", err)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMsg, apiErr.UserMessage())
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url, "", WithTimeout(time.Second)).History(context.Background(), "u-b")
	require.Error(t, err)

	var apiErr *Error
	assert.False(t, errors.As(err, &apiErr))
}

func TestClient_TimeoutLeavesSharedClientAlone(t *testing.T) {
	shared := &http.Client{}

	c := New("http://example.invalid", "", WithHTTPClient(shared), WithTimeout(time.Second))
	assert.Equal(t, time.Second, c.client.Timeout)
	assert.Zero(t, shared.Timeout)
	assert.NotSame(t, shared, c.client)

	c = New("http://example.invalid", "", WithTimeout(2*time.Second), WithHTTPClient(shared))
	assert.Equal(t, 2*time.Second, c.client.Timeout)
	assert.Zero(t, shared.Timeout)

	c = New("http://example.invalid", "", WithHTTPClient(shared))
	assert.Same(t, shared, c.client)
}
