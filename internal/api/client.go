// ABOUTME: Request/response client for the chat message API
// ABOUTME: Lists users, fetches history, sends messages and marks messages read

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2389/chatsync/internal/chat"
)

// DefaultTimeout bounds a single request when no option overrides it.
const DefaultTimeout = 15 * time.Second

// Client talks to the chat message API over HTTP.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithTimeout sets the per-request timeout. It applies to a copy of the
// http.Client, so a shared client passed to WithHTTPClient is not changed.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a client for the API rooted at baseURL, authenticating with
// a bearer token when token is non-empty.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.client
		hc.Timeout = c.timeout
		c.client = &hc
	}
	return c
}

// ListUsers fetches the roster of known users.
func (c *Client) ListUsers(ctx context.Context) ([]chat.User, error) {
	var users []chat.User
	if err := c.do(ctx, http.MethodGet, "/messages/users", nil, &users); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// History fetches the ordered message history with counterpartID.
func (c *Client) History(ctx context.Context, counterpartID string) ([]chat.Message, error) {
	var messages []chat.Message
	path := "/messages/" + url.PathEscape(counterpartID)
	if err := c.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	return messages, nil
}

// Send submits a draft to counterpartID and returns the stored message.
func (c *Client) Send(ctx context.Context, counterpartID string, draft chat.Draft) (*chat.Message, error) {
	var msg chat.Message
	path := "/messages/send/" + url.PathEscape(counterpartID)
	if err := c.do(ctx, http.MethodPost, path, draft, &msg); err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("sending message: invalid response: %w", err)
	}
	return &msg, nil
}

// MarkRead asks the remote to mark messageID read. The response body is
// ignored; the read receipt arrives on the push channel.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	path := "/messages/read/" + url.PathEscape(messageID)
	if err := c.do(ctx, http.MethodPatch, path, nil, nil); err != nil {
		return fmt.Errorf("marking message read: %w", err)
	}
	return nil
}

// do performs one JSON request. body and out may be nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s %s: empty response body", method, path)
		}
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
