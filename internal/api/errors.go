// ABOUTME: Remote rejection error carrying the server's human-readable message
// ABOUTME: Parses {"message": ...} and {"error": ...} bodies from non-2xx responses

package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 * 1024

// Error is a request the remote rejected with a 4xx or 5xx status.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote rejected request (%d): %s", e.StatusCode, e.Message)
}

// UserMessage returns the text meant for display to the user.
func (e *Error) UserMessage() string {
	return e.Message
}

// errorFromResponse builds an *Error from a non-2xx response.
func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return &Error{StatusCode: resp.StatusCode, Message: payload.Message}
		}
		if payload.Error != "" {
			return &Error{StatusCode: resp.StatusCode, Message: payload.Error}
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" || strings.HasPrefix(msg, "{") || strings.HasPrefix(msg, "<") {
		msg = http.StatusText(resp.StatusCode)
	}
	return &Error{StatusCode: resp.StatusCode, Message: msg}
}
