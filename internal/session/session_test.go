// ABOUTME: Tests for reading the local user's identity from bearer tokens
// ABOUTME: Covers claim fallbacks, expiry, header parsing and malformed tokens

package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chatsync/internal/chat"
)

var testSecret = []byte("test-secret-that-is-long-enough-32b")

func TestParse_RoundTripsNewToken(t *testing.T) {
	tok, err := NewToken(testSecret, chat.User{ID: "u-a", Name: "Alice"}, time.Hour)
	require.NoError(t, err)

	s, err := Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-a", s.UserID)
	assert.Equal(t, "Alice", s.Name)
	assert.Equal(t, tok, s.Token)
	assert.Equal(t, chat.User{ID: "u-a", Name: "Alice"}, s.User())

	require.NotNil(t, s.ExpiresAt)
	assert.False(t, s.Expired(time.Now()))
	assert.True(t, s.Expired(time.Now().Add(2*time.Hour)))
}

func TestParse_FallbackClaims(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId":   "u-b",
		"fullName": "Bob Builder",
	}).SignedString(testSecret)
	require.NoError(t, err)

	s, err := Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-b", s.UserID)
	assert.Equal(t, "Bob Builder", s.Name)
	assert.Nil(t, s.ExpiresAt)
	assert.False(t, s.Expired(time.Now()))
}

func TestParse_Errors(t *testing.T) {
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"name": "x"}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "  ", ErrMissingToken},
		{"garbage", "not.a.jwt", ErrInvalidToken},
		{"no subject", noSub, ErrMissingClaim},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFromAuthorization(t *testing.T) {
	tok, err := NewToken(testSecret, chat.User{ID: "u-c", Name: "Carol"}, time.Hour)
	require.NoError(t, err)

	s, err := FromAuthorization("Bearer " + tok)
	require.NoError(t, err)
	assert.Equal(t, "u-c", s.UserID)

	_, err = FromAuthorization("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = FromAuthorization("Basic abc")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_AcceptsSignedToken(t *testing.T) {
	tok, err := NewToken(testSecret, chat.User{ID: "u-a", Name: "Alice"}, time.Hour)
	require.NoError(t, err)

	s, err := Verify(testSecret, tok)
	require.NoError(t, err)
	assert.Equal(t, "u-a", s.UserID)
	assert.Equal(t, "Alice", s.Name)

	s, err = VerifyAuthorization(testSecret, "Bearer "+tok)
	require.NoError(t, err)
	assert.Equal(t, "u-a", s.UserID)
}

func TestVerify_Rejects(t *testing.T) {
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u-a"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	wrongKey, err := NewToken([]byte("some-other-secret-0123456789abcdef"), chat.User{ID: "u-a"}, time.Hour)
	require.NoError(t, err)

	expired, err := NewToken(testSecret, chat.User{ID: "u-a"}, -time.Minute)
	require.NoError(t, err)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"name": "x"}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingToken},
		{"alg none", unsigned, ErrInvalidToken},
		{"wrong key", wrongKey, ErrInvalidToken},
		{"expired", expired, ErrExpiredToken},
		{"no subject", noSub, ErrMissingClaim},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Verify(testSecret, tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err = VerifyAuthorization(testSecret, "Basic abc")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
