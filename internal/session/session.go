// ABOUTME: Local user identity read from the bearer JWT issued by the chat server
// ABOUTME: Clients parse claims as-is; servers holding the key use Verify

package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/2389/chatsync/internal/chat"
)

// Token errors
var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// Session is the authenticated local user.
type Session struct {
	UserID    string
	Name      string
	Token     string
	ExpiresAt *time.Time
}

// User returns the session's user as a chat participant.
func (s *Session) User() chat.User {
	return chat.User{ID: s.UserID, Name: s.Name}
}

// Expired reports whether the token's exp claim is before now.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// Parse reads the identity claims from a JWT without checking its
// signature. The user ID comes from "sub" or "userId", the display name
// from "name" or "fullName".
func Parse(token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return fromClaims(token, claims)
}

// Verify parses token and checks its HMAC signature against secret and its
// expiry. Tokens signed with any other method, including "none", are
// rejected.
func Verify(secret []byte, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return fromClaims(token, claims)
}

func fromClaims(token string, claims jwt.MapClaims) (*Session, error) {
	userID := firstString(claims, "sub", "userId")
	if userID == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	s := &Session{
		UserID: userID,
		Name:   firstString(claims, "name", "fullName"),
		Token:  token,
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		s.ExpiresAt = &t
	}
	return s, nil
}

// FromAuthorization parses the session from an Authorization header value
// without verifying it.
func FromAuthorization(header string) (*Session, error) {
	token, err := bearer(header)
	if err != nil {
		return nil, err
	}
	return Parse(token)
}

// VerifyAuthorization verifies the bearer token in an Authorization header
// value against secret.
func VerifyAuthorization(secret []byte, header string) (*Session, error) {
	token, err := bearer(header)
	if err != nil {
		return nil, err
	}
	return Verify(secret, token)
}

func bearer(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", fmt.Errorf("%w: expected bearer authorization", ErrInvalidToken)
	}
	return token, nil
}

// NewToken signs an HS256 token for user. It is used by the development
// server and tests; production tokens come from the chat server.
func NewToken(secret []byte, user chat.User, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  user.ID,
		"name": user.Name,
		"iat":  now.Unix(),
		"exp":  now.Add(expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func firstString(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if v, ok := claims[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
