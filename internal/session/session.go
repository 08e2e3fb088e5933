// Package session carries the operator's auth context explicitly into every
// call against the external device API.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingCredentials is returned when no bearer token is available. It is a
// precondition failure, never retried.
var ErrMissingCredentials = errors.New("missing credentials")

// Session is the auth context for one operator.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt *time.Time
}

// claims lists the identity claims issued by the login flow. The user id may
// arrive under any of these names depending on the identity provider.
type claims struct {
	CognitoUsername string `json:"cognito:username,omitempty"`
	UserID          string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// New builds a session from a raw token. Claims are read without signature
// verification; the device API verifies the token on every call.
func New(token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingCredentials
	}

	s := &Session{Token: token}

	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err == nil {
		switch {
		case c.Subject != "":
			s.UserID = c.Subject
		case c.CognitoUsername != "":
			s.UserID = c.CognitoUsername
		default:
			s.UserID = c.UserID
		}
		if c.ExpiresAt != nil {
			exp := c.ExpiresAt.Time
			s.ExpiresAt = &exp
		}
	}

	return s, nil
}

// FromRequest extracts the bearer token from the Authorization header.
func FromRequest(r *http.Request) (*Session, error) {
	return New(BearerToken(r.Header.Get("Authorization")))
}

// FromUpgrade extracts the token of a WebSocket upgrade. Browsers cannot set
// headers on upgrades, so the access_token query parameter is accepted too.
func FromUpgrade(r *http.Request) (*Session, error) {
	if token := BearerToken(r.Header.Get("Authorization")); token != "" {
		return New(token)
	}
	return New(r.URL.Query().Get("access_token"))
}

// BearerToken strips the "Bearer " prefix from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// Owner identifies the operator behind the session: the user id when the
// token carries one, otherwise a digest of the token itself.
func (s *Session) Owner() string {
	if s == nil {
		return ""
	}
	if s.UserID != "" {
		return "user:" + s.UserID
	}
	if s.Token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s.Token))
	return "token:" + hex.EncodeToString(sum[:])
}

// Expired reports whether the token's exp claim is in the past.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// Validate returns ErrMissingCredentials for a nil or empty session.
func Validate(s *Session) error {
	if s == nil || s.Token == "" {
		return ErrMissingCredentials
	}
	return nil
}
