package session

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, c jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestFromRequestMissingToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/workflows", nil)
	if _, err := FromRequest(req); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}

	req.Header.Set("Authorization", "Basic abc")
	if _, err := FromRequest(req); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials for basic auth, got %v", err)
	}
}

func TestFromRequestReadsClaims(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	token := signedToken(t, jwt.RegisteredClaims{
		Subject:   "user-42",
		ExpiresAt: jwt.NewNumericDate(exp),
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	s, err := FromRequest(req)
	if err != nil {
		t.Fatalf("FromRequest() failed: %v", err)
	}
	if s.UserID != "user-42" {
		t.Fatalf("expected user-42, got %q", s.UserID)
	}
	if s.ExpiresAt == nil || !s.ExpiresAt.Equal(exp) {
		t.Fatalf("expected expiry %v, got %v", exp, s.ExpiresAt)
	}
	if s.Expired(exp.Add(-time.Hour)) {
		t.Fatalf("expected token valid before expiry")
	}
	if !s.Expired(exp) {
		t.Fatalf("expected token expired at expiry")
	}
}

func TestNewAcceptsOpaqueToken(t *testing.T) {
	s, err := New("opaque-token")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if s.Token != "opaque-token" || s.UserID != "" || s.ExpiresAt != nil {
		t.Fatalf("unexpected session %+v", s)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(nil); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials for nil session")
	}
	if err := Validate(&Session{Token: "x"}); err != nil {
		t.Fatalf("expected valid session, got %v", err)
	}
}

func TestOwner(t *testing.T) {
	a := &Session{Token: "operator-token"}
	b := &Session{Token: "someone-elses-token"}
	if a.Owner() == "" || a.Owner() == b.Owner() {
		t.Fatalf("expected distinct owners, got %q and %q", a.Owner(), b.Owner())
	}
	if a.Owner() != (&Session{Token: "operator-token"}).Owner() {
		t.Fatalf("expected owner stable for the same token")
	}

	renewed := &Session{Token: "new-token", UserID: "u-1"}
	if renewed.Owner() != (&Session{Token: "old-token", UserID: "u-1"}).Owner() {
		t.Fatalf("expected owner to follow the user id across tokens")
	}
	if (*Session)(nil).Owner() != "" {
		t.Fatalf("expected empty owner for nil session")
	}
}

func TestFromUpgradeAcceptsQueryToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/ws?access_token=ws-token", nil)
	s, err := FromUpgrade(r)
	if err != nil || s.Token != "ws-token" {
		t.Fatalf("expected query token, got %+v, %v", s, err)
	}

	r = httptest.NewRequest("GET", "/api/ws", nil)
	if _, err := FromUpgrade(r); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}
