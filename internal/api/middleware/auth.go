package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/door-access-manager/backend/internal/session"
)

type sessionKey struct{}

// RequireSession rejects requests without a usable bearer token and stores
// the operator's session in the request context.
func RequireSession(next http.Handler) http.Handler {
	return requireSession(session.FromRequest, next)
}

// RequireUpgradeSession is RequireSession for WebSocket upgrades, which may
// carry the token in the access_token query parameter.
func RequireUpgradeSession(next http.Handler) http.Handler {
	return requireSession(session.FromUpgrade, next)
}

func requireSession(extract func(*http.Request) (*session.Session, error), next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := extract(r)
		if err != nil {
			WriteError(w, http.StatusUnauthorized, ErrUnauthorized, "Missing bearer token")
			return
		}
		if sess.Expired(time.Now()) {
			WriteError(w, http.StatusUnauthorized, ErrUnauthorized, "Bearer token has expired")
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Session returns the session stored by RequireSession, or nil.
func Session(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey{}).(*session.Session)
	return sess
}
