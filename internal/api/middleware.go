package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"atrium/internal/session"
)

type contextKey string

const userIDKey contextKey = "userID"

type SessionMiddleware struct {
	sessions *session.Manager
}

func NewSessionMiddleware(sessions *session.Manager) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions}
}

// RequireSession resolves the session cookie to a user id and renews the
// sliding expiry window. Requests without a valid session get a 401 and an
// instruction to drop the cookie.
func (m *SessionMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(m.sessions.CookieName())
		if err != nil || cookie.Value == "" {
			unauthorized(w, "Authentication required")
			return
		}

		userID, err := m.sessions.Resolve(r.Context(), cookie.Value)
		if err != nil {
			if !errors.Is(err, session.ErrInvalidSession) {
				slog.Error("error resolving session", "error", err)
				internalError(w)
				return
			}
			http.SetCookie(w, m.sessions.ExpiredCookie())
			unauthorized(w, "Invalid or expired session")
			return
		}

		// A lost renewal only shortens the idle window, so failures are not
		// surfaced to the client. On success the cookie is re-sent so the
		// browser-side Max-Age slides along with the stored expiry.
		if err := m.sessions.Touch(r.Context(), cookie.Value); err != nil {
			if !errors.Is(err, session.ErrInvalidSession) {
				slog.Warn("error renewing session expiry", "error", err, "user_id", userID)
			}
		} else {
			http.SetCookie(w, m.sessions.SessionCookie(cookie.Value))
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetUserID(r *http.Request) string {
	if v := r.Context().Value(userIDKey); v != nil {
		if userID, ok := v.(string); ok {
			return userID
		}
	}
	return ""
}
