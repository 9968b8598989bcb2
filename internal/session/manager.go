// Package session issues and validates the opaque tokens carried in the
// session cookie. Tokens are stored server-side hashed, so a database leak
// does not expose usable credentials.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"atrium/internal/constants"
	"atrium/internal/db"
)

// ErrInvalidSession covers unknown, expired, and revoked tokens alike.
// Callers must not be able to tell those cases apart.
var ErrInvalidSession = errors.New("invalid session")

type CookieOptions struct {
	Name     string
	Secure   bool
	SameSite http.SameSite
}

type Manager struct {
	sessions *db.SessionRepository
	ttl      time.Duration
	cookie   CookieOptions
}

func NewManager(sessions *db.SessionRepository, ttl time.Duration, cookie CookieOptions) *Manager {
	return &Manager{
		sessions: sessions,
		ttl:      ttl,
		cookie:   cookie,
	}
}

func (m *Manager) CookieName() string {
	return m.cookie.Name
}

// Issue creates a fresh session for userID and returns the raw token.
func (m *Manager) Issue(ctx context.Context, userID string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}

	now := time.Now().UTC()
	if err := m.sessions.Create(ctx, hashToken(token), userID, now, now.Add(m.ttl)); err != nil {
		return "", err
	}

	return token, nil
}

// Resolve maps a raw token to the user it authenticates.
func (m *Manager) Resolve(ctx context.Context, token string) (string, error) {
	s, err := m.sessions.FindValid(ctx, hashToken(token), time.Now())
	if errors.Is(err, db.ErrNotFound) {
		return "", ErrInvalidSession
	}
	if err != nil {
		return "", err
	}
	return s.UserID, nil
}

// Touch extends the sliding expiry window. A lost renewal under concurrent
// requests is tolerated; the session stays valid either way.
func (m *Manager) Touch(ctx context.Context, token string) error {
	err := m.sessions.Touch(ctx, hashToken(token), time.Now().Add(m.ttl))
	if errors.Is(err, db.ErrNotFound) {
		return ErrInvalidSession
	}
	return err
}

func (m *Manager) Revoke(ctx context.Context, token string) error {
	return m.sessions.Delete(ctx, hashToken(token))
}

func (m *Manager) RevokeAllForUser(ctx context.Context, userID string) error {
	return m.sessions.DeleteAllForUser(ctx, userID)
}

// SessionCookie builds the Set-Cookie value carrying a freshly issued token.
func (m *Manager) SessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookie.Name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: m.cookie.SameSite,
		MaxAge:   int(m.ttl.Seconds()),
	}
}

// ExpiredCookie instructs the client to drop the session cookie.
func (m *Manager) ExpiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cookie.Name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: m.cookie.SameSite,
		MaxAge:   -1,
	}
}

func generateToken() (string, error) {
	b := make([]byte, constants.SessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
