package session

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atrium/internal/db"
)

func newTestManager(t *testing.T, ttl time.Duration) (*Manager, *db.DB) {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = database.Close()
	})

	manager := NewManager(db.NewSessionRepository(database), ttl, CookieOptions{
		Name:     "atrium_session",
		SameSite: http.SameSiteLaxMode,
	})
	return manager, database
}

func createTestUser(t *testing.T, database *db.DB, id, email string) {
	t.Helper()

	_, err := database.Exec(
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		id, email, "x", time.Now().UTC(),
	)
	require.NoError(t, err)
}

func TestIssueAndResolve(t *testing.T) {
	manager, database := newTestManager(t, time.Hour)
	createTestUser(t, database, "usr_1", "alice@example.com")

	token, err := manager.Issue(context.Background(), "usr_1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := manager.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "usr_1", userID)
}

func TestIssueGeneratesUniqueTokens(t *testing.T) {
	manager, database := newTestManager(t, time.Hour)
	createTestUser(t, database, "usr_1", "alice@example.com")

	seen := make(map[string]bool)
	for range 20 {
		token, err := manager.Issue(context.Background(), "usr_1")
		require.NoError(t, err)
		require.False(t, seen[token], "token issued twice")
		seen[token] = true
	}
}

func TestResolveUnknownToken(t *testing.T) {
	manager, _ := newTestManager(t, time.Hour)

	_, err := manager.Resolve(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestResolveExpiredTokenMatchesUnknownToken(t *testing.T) {
	manager, database := newTestManager(t, -time.Minute)
	createTestUser(t, database, "usr_1", "alice@example.com")

	token, err := manager.Issue(context.Background(), "usr_1")
	require.NoError(t, err)

	_, expiredErr := manager.Resolve(context.Background(), token)
	_, unknownErr := manager.Resolve(context.Background(), "not-a-token")
	assert.ErrorIs(t, expiredErr, ErrInvalidSession)
	assert.Equal(t, unknownErr, expiredErr)
}

func TestRevoke(t *testing.T) {
	manager, database := newTestManager(t, time.Hour)
	createTestUser(t, database, "usr_1", "alice@example.com")

	token, err := manager.Issue(context.Background(), "usr_1")
	require.NoError(t, err)

	require.NoError(t, manager.Revoke(context.Background(), token))

	_, err = manager.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRevokeAllForUser(t *testing.T) {
	manager, database := newTestManager(t, time.Hour)
	createTestUser(t, database, "usr_1", "alice@example.com")
	createTestUser(t, database, "usr_2", "bob@example.com")

	tokenA, err := manager.Issue(context.Background(), "usr_1")
	require.NoError(t, err)
	tokenB, err := manager.Issue(context.Background(), "usr_1")
	require.NoError(t, err)
	tokenOther, err := manager.Issue(context.Background(), "usr_2")
	require.NoError(t, err)

	require.NoError(t, manager.RevokeAllForUser(context.Background(), "usr_1"))

	_, err = manager.Resolve(context.Background(), tokenA)
	assert.ErrorIs(t, err, ErrInvalidSession)
	_, err = manager.Resolve(context.Background(), tokenB)
	assert.ErrorIs(t, err, ErrInvalidSession)

	userID, err := manager.Resolve(context.Background(), tokenOther)
	require.NoError(t, err)
	assert.Equal(t, "usr_2", userID)
}

func TestTouchExtendsExpiry(t *testing.T) {
	manager, database := newTestManager(t, time.Hour)
	createTestUser(t, database, "usr_1", "alice@example.com")

	token, err := manager.Issue(context.Background(), "usr_1")
	require.NoError(t, err)

	require.NoError(t, manager.Touch(context.Background(), token))

	var expiresAt time.Time
	err = database.QueryRow(`SELECT expires_at FROM sessions`).Scan(&expiresAt)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now().Add(59*time.Minute)))
}

func TestSessionCookieAttributes(t *testing.T) {
	manager, _ := newTestManager(t, time.Hour)

	cookie := manager.SessionCookie("tok")
	assert.Equal(t, "atrium_session", cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, int(time.Hour.Seconds()), cookie.MaxAge)

	cleared := manager.ExpiredCookie()
	assert.Equal(t, -1, cleared.MaxAge)
	assert.Empty(t, cleared.Value)
}
