package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"atrium/internal/models"
)

type SessionRepository struct {
	db *DB
}

func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, tokenHash, userID string, issuedAt, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token_hash, user_id, issued_at, expires_at) VALUES (?, ?, ?, ?)`,
		tokenHash, userID, issuedAt.UTC(), expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// FindValid returns the session for tokenHash if it has not expired at now.
// An expired session is indistinguishable from a missing one.
func (r *SessionRepository) FindValid(ctx context.Context, tokenHash string, now time.Time) (*models.Session, error) {
	var s models.Session
	err := r.db.QueryRowContext(ctx,
		`SELECT token_hash, user_id, issued_at, expires_at FROM sessions WHERE token_hash = ? AND expires_at > ?`,
		tokenHash, now.UTC(),
	).Scan(&s.TokenHash, &s.UserID, &s.IssuedAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &s, nil
}

// Touch extends a live session's expiry. Last writer wins under concurrency.
func (r *SessionRepository) Touch(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = ? WHERE token_hash = ? AND expires_at > ?`,
		expiresAt.UTC(), tokenHash, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return oneRowAffected(result)
}

func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("deleting user sessions: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return result.RowsAffected()
}
