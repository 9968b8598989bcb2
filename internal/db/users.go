package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"atrium/internal/models"
)

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, email, passwordHash string, firstName, lastName *string) (*models.User, error) {
	id, err := GenerateID("usr")
	if err != nil {
		return nil, fmt.Errorf("generating user ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, first_name, last_name, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, email, passwordHash, firstName, lastName, now,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return &models.User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		CreatedAt:    now,
	}, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, `SELECT id, email, password_hash, first_name, last_name, avatar_path, created_at, updated_at FROM users WHERE id = ?`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `SELECT id, email, password_hash, first_name, last_name, avatar_path, created_at, updated_at FROM users WHERE email = ?`, email)
}

// EmailTaken reports whether another user already owns the given email.
func (r *UserRepository) EmailTaken(ctx context.Context, email, excludeUserID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE email = ? AND id != ?`,
		email, excludeUserID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking email availability: %w", err)
	}
	return count > 0, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id, email string, firstName, lastName *string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = ?, first_name = ?, last_name = ?, updated_at = ? WHERE id = ?`,
		email, firstName, lastName, time.Now().UTC(), id,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("updating profile: %w", err)
	}
	return oneRowAffected(result)
}

func (r *UserRepository) UpdateAvatarPath(ctx context.Context, id string, avatarPath *string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET avatar_path = ?, updated_at = ? WHERE id = ?`,
		avatarPath, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating avatar path: %w", err)
	}
	return oneRowAffected(result)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return oneRowAffected(result)
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	var u models.User
	var updatedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.AvatarPath,
		&u.CreatedAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	if updatedAt.Valid {
		u.UpdatedAt = &updatedAt.Time
	}

	return &u, nil
}
