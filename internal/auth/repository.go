package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository implements CredentialStore on Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (User, error) {
	var user User
	var lockUntil, lastLogin sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, failed_attempts, lock_until, last_login, created_at, updated_at
		FROM users
		WHERE username = $1
	`, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.FailedAttempts,
		&lockUntil,
		&lastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user by username: %w", err)
	}

	if lockUntil.Valid {
		value := lockUntil.Time.UTC()
		user.LockUntil = &value
	}
	if lastLogin.Valid {
		value := lastLogin.Time.UTC()
		user.LastLogin = &value
	}

	return user, nil
}

func (r *Repository) Create(ctx context.Context, user User) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, failed_attempts, lock_until, last_login, created_at, updated_at)
		VALUES ($1, $2, $3, 0, NULL, NULL, $4, $4)
		ON CONFLICT (username) DO NOTHING
	`, user.ID, user.Username, user.PasswordHash, user.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert user rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserExists
	}

	return nil
}

// Update writes only the fields the login flow mutates.
func (r *Repository) Update(ctx context.Context, user User) error {
	var lockUntil, lastLogin any
	if user.LockUntil != nil {
		lockUntil = user.LockUntil.UTC()
	}
	if user.LastLogin != nil {
		lastLogin = user.LastLogin.UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET failed_attempts = $2, lock_until = $3, last_login = $4, updated_at = $5
		WHERE username = $1
	`, user.Username, user.FailedAttempts, lockUntil, lastLogin, user.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// ClearExpiredLockouts resets counters on rows whose lock has elapsed.
// The lock state is already derived at read time, so this is hygiene
// for rows no login attempt has touched since the lock expired.
func (r *Repository) ClearExpiredLockouts(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET failed_attempts = 0, lock_until = NULL, updated_at = $1
		WHERE lock_until IS NOT NULL AND lock_until < $1
	`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("clear expired lockouts: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired lockouts rows affected: %w", err)
	}

	return affected, nil
}
