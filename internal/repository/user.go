package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/contactbook/contactbook/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)

// CreateUser inserts a new user into the database.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, avatar, confirmed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Avatar,
		user.Confirmed,
		user.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves a user by their email address.
// Email comparison is case-sensitive as stored.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, username, email, password_hash, avatar, refresh_token, confirmed, created_at
		FROM users
		WHERE email = $1
	`

	var user model.User
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Avatar,
		&user.RefreshToken,
		&user.Confirmed,
		&user.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

// UpdateRefreshToken stores the last-issued refresh token for a user.
// A nil token clears it (logout / rejected refresh).
func (r *Repository) UpdateRefreshToken(ctx context.Context, email string, refreshToken *string) error {
	query := `
		UPDATE users
		SET refresh_token = $2
		WHERE email = $1
	`

	result, err := r.pool.Exec(ctx, query, email, refreshToken)
	if err != nil {
		return fmt.Errorf("failed to update refresh token: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// ConfirmEmail marks the user's email address as verified.
func (r *Repository) ConfirmEmail(ctx context.Context, email string) error {
	query := `
		UPDATE users
		SET confirmed = TRUE
		WHERE email = $1
	`

	result, err := r.pool.Exec(ctx, query, email)
	if err != nil {
		return fmt.Errorf("failed to confirm email: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// UpdateAvatar replaces the user's avatar URL and returns the updated
// record.
func (r *Repository) UpdateAvatar(ctx context.Context, email, avatarURL string) (*model.User, error) {
	query := `
		UPDATE users
		SET avatar = $2
		WHERE email = $1
	`

	result, err := r.pool.Exec(ctx, query, email, avatarURL)
	if err != nil {
		return nil, fmt.Errorf("failed to update avatar: %w", err)
	}

	if result.RowsAffected() == 0 {
		return nil, ErrUserNotFound
	}

	return r.GetUserByEmail(ctx, email)
}
