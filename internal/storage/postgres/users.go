package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/avstrong/slotbooking/internal/identity"
)

func (db *DB) SaveUser(ctx context.Context, u *identity.User) error {
	query := `
	INSERT INTO users (username, email, hashed_password)
	VALUES ($1, $2, $3)
	RETURNING id, created_at`

	err := db.q(ctx).QueryRow(ctx, query, u.Username, u.Email, u.PasswordHash).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return identity.ErrEmailTaken
	}

	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	var u identity.User

	query := `SELECT id, username, email, hashed_password, created_at FROM users WHERE email = $1`

	err := db.q(ctx).QueryRow(ctx, query, email).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, identity.ErrUserNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return &u, nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*identity.User, error) {
	var u identity.User

	query := `SELECT id, username, email, hashed_password, created_at FROM users WHERE id = $1`

	err := db.q(ctx).QueryRow(ctx, query, id).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, identity.ErrUserNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}

	return &u, nil
}
