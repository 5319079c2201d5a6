package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// User is an account that can sign in.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         string
}

// UserByEmail looks up a user case-insensitively, returning ErrNotFound
// when no account matches.
func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, role
		FROM users
		WHERE lower(email) = lower(?)
	`, strings.TrimSpace(email)).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}
