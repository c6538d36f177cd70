package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"stockroom/internal/types"
)

// CreateUser inserts a new account row. The username must be unique.
func (s *Store) CreateUser(ctx context.Context, u *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, role, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, u.ID, u.Username, u.Email, u.Role, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("user %q: %w", u.Username, ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves an account by id.
func (s *Store) GetUser(ctx context.Context, id string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, email, role, password_hash, created_at
		FROM users WHERE id = ?
	`, id))
}

// GetUserByUsername retrieves an account by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, email, role, password_hash, created_at
		FROM users WHERE username = ?
	`, username))
}

func (s *Store) scanUser(row *sql.Row) (*types.User, error) {
	var u types.User
	var createdAt sql.NullTime

	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.PasswordHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if createdAt.Valid {
		u.CreatedAt = createdAt.Time
	}
	return &u, nil
}

// ListUsers retrieves all accounts ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, email, role, password_hash, created_at
		FROM users ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*types.User
	for rows.Next() {
		var u types.User
		var createdAt sql.NullTime
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.PasswordHash, &createdAt); err != nil {
			return nil, err
		}
		if createdAt.Valid {
			u.CreatedAt = createdAt.Time
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// ListAdminEmails returns the email addresses of all admin accounts,
// the recipient list for low-stock alerts.
func (s *Store) ListAdminEmails(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT email FROM users WHERE role = ? ORDER BY email
	`, types.RoleAdmin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

// SetUserRole updates an account's role.
func (s *Store) SetUserRole(ctx context.Context, id string, role types.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
