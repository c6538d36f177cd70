package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stockroom/internal/types"
)

// CreateSession mints a new session for the user with the given TTL.
func (s *Store) CreateSession(ctx context.Context, userID string, ttl time.Duration) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	sess := &types.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, sess.Token, sess.UserID, sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// GetSession retrieves a session by token. Expired sessions are
// reported as ErrNotFound.
func (s *Store) GetSession(ctx context.Context, token string) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sess types.Session
	var createdAt, expiresAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT token, user_id, created_at, expires_at
		FROM sessions WHERE token = ?
	`, token).Scan(&sess.Token, &sess.UserID, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if createdAt.Valid {
		sess.CreatedAt = createdAt.Time
	}
	if expiresAt.Valid {
		sess.ExpiresAt = expiresAt.Time
	}

	if sess.Expired(time.Now().UTC()) {
		return nil, ErrNotFound
	}
	return &sess, nil
}

// DeleteSession removes a session (logout). Unknown tokens are a no-op.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// PurgeExpiredSessions deletes sessions past their expiry and returns
// how many were removed.
func (s *Store) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
