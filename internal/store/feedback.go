package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stockroom/internal/types"
)

// CreateFeedback inserts a feedback note.
func (s *Store) CreateFeedback(ctx context.Context, f *types.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, author_id, author, message, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, f.ID, f.AuthorID, f.Author, f.Message, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

// ListFeedback retrieves all feedback, newest first. Admin view.
func (s *Store) ListFeedback(ctx context.Context) ([]*types.Feedback, error) {
	return s.listFeedback(ctx, `
		SELECT id, author_id, author, message, created_at
		FROM feedback ORDER BY created_at DESC
	`)
}

// ListFeedbackByAuthor retrieves one user's feedback, newest first.
func (s *Store) ListFeedbackByAuthor(ctx context.Context, authorID string) ([]*types.Feedback, error) {
	return s.listFeedback(ctx, `
		SELECT id, author_id, author, message, created_at
		FROM feedback WHERE author_id = ? ORDER BY created_at DESC
	`, authorID)
}

func (s *Store) listFeedback(ctx context.Context, query string, args ...any) ([]*types.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*types.Feedback
	for rows.Next() {
		var f types.Feedback
		var createdAt sql.NullTime
		if err := rows.Scan(&f.ID, &f.AuthorID, &f.Author, &f.Message, &createdAt); err != nil {
			return nil, err
		}
		if createdAt.Valid {
			f.CreatedAt = createdAt.Time
		}
		notes = append(notes, &f)
	}
	return notes, rows.Err()
}
