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

// BeginNotification claims the once-per-day alert slot for a
// consumable by inserting a pending row. The UNIQUE(consumable_id,
// day) constraint makes the claim atomic: the second caller on the
// same day gets ErrDuplicate and must not send.
func (s *Store) BeginNotification(ctx context.Context, consumableID, day string, recipients []string) (*types.NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &types.NotificationRecord{
		ID:           uuid.NewString(),
		ConsumableID: consumableID,
		Day:          day,
		Recipients:   strings.Join(recipients, ","),
		Outcome:      types.OutcomePending,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, consumable_id, day, recipients, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.ConsumableID, rec.Day, rec.Recipients, rec.Outcome, rec.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to record notification: %w", err)
	}
	return rec, nil
}

// SetNotificationOutcome records how the send went.
func (s *Store) SetNotificationOutcome(ctx context.Context, id, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET outcome = ? WHERE id = ?`, outcome, id)
	if err != nil {
		return fmt.Errorf("failed to set notification outcome: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SentToday reports whether an alert row already exists for the
// consumable on the given day.
func (s *Store) SentToday(ctx context.Context, consumableID, day string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM notifications WHERE consumable_id = ? AND day = ?
	`, consumableID, day).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListNotifications retrieves the alert log, newest first.
func (s *Store) ListNotifications(ctx context.Context) ([]*types.NotificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, consumable_id, day, recipients, outcome, created_at
		FROM notifications ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*types.NotificationRecord
	for rows.Next() {
		var rec types.NotificationRecord
		var createdAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.ConsumableID, &rec.Day, &rec.Recipients, &rec.Outcome, &createdAt); err != nil {
			return nil, err
		}
		if createdAt.Valid {
			rec.CreatedAt = createdAt.Time
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}
