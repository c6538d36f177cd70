package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"stockroom/internal/types"
)

// Export collects the full inventory snapshot. Accounts and sessions
// stay out of the snapshot; it is inventory data, not credentials.
// All three tables are read inside one transaction so a concurrent
// write cannot land between them and skew the snapshot.
func (s *Store) Export(ctx context.Context) (*types.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin export: %w", err)
	}
	defer tx.Rollback()

	snap := &types.Snapshot{ExportedAt: time.Now().UTC()}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, location, notes, status, checked_by, checked_at, created_at, updated_at
		FROM equipment ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to export equipment: %w", err)
	}
	for rows.Next() {
		item, err := scanEquipment(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to export equipment: %w", err)
		}
		snap.Equipment = append(snap.Equipment, *item)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to export equipment: %w", err)
	}

	rows, err = tx.QueryContext(ctx, `
		SELECT id, name, location, count, minimum, unit, created_at, updated_at
		FROM consumables ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to export consumables: %w", err)
	}
	for rows.Next() {
		c, err := scanConsumable(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to export consumables: %w", err)
		}
		snap.Consumables = append(snap.Consumables, *c)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to export consumables: %w", err)
	}

	rows, err = tx.QueryContext(ctx, `
		SELECT id, author_id, author, message, created_at
		FROM feedback ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to export feedback: %w", err)
	}
	for rows.Next() {
		var f types.Feedback
		var createdAt sql.NullTime
		if err := rows.Scan(&f.ID, &f.AuthorID, &f.Author, &f.Message, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to export feedback: %w", err)
		}
		f.CreatedAt = createdAt.Time
		snap.Feedback = append(snap.Feedback, f)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to export feedback: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to finish export: %w", err)
	}
	return snap, nil
}

// Import replaces the inventory tables with the snapshot contents in a
// single transaction. Either the whole snapshot lands or none of it.
func (s *Store) Import(ctx context.Context, snap *types.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"equipment", "consumables", "feedback"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, e := range snap.Equipment {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO equipment (id, name, location, notes, status, checked_by, checked_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.Name, e.Location, e.Notes, e.Status, e.CheckedBy, e.CheckedAt, e.CreatedAt, e.UpdatedAt); err != nil {
			return fmt.Errorf("failed to import equipment %s: %w", e.ID, err)
		}
	}
	for _, c := range snap.Consumables {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO consumables (id, name, location, count, minimum, unit, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.Name, c.Location, c.Count, c.Minimum, c.Unit, c.CreatedAt, c.UpdatedAt); err != nil {
			return fmt.Errorf("failed to import consumable %s: %w", c.ID, err)
		}
	}
	for _, f := range snap.Feedback {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO feedback (id, author_id, author, message, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, f.ID, f.AuthorID, f.Author, f.Message, f.CreatedAt); err != nil {
			return fmt.Errorf("failed to import feedback %s: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	s.logger.Info("snapshot imported",
		zap.Int("equipment", len(snap.Equipment)),
		zap.Int("consumables", len(snap.Consumables)),
		zap.Int("feedback", len(snap.Feedback)))
	return nil
}
