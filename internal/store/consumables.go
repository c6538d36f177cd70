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

// CreateConsumable inserts a new consumable row.
func (s *Store) CreateConsumable(ctx context.Context, c *types.Consumable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Count < 0 {
		c.Count = 0
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consumables (id, name, location, count, minimum, unit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.Location, c.Count, c.Minimum, c.Unit, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create consumable: %w", err)
	}
	return nil
}

// GetConsumable retrieves a consumable row by id.
func (s *Store) GetConsumable(ctx context.Context, id string) (*types.Consumable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanConsumable(s.db.QueryRowContext(ctx, `
		SELECT id, name, location, count, minimum, unit, created_at, updated_at
		FROM consumables WHERE id = ?
	`, id))
}

func scanConsumable(row rowScanner) (*types.Consumable, error) {
	var c types.Consumable
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(&c.ID, &c.Name, &c.Location, &c.Count, &c.Minimum, &c.Unit, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if createdAt.Valid {
		c.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		c.UpdatedAt = updatedAt.Time
	}
	return &c, nil
}

var consumableSortColumns = map[string]string{
	"name":       "name",
	"location":   "location, name",
	"count":      "count, name",
	"updated_at": "updated_at DESC",
}

// ListConsumables retrieves consumable rows matching the filter.
func (s *Store) ListConsumables(ctx context.Context, filter types.ConsumableFilter) ([]*types.Consumable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, location, count, minimum, unit, created_at, updated_at
		FROM consumables`
	var conds []string
	var args []any

	if filter.Location != "" {
		conds = append(conds, "location = ?")
		args = append(args, filter.Location)
	}
	if filter.Query != "" {
		conds = append(conds, "name LIKE ?")
		args = append(args, "%"+filter.Query+"%")
	}
	if filter.LowOnly {
		conds = append(conds, "count <= minimum")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	order, ok := consumableSortColumns[filter.SortBy]
	if !ok {
		order = "name"
	}
	query += " ORDER BY " + order

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*types.Consumable
	for rows.Next() {
		c, err := scanConsumable(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// UpdateConsumable overwrites the editable fields of a consumable row.
// The on-hand count is adjusted through AdjustConsumable, not here.
func (s *Store) UpdateConsumable(ctx context.Context, c *types.Consumable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE consumables
		SET name = ?, location = ?, minimum = ?, unit = ?, updated_at = ?
		WHERE id = ?
	`, c.Name, c.Location, c.Minimum, c.Unit, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update consumable: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Adjustment is the result of an atomic count change.
type Adjustment struct {
	Consumable *types.Consumable
	Previous   int
	Current    int
}

// Crossed reports whether this adjustment moved the count from above
// the minimum to at-or-below it, the low-stock crossing.
func (a *Adjustment) Crossed() bool {
	return a.Previous > a.Consumable.Minimum && a.Current <= a.Consumable.Minimum
}

// AdjustConsumable applies a delta to the on-hand count inside a
// transaction, clamping at zero, and returns the previous and new
// counts. Crossing detection runs on the clamped value.
func (s *Store) AdjustConsumable(ctx context.Context, id string, delta int) (*Adjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin adjustment: %w", err)
	}
	defer tx.Rollback()

	c, err := scanConsumable(tx.QueryRowContext(ctx, `
		SELECT id, name, location, count, minimum, unit, created_at, updated_at
		FROM consumables WHERE id = ?
	`, id))
	if err != nil {
		return nil, err
	}

	prev := c.Count
	next := prev + delta
	if next < 0 {
		next = 0
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE consumables SET count = ?, updated_at = ? WHERE id = ?
	`, next, now, id); err != nil {
		return nil, fmt.Errorf("failed to adjust count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit adjustment: %w", err)
	}

	c.Count = next
	c.UpdatedAt = now
	return &Adjustment{Consumable: c, Previous: prev, Current: next}, nil
}

// DeleteConsumable removes a consumable row.
func (s *Store) DeleteConsumable(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM consumables WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete consumable: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
