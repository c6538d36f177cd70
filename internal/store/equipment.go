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

// CreateEquipment inserts a new equipment row.
func (s *Store) CreateEquipment(ctx context.Context, item *types.EquipmentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = types.StatusUnchecked
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO equipment (id, name, location, notes, status, checked_by, checked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.Name, item.Location, item.Notes, item.Status, item.CheckedBy, item.CheckedAt, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create equipment: %w", err)
	}
	return nil
}

// GetEquipment retrieves an equipment row by id.
func (s *Store) GetEquipment(ctx context.Context, id string) (*types.EquipmentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanEquipment(s.db.QueryRowContext(ctx, `
		SELECT id, name, location, notes, status, checked_by, checked_at, created_at, updated_at
		FROM equipment WHERE id = ?
	`, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEquipment(row rowScanner) (*types.EquipmentItem, error) {
	var item types.EquipmentItem
	var checkedAt, createdAt, updatedAt sql.NullTime

	err := row.Scan(&item.ID, &item.Name, &item.Location, &item.Notes, &item.Status,
		&item.CheckedBy, &checkedAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if checkedAt.Valid {
		t := checkedAt.Time
		item.CheckedAt = &t
	}
	if createdAt.Valid {
		item.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		item.UpdatedAt = updatedAt.Time
	}
	return &item, nil
}

// equipmentSortColumns whitelists ORDER BY targets.
var equipmentSortColumns = map[string]string{
	"name":       "name",
	"location":   "location, name",
	"status":     "status, name",
	"updated_at": "updated_at DESC",
}

// ListEquipment retrieves equipment rows matching the filter.
func (s *Store) ListEquipment(ctx context.Context, filter types.EquipmentFilter) ([]*types.EquipmentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, location, notes, status, checked_by, checked_at, created_at, updated_at
		FROM equipment`
	var conds []string
	var args []any

	if filter.Location != "" {
		conds = append(conds, "location = ?")
		args = append(args, filter.Location)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Query != "" {
		conds = append(conds, "name LIKE ?")
		args = append(args, "%"+filter.Query+"%")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	order, ok := equipmentSortColumns[filter.SortBy]
	if !ok {
		order = "name"
	}
	query += " ORDER BY " + order

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*types.EquipmentItem
	for rows.Next() {
		item, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateEquipment overwrites the editable fields of an equipment row.
func (s *Store) UpdateEquipment(ctx context.Context, item *types.EquipmentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE equipment
		SET name = ?, location = ?, notes = ?, status = ?, checked_by = ?, checked_at = ?, updated_at = ?
		WHERE id = ?
	`, item.Name, item.Location, item.Notes, item.Status, item.CheckedBy, item.CheckedAt, item.UpdatedAt, item.ID)
	if err != nil {
		return fmt.Errorf("failed to update equipment: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CheckEquipment records a stocktake check-off: status plus who and
// when. The returned row reflects the update.
func (s *Store) CheckEquipment(ctx context.Context, id string, status types.StocktakeStatus, checkedBy string) (*types.EquipmentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE equipment
		SET status = ?, checked_by = ?, checked_at = ?, updated_at = ?
		WHERE id = ?
	`, status, checkedBy, now, now, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check equipment: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return nil, ErrNotFound
	}

	return scanEquipment(s.db.QueryRowContext(ctx, `
		SELECT id, name, location, notes, status, checked_by, checked_at, created_at, updated_at
		FROM equipment WHERE id = ?
	`, id))
}

// ResetStocktake clears all stocktake statuses back to unchecked,
// typically at the start of a new stocktake round. Returns the number
// of rows reset.
func (s *Store) ResetStocktake(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE equipment
		SET status = ?, checked_by = '', checked_at = NULL, updated_at = ?
	`, types.StatusUnchecked, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to reset stocktake: %w", err)
	}
	return res.RowsAffected()
}

// DeleteEquipment removes an equipment row.
func (s *Store) DeleteEquipment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM equipment WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete equipment: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
