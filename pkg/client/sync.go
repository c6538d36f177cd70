package client

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"stockroom/internal/types"
)

// tempIDPrefix marks rows that exist only in the local cache while the
// server round trip is in flight.
const tempIDPrefix = "tmp-"

// IsTempID reports whether an ID belongs to a not-yet-confirmed row.
func IsTempID(id string) bool { return strings.HasPrefix(id, tempIDPrefix) }

func newTempID() string { return tempIDPrefix + uuid.NewString() }

// SyncedInventory is an optimistic local view of the inventory. Every
// mutation applies to the cache first so readers see it immediately,
// then goes to the server. A success reconciles the cache with the
// row the server stored; a failure rolls the cache back to exactly
// what it held before the mutation.
type SyncedInventory struct {
	api *Client

	mu          sync.RWMutex
	equipment   map[string]*types.EquipmentItem
	consumables map[string]*types.Consumable
}

// NewSyncedInventory creates an empty cache over the given client.
// Call Refresh to populate it.
func NewSyncedInventory(api *Client) *SyncedInventory {
	return &SyncedInventory{
		api:         api,
		equipment:   make(map[string]*types.EquipmentItem),
		consumables: make(map[string]*types.Consumable),
	}
}

// Refresh replaces the cache with the server's current state. Rows
// with temp IDs are dropped; their round trips have either already
// reconciled or failed.
func (s *SyncedInventory) Refresh(ctx context.Context) error {
	equipment, err := s.api.ListEquipment(ctx, types.EquipmentFilter{})
	if err != nil {
		return err
	}
	consumables, err := s.api.ListConsumables(ctx, types.ConsumableFilter{})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.equipment = make(map[string]*types.EquipmentItem, len(equipment))
	for _, item := range equipment {
		s.equipment[item.ID] = item
	}
	s.consumables = make(map[string]*types.Consumable, len(consumables))
	for _, c := range consumables {
		s.consumables[c.ID] = c
	}
	return nil
}

func cloneEquipment(item *types.EquipmentItem) *types.EquipmentItem {
	if item == nil {
		return nil
	}
	clone := *item
	return &clone
}

func cloneConsumable(c *types.Consumable) *types.Consumable {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Equipment returns the cached items matching the filter, sorted by
// the filter's sort key (name when unset). The slice and its rows are
// copies; callers may mutate them freely.
func (s *SyncedInventory) Equipment(f types.EquipmentFilter) []*types.EquipmentItem {
	s.mu.RLock()
	items := make([]*types.EquipmentItem, 0, len(s.equipment))
	for _, item := range s.equipment {
		if f.Location != "" && item.Location != f.Location {
			continue
		}
		if f.Status != "" && item.Status != f.Status {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(f.Query)) {
			continue
		}
		items = append(items, cloneEquipment(item))
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch f.SortBy {
		case "location":
			if a.Location != b.Location {
				return a.Location < b.Location
			}
		case "status":
			if a.Status != b.Status {
				return a.Status < b.Status
			}
		}
		return a.Name < b.Name
	})
	return items
}

// Consumables returns the cached consumables matching the filter,
// sorted by name. Rows are copies.
func (s *SyncedInventory) Consumables(f types.ConsumableFilter) []*types.Consumable {
	s.mu.RLock()
	items := make([]*types.Consumable, 0, len(s.consumables))
	for _, c := range s.consumables {
		if f.Location != "" && c.Location != f.Location {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.Query)) {
			continue
		}
		if f.LowOnly && !c.LowStock() {
			continue
		}
		items = append(items, cloneConsumable(c))
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}

// GetEquipment returns a copy of a cached item.
func (s *SyncedInventory) GetEquipment(id string) (*types.EquipmentItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.equipment[id]
	return cloneEquipment(item), ok
}

// GetConsumable returns a copy of a cached consumable.
func (s *SyncedInventory) GetConsumable(id string) (*types.Consumable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.consumables[id]
	return cloneConsumable(c), ok
}

// AddEquipment inserts the item under a temp ID, then creates it on
// the server. On success the temp row is replaced by the stored row;
// on failure the temp row is removed. Returns the stored row.
func (s *SyncedInventory) AddEquipment(ctx context.Context, item *types.EquipmentItem) (*types.EquipmentItem, error) {
	temp := cloneEquipment(item)
	temp.ID = newTempID()
	if temp.Status == "" {
		temp.Status = types.StatusUnchecked
	}

	s.mu.Lock()
	s.equipment[temp.ID] = temp
	s.mu.Unlock()

	created, err := s.api.CreateEquipment(ctx, item)

	s.mu.Lock()
	delete(s.equipment, temp.ID)
	if err == nil {
		s.equipment[created.ID] = created
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return cloneEquipment(created), nil
}

// UpdateEquipment applies the edit locally, then sends it. On failure
// the cached row is restored to its pre-edit state.
func (s *SyncedInventory) UpdateEquipment(ctx context.Context, item *types.EquipmentItem) (*types.EquipmentItem, error) {
	s.mu.Lock()
	prev := cloneEquipment(s.equipment[item.ID])
	s.equipment[item.ID] = cloneEquipment(item)
	s.mu.Unlock()

	updated, err := s.api.UpdateEquipment(ctx, item)

	s.mu.Lock()
	if err != nil {
		if prev == nil {
			delete(s.equipment, item.ID)
		} else {
			s.equipment[item.ID] = prev
		}
	} else {
		s.equipment[updated.ID] = updated
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return cloneEquipment(updated), nil
}

// DeleteEquipment removes the item locally, then on the server. On
// failure the cached row comes back.
func (s *SyncedInventory) DeleteEquipment(ctx context.Context, id string) error {
	s.mu.Lock()
	prev := cloneEquipment(s.equipment[id])
	delete(s.equipment, id)
	s.mu.Unlock()

	err := s.api.DeleteEquipment(ctx, id)
	if err != nil && prev != nil {
		s.mu.Lock()
		s.equipment[id] = prev
		s.mu.Unlock()
	}
	return err
}

// CheckEquipment marks the item locally, then on the server. The
// server row wins on success; the pre-check row comes back on failure.
func (s *SyncedInventory) CheckEquipment(ctx context.Context, id string, status types.StocktakeStatus) (*types.EquipmentItem, error) {
	s.mu.Lock()
	prev := cloneEquipment(s.equipment[id])
	if cur, ok := s.equipment[id]; ok {
		marked := cloneEquipment(cur)
		marked.Status = status
		s.equipment[id] = marked
	}
	s.mu.Unlock()

	item, err := s.api.CheckEquipment(ctx, id, status)

	s.mu.Lock()
	if err != nil {
		if prev != nil {
			s.equipment[id] = prev
		}
	} else {
		s.equipment[item.ID] = item
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return cloneEquipment(item), nil
}

// AddConsumable inserts under a temp ID and reconciles with the
// stored row, like AddEquipment.
func (s *SyncedInventory) AddConsumable(ctx context.Context, c *types.Consumable) (*types.Consumable, error) {
	temp := cloneConsumable(c)
	temp.ID = newTempID()

	s.mu.Lock()
	s.consumables[temp.ID] = temp
	s.mu.Unlock()

	created, err := s.api.CreateConsumable(ctx, c)

	s.mu.Lock()
	delete(s.consumables, temp.ID)
	if err == nil {
		s.consumables[created.ID] = created
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return cloneConsumable(created), nil
}

// UpdateConsumable applies the edit locally, then sends it. The
// cached count is kept as-is either way; edits never change counts.
func (s *SyncedInventory) UpdateConsumable(ctx context.Context, c *types.Consumable) (*types.Consumable, error) {
	s.mu.Lock()
	prev := cloneConsumable(s.consumables[c.ID])
	edited := cloneConsumable(c)
	if prev != nil {
		edited.Count = prev.Count
	}
	s.consumables[c.ID] = edited
	s.mu.Unlock()

	updated, err := s.api.UpdateConsumable(ctx, c)

	s.mu.Lock()
	if err != nil {
		if prev == nil {
			delete(s.consumables, c.ID)
		} else {
			s.consumables[c.ID] = prev
		}
	} else {
		s.consumables[updated.ID] = updated
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return cloneConsumable(updated), nil
}

// DeleteConsumable removes locally, then on the server.
func (s *SyncedInventory) DeleteConsumable(ctx context.Context, id string) error {
	s.mu.Lock()
	prev := cloneConsumable(s.consumables[id])
	delete(s.consumables, id)
	s.mu.Unlock()

	err := s.api.DeleteConsumable(ctx, id)
	if err != nil && prev != nil {
		s.mu.Lock()
		s.consumables[id] = prev
		s.mu.Unlock()
	}
	return err
}

// AdjustConsumable applies the delta locally (clamped at zero, the
// same rule the server enforces), then sends it. The server's counts
// win on success; the pre-adjust row comes back on failure.
func (s *SyncedInventory) AdjustConsumable(ctx context.Context, id string, delta int) (*AdjustResult, error) {
	s.mu.Lock()
	prev := cloneConsumable(s.consumables[id])
	if cur, ok := s.consumables[id]; ok {
		adjusted := cloneConsumable(cur)
		adjusted.Count += delta
		if adjusted.Count < 0 {
			adjusted.Count = 0
		}
		s.consumables[id] = adjusted
	}
	s.mu.Unlock()

	res, err := s.api.AdjustConsumable(ctx, id, delta)

	s.mu.Lock()
	if err != nil {
		if prev != nil {
			s.consumables[id] = prev
		}
	} else {
		s.consumables[res.Consumable.ID] = res.Consumable
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return res, nil
}
