// Package types defines the row and view shapes shared by the store,
// the HTTP server and the client. Row structs map 1:1 to SQLite tables
// (db tags); the json tags are the wire shape of the HTTP API.
package types

import "time"

// Role is the access level derived for a user account.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// StocktakeStatus is the checked/missing state of an equipment item.
type StocktakeStatus string

const (
	StatusUnchecked StocktakeStatus = "unchecked"
	StatusChecked   StocktakeStatus = "checked"
	StatusMissing   StocktakeStatus = "missing"
)

// Valid reports whether the status is one of the known values.
func (s StocktakeStatus) Valid() bool {
	switch s {
	case StatusUnchecked, StatusChecked, StatusMissing:
		return true
	}
	return false
}

// User is an account row. PasswordHash never crosses the wire.
type User struct {
	ID        string    `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Email     string    `db:"email" json:"email"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	PasswordHash string `db:"password_hash" json:"-"`
}

// IsAdmin reports whether the account has the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Session is an authenticated session row.
type Session struct {
	Token     string    `db:"token" json:"token"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// EquipmentItem is a trackable asset with a stocktake status.
type EquipmentItem struct {
	ID        string          `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Location  string          `db:"location" json:"location"`
	Notes     string          `db:"notes" json:"notes,omitempty"`
	Status    StocktakeStatus `db:"status" json:"status"`
	CheckedBy string          `db:"checked_by" json:"checked_by,omitempty"`
	CheckedAt *time.Time      `db:"checked_at" json:"checked_at,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Consumable is a stock-tracked supply item with an on-hand count and
// a minimum threshold.
type Consumable struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Location  string    `db:"location" json:"location"`
	Count     int       `db:"count" json:"count"`
	Minimum   int       `db:"minimum" json:"minimum"`
	Unit      string    `db:"unit" json:"unit,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LowStock reports whether the on-hand count is at or below the
// minimum threshold.
func (c *Consumable) LowStock() bool {
	return c.Count <= c.Minimum
}

// Feedback is a free-text note submitted by a user.
type Feedback struct {
	ID        string    `db:"id" json:"id"`
	AuthorID  string    `db:"author_id" json:"author_id"`
	Author    string    `db:"author" json:"author"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NotificationRecord logs one low-stock alert attempt. Day is the
// local calendar day ("2006-01-02") used for the once-per-day gate.
type NotificationRecord struct {
	ID           string    `db:"id" json:"id"`
	ConsumableID string    `db:"consumable_id" json:"consumable_id"`
	Day          string    `db:"day" json:"day"`
	Recipients   string    `db:"recipients" json:"recipients"`
	Outcome      string    `db:"outcome" json:"outcome"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Notification outcomes.
const (
	OutcomePending = "pending"
	OutcomeSent    = "sent"
	OutcomeError   = "error"
)

// EquipmentFilter narrows and orders equipment listings.
type EquipmentFilter struct {
	Location string          `json:"location,omitempty"`
	Status   StocktakeStatus `json:"status,omitempty"`
	Query    string          `json:"query,omitempty"`
	SortBy   string          `json:"sort_by,omitempty"` // name, location, status, updated_at
}

// ConsumableFilter narrows consumable listings.
type ConsumableFilter struct {
	Location string `json:"location,omitempty"`
	Query    string `json:"query,omitempty"`
	LowOnly  bool   `json:"low_only,omitempty"`
	SortBy   string `json:"sort_by,omitempty"` // name, location, count, updated_at
}

// Snapshot is the full-database export shape.
type Snapshot struct {
	ExportedAt    time.Time            `json:"exported_at"`
	Equipment     []EquipmentItem      `json:"equipment"`
	Consumables   []Consumable         `json:"consumables"`
	Feedback      []Feedback           `json:"feedback"`
	Notifications []NotificationRecord `json:"notifications,omitempty"`
}
