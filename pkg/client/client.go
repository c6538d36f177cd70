// Package client is the Go client for the stockroom API. Client is the
// plain request/response surface; SyncedInventory layers an optimistic
// local cache on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stockroom/internal/types"
)

const defaultTimeout = 30 * time.Second

// Client talks to a stockroom server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a Client for the given server URL. The token may be
// empty; call Login to obtain one.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// SetToken replaces the session token used for subsequent requests.
func (c *Client) SetToken(token string) { c.token = token }

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}

func (c *Client) request(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var parsed struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &parsed) == nil {
			apiErr.Code = parsed.Error
			apiErr.Message = parsed.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// LoginResult is the server's answer to a login.
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expires_at"`
	User      *types.User `json:"user"`
}

// Login authenticates and stores the minted token on the client.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var res LoginResult
	err := c.request(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"username": username, "password": password}, &res)
	if err != nil {
		return nil, err
	}
	c.token = res.Token
	return &res, nil
}

// Logout invalidates the current session.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.request(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// Session returns the account behind the current token.
func (c *Client) Session(ctx context.Context) (*types.User, error) {
	var res struct {
		User *types.User `json:"user"`
	}
	if err := c.request(ctx, http.MethodGet, "/api/auth/session", nil, &res); err != nil {
		return nil, err
	}
	return res.User, nil
}

func equipmentQuery(f types.EquipmentFilter) string {
	q := url.Values{}
	if f.Location != "" {
		q.Set("location", f.Location)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.SortBy != "" {
		q.Set("sort", f.SortBy)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ListEquipment fetches equipment matching the filter.
func (c *Client) ListEquipment(ctx context.Context, f types.EquipmentFilter) ([]*types.EquipmentItem, error) {
	var items []*types.EquipmentItem
	err := c.request(ctx, http.MethodGet, "/api/equipment"+equipmentQuery(f), nil, &items)
	return items, err
}

// GetEquipment fetches a single item.
func (c *Client) GetEquipment(ctx context.Context, id string) (*types.EquipmentItem, error) {
	var item types.EquipmentItem
	err := c.request(ctx, http.MethodGet, "/api/equipment/"+id, nil, &item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateEquipment creates an item and returns the stored row.
func (c *Client) CreateEquipment(ctx context.Context, item *types.EquipmentItem) (*types.EquipmentItem, error) {
	var created types.EquipmentItem
	err := c.request(ctx, http.MethodPost, "/api/equipment", item, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateEquipment edits an item's descriptive fields.
func (c *Client) UpdateEquipment(ctx context.Context, item *types.EquipmentItem) (*types.EquipmentItem, error) {
	var updated types.EquipmentItem
	err := c.request(ctx, http.MethodPatch, "/api/equipment/"+item.ID, item, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteEquipment removes an item.
func (c *Client) DeleteEquipment(ctx context.Context, id string) error {
	return c.request(ctx, http.MethodDelete, "/api/equipment/"+id, nil, nil)
}

// CheckEquipment records a stocktake status for an item.
func (c *Client) CheckEquipment(ctx context.Context, id string, status types.StocktakeStatus) (*types.EquipmentItem, error) {
	var item types.EquipmentItem
	err := c.request(ctx, http.MethodPost, "/api/equipment/"+id+"/check",
		map[string]string{"status": string(status)}, &item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ResetStocktake clears every item's stocktake status.
func (c *Client) ResetStocktake(ctx context.Context) (int64, error) {
	var res struct {
		Reset int64 `json:"reset"`
	}
	err := c.request(ctx, http.MethodPost, "/api/equipment/reset", nil, &res)
	return res.Reset, err
}

func consumableQuery(f types.ConsumableFilter) string {
	q := url.Values{}
	if f.Location != "" {
		q.Set("location", f.Location)
	}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.LowOnly {
		q.Set("low", "true")
	}
	if f.SortBy != "" {
		q.Set("sort", f.SortBy)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ListConsumables fetches consumables matching the filter.
func (c *Client) ListConsumables(ctx context.Context, f types.ConsumableFilter) ([]*types.Consumable, error) {
	var items []*types.Consumable
	err := c.request(ctx, http.MethodGet, "/api/consumables"+consumableQuery(f), nil, &items)
	return items, err
}

// GetConsumable fetches a single consumable.
func (c *Client) GetConsumable(ctx context.Context, id string) (*types.Consumable, error) {
	var item types.Consumable
	err := c.request(ctx, http.MethodGet, "/api/consumables/"+id, nil, &item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateConsumable creates a consumable and returns the stored row.
func (c *Client) CreateConsumable(ctx context.Context, item *types.Consumable) (*types.Consumable, error) {
	var created types.Consumable
	err := c.request(ctx, http.MethodPost, "/api/consumables", item, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateConsumable edits a consumable's fields other than its count.
func (c *Client) UpdateConsumable(ctx context.Context, item *types.Consumable) (*types.Consumable, error) {
	var updated types.Consumable
	err := c.request(ctx, http.MethodPatch, "/api/consumables/"+item.ID, item, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteConsumable removes a consumable.
func (c *Client) DeleteConsumable(ctx context.Context, id string) error {
	return c.request(ctx, http.MethodDelete, "/api/consumables/"+id, nil, nil)
}

// AdjustResult is the server's answer to a count adjustment.
type AdjustResult struct {
	Consumable *types.Consumable `json:"consumable"`
	Previous   int               `json:"previous"`
	Alert      json.RawMessage   `json:"alert,omitempty"`
}

// AdjustConsumable changes a consumable's count by delta.
func (c *Client) AdjustConsumable(ctx context.Context, id string, delta int) (*AdjustResult, error) {
	var res AdjustResult
	err := c.request(ctx, http.MethodPost, "/api/consumables/"+id+"/adjust",
		map[string]int{"delta": delta}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateFeedback submits a feedback note.
func (c *Client) CreateFeedback(ctx context.Context, message string) (*types.Feedback, error) {
	var f types.Feedback
	err := c.request(ctx, http.MethodPost, "/api/feedback",
		map[string]string{"message": message}, &f)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFeedback fetches the feedback visible to the current account.
func (c *Client) ListFeedback(ctx context.Context) ([]*types.Feedback, error) {
	var notes []*types.Feedback
	err := c.request(ctx, http.MethodGet, "/api/feedback", nil, &notes)
	return notes, err
}

// Export downloads the inventory snapshot. Admin only.
func (c *Client) Export(ctx context.Context) (*types.Snapshot, error) {
	var snap types.Snapshot
	if err := c.request(ctx, http.MethodGet, "/api/export", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Import replaces the inventory with a snapshot. Admin only.
func (c *Client) Import(ctx context.Context, snap *types.Snapshot) error {
	return c.request(ctx, http.MethodPost, "/api/import", snap, nil)
}
