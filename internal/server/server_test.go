package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stockroom/internal/auth"
	"stockroom/internal/notify"
	"stockroom/internal/store"
	"stockroom/internal/types"
)

// recordingMailer captures outbound alert emails.
type recordingMailer struct {
	sent []notify.Message
}

func (m *recordingMailer) Send(_ context.Context, msg notify.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

type fixture struct {
	srv    *httptest.Server
	store  *store.Store
	mailer *recordingMailer

	adminToken  string
	memberToken string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	am := auth.NewManager(st, zap.NewNop(), auth.Options{
		SessionTTL:  time.Hour,
		EmailDomain: "test.local",
	})
	mailer := &recordingMailer{}
	notifier := notify.New(st, mailer, zap.NewNop(), "alerts@test.local")

	s := New(st, am, notifier, zap.NewNop(), "hook-secret")
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	f := &fixture{srv: srv, store: st, mailer: mailer}

	ctx := context.Background()
	_, err = am.Register(ctx, "boss", "adminpw", types.RoleAdmin)
	require.NoError(t, err)
	_, adminSess, err := am.Login(ctx, "boss", "adminpw")
	require.NoError(t, err)
	f.adminToken = adminSess.Token

	_, err = am.Register(ctx, "alice", "memberpw", "")
	require.NoError(t, err)
	_, memberSess, err := am.Login(ctx, "alice", "memberpw")
	require.NoError(t, err)
	f.memberToken = memberSess.Token

	return f
}

// do issues a request with an optional session token and decodes the
// JSON response into out (when non-nil).
func (f *fixture) do(t *testing.T, method, path, token string, body, out any) *http.Response {
	t.Helper()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestLoginAndSession(t *testing.T) {
	f := newFixture(t)

	var login LoginResponse
	resp := f.do(t, http.MethodPost, "/api/auth/login", "",
		LoginRequest{Username: "alice", Password: "memberpw"}, &login)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, "alice", login.User.Username)
	assert.Equal(t, types.RoleMember, login.User.Role)

	var sess SessionResponse
	resp = f.do(t, http.MethodGet, "/api/auth/session", login.Token, nil, &sess)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", sess.User.Username)
}

func TestLoginBadCredentials(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/auth/login", "",
		LoginRequest{Username: "alice", Password: "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutInvalidatesToken(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/auth/logout", f.memberToken, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/auth/session", f.memberToken, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUnauthenticatedRejected(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/equipment", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/equipment", "bogus-token", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEquipmentPermissions(t *testing.T) {
	f := newFixture(t)

	// Members cannot create equipment.
	resp := f.do(t, http.MethodPost, "/api/equipment", f.memberToken,
		EquipmentRequest{Name: "Projector"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Admins can.
	var created types.EquipmentItem
	resp = f.do(t, http.MethodPost, "/api/equipment", f.adminToken,
		EquipmentRequest{Name: "Projector", Location: "Main Hall"}, &created)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, created.ID)

	// Members can read.
	var items []*types.EquipmentItem
	resp = f.do(t, http.MethodGet, "/api/equipment", f.memberToken, nil, &items)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, items, 1)

	// Members can check off.
	var checked types.EquipmentItem
	resp = f.do(t, http.MethodPost, "/api/equipment/"+created.ID+"/check", f.memberToken,
		CheckRequest{Status: types.StatusChecked}, &checked)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, types.StatusChecked, checked.Status)
	assert.Equal(t, "alice", checked.CheckedBy)

	// Members cannot delete.
	resp = f.do(t, http.MethodDelete, "/api/equipment/"+created.ID, f.memberToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestEquipmentUpdateAndReset(t *testing.T) {
	f := newFixture(t)

	var created types.EquipmentItem
	f.do(t, http.MethodPost, "/api/equipment", f.adminToken,
		EquipmentRequest{Name: "Amp", Location: "Stage"}, &created)

	var updated types.EquipmentItem
	resp := f.do(t, http.MethodPatch, "/api/equipment/"+created.ID, f.adminToken,
		map[string]string{"notes": "left channel crackles"}, &updated)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Amp", updated.Name, "absent fields keep their values")
	assert.Equal(t, "left channel crackles", updated.Notes)

	f.do(t, http.MethodPost, "/api/equipment/"+created.ID+"/check", f.memberToken, nil, nil)

	var reset ResetResponse
	resp = f.do(t, http.MethodPost, "/api/equipment/reset", f.adminToken, nil, &reset)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), reset.Reset)
}

func TestEquipmentNotFound(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/equipment/nope", f.memberToken, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdjustTriggersLowStockAlert(t *testing.T) {
	f := newFixture(t)

	var c types.Consumable
	f.do(t, http.MethodPost, "/api/consumables", f.adminToken,
		ConsumableRequest{Name: "Coffee", Count: 5, Minimum: 3, Unit: "bags"}, &c)

	// Members may adjust counts.
	var adj AdjustResponse
	resp := f.do(t, http.MethodPost, "/api/consumables/"+c.ID+"/adjust", f.memberToken,
		AdjustRequest{Delta: -2}, &adj)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, adj.Previous)
	assert.Equal(t, 3, adj.Consumable.Count)
	assert.NotNil(t, adj.Alert, "5 -> 3 crosses the minimum")

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, []string{"boss@test.local"}, f.mailer.sent[0].To)

	// Same-day second crossing is deduped.
	f.do(t, http.MethodPost, "/api/consumables/"+c.ID+"/adjust", f.memberToken,
		AdjustRequest{Delta: 4}, nil)
	f.do(t, http.MethodPost, "/api/consumables/"+c.ID+"/adjust", f.memberToken,
		AdjustRequest{Delta: -5}, nil)
	assert.Len(t, f.mailer.sent, 1)

	// The notification log recorded it.
	var recs []*types.NotificationRecord
	resp = f.do(t, http.MethodGet, "/api/notifications", f.adminToken, nil, &recs)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, recs, 1)
	assert.Equal(t, types.OutcomeSent, recs[0].Outcome)
}

func TestAdjustValidation(t *testing.T) {
	f := newFixture(t)

	var c types.Consumable
	f.do(t, http.MethodPost, "/api/consumables", f.adminToken,
		ConsumableRequest{Name: "Tea", Count: 2}, &c)

	resp := f.do(t, http.MethodPost, "/api/consumables/"+c.ID+"/adjust", f.memberToken,
		AdjustRequest{Delta: 0}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/consumables/missing/adjust", f.memberToken,
		AdjustRequest{Delta: -1}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConsumableEditRequiresAdmin(t *testing.T) {
	f := newFixture(t)

	var c types.Consumable
	f.do(t, http.MethodPost, "/api/consumables", f.adminToken,
		ConsumableRequest{Name: "Paper", Count: 9, Minimum: 1}, &c)

	resp := f.do(t, http.MethodPatch, "/api/consumables/"+c.ID, f.memberToken,
		map[string]int{"minimum": 5}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var updated types.Consumable
	resp = f.do(t, http.MethodPatch, "/api/consumables/"+c.ID, f.adminToken,
		map[string]any{"minimum": 5}, &updated)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, updated.Minimum)
	assert.Equal(t, 9, updated.Count, "edits never touch the count")
}

func TestFeedbackVisibility(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/feedback", f.memberToken,
		FeedbackRequest{Message: "more coffee"}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = f.do(t, http.MethodPost, "/api/feedback", f.adminToken,
		FeedbackRequest{Message: "fix the door"}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Members only see their own notes.
	var mine []*types.Feedback
	f.do(t, http.MethodGet, "/api/feedback", f.memberToken, nil, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, "more coffee", mine[0].Message)

	// Admins see everything.
	var all []*types.Feedback
	f.do(t, http.MethodGet, "/api/feedback", f.adminToken, nil, &all)
	assert.Len(t, all, 2)
}

func TestFeedbackValidation(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/feedback", f.memberToken,
		FeedbackRequest{Message: "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportImport(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/equipment", f.adminToken,
		EquipmentRequest{Name: "Mixer"}, nil)
	f.do(t, http.MethodPost, "/api/consumables", f.adminToken,
		ConsumableRequest{Name: "Cables", Count: 12, Minimum: 4}, nil)

	// Members cannot export.
	resp := f.do(t, http.MethodGet, "/api/export", f.memberToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var snap types.Snapshot
	resp = f.do(t, http.MethodGet, "/api/export", f.adminToken, nil, &snap)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, snap.Equipment, 1)
	assert.Len(t, snap.Consumables, 1)

	// Round-trip into a second fixture.
	g := newFixture(t)
	var imported ImportResponse
	resp = g.do(t, http.MethodPost, "/api/import", g.adminToken, snap, &imported)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, imported.Equipment)
	assert.Equal(t, 1, imported.Consumables)
}

func TestLowStockWebhook(t *testing.T) {
	f := newFixture(t)

	var c types.Consumable
	f.do(t, http.MethodPost, "/api/consumables", f.adminToken,
		ConsumableRequest{Name: "Gloves", Count: 1, Minimum: 3}, &c)

	// Wrong secret rejected.
	req, _ := http.NewRequest(http.MethodPost, f.srv.URL+"/api/hooks/low-stock",
		bytes.NewReader([]byte(fmt.Sprintf(`{"consumable_id":%q}`, c.ID))))
	req.Header.Set("X-Hook-Secret", "wrong")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Correct secret fires the alert.
	req, _ = http.NewRequest(http.MethodPost, f.srv.URL+"/api/hooks/low-stock",
		bytes.NewReader([]byte(fmt.Sprintf(`{"consumable_id":%q}`, c.ID))))
	req.Header.Set("X-Hook-Secret", "hook-secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, f.mailer.sent, 1)

	var result notify.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Triggered)
	assert.Equal(t, types.OutcomeSent, result.Outcome)
}

func TestLowStockWebhookNotLow(t *testing.T) {
	f := newFixture(t)

	var c types.Consumable
	f.do(t, http.MethodPost, "/api/consumables", f.adminToken,
		ConsumableRequest{Name: "Mugs", Count: 10, Minimum: 2}, &c)

	req, _ := http.NewRequest(http.MethodPost, f.srv.URL+"/api/hooks/low-stock",
		bytes.NewReader([]byte(fmt.Sprintf(`{"consumable_id":%q}`, c.ID))))
	req.Header.Set("X-Hook-Secret", "hook-secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, f.mailer.sent, "no email when stock is not actually low")
}

func TestHealthzAndMetrics(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Generate some traffic, then scrape.
	f.do(t, http.MethodGet, "/api/equipment", f.memberToken, nil, nil)

	resp, err = http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "stockroom_http_requests_total")
}
