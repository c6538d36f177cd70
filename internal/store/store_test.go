package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stockroom/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &types.User{
		Username:     "alice",
		Email:        "alice@stockroom.local",
		Role:         types.RoleMember,
		PasswordHash: "hash",
	}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.NotEmpty(t, u.ID)

	got, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "alice@stockroom.local", got.Email)
	assert.Equal(t, types.RoleMember, got.Role)

	byID, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &types.User{Username: "bob", Email: "b@x", PasswordHash: "h", Role: types.RoleMember}))
	err := s.CreateUser(ctx, &types.User{Username: "bob", Email: "b2@x", PasswordHash: "h", Role: types.RoleMember})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAdminEmails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &types.User{Username: "a", Email: "a@x", Role: types.RoleAdmin, PasswordHash: "h"}))
	require.NoError(t, s.CreateUser(ctx, &types.User{Username: "b", Email: "b@x", Role: types.RoleMember, PasswordHash: "h"}))
	require.NoError(t, s.CreateUser(ctx, &types.User{Username: "c", Email: "c@x", Role: types.RoleAdmin, PasswordHash: "h"}))

	emails, err := s.ListAdminEmails(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x", "c@x"}, emails)
}

func TestSetUserRole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &types.User{Username: "d", Email: "d@x", Role: types.RoleMember, PasswordHash: "h"}
	require.NoError(t, s.CreateUser(ctx, u))
	require.NoError(t, s.SetUserRole(ctx, u.ID, types.RoleAdmin))

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, got.Role)

	assert.ErrorIs(t, s.SetUserRole(ctx, "missing", types.RoleAdmin), ErrNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "user-1", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)

	got, err := s.GetSession(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)

	require.NoError(t, s.DeleteSession(ctx, sess.Token))
	_, err = s.GetSession(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiredSessionNotReturned(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "user-1", -time.Minute)
	require.NoError(t, err)

	_, err = s.GetSession(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrNotFound)

	purged, err := s.PurgeExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestEquipmentCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := &types.EquipmentItem{Name: "Projector", Location: "Main Hall"}
	require.NoError(t, s.CreateEquipment(ctx, item))
	assert.Equal(t, types.StatusUnchecked, item.Status)

	got, err := s.GetEquipment(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Projector", got.Name)
	assert.Nil(t, got.CheckedAt)

	got.Name = "Projector (HDMI)"
	got.Notes = "remote in drawer"
	require.NoError(t, s.UpdateEquipment(ctx, got))

	updated, err := s.GetEquipment(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Projector (HDMI)", updated.Name)
	assert.Equal(t, "remote in drawer", updated.Notes)

	require.NoError(t, s.DeleteEquipment(ctx, item.ID))
	_, err = s.GetEquipment(ctx, item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckEquipment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := &types.EquipmentItem{Name: "Ladder", Location: "Shed"}
	require.NoError(t, s.CreateEquipment(ctx, item))

	checked, err := s.CheckEquipment(ctx, item.ID, types.StatusChecked, "alice")
	require.NoError(t, err)
	assert.Equal(t, types.StatusChecked, checked.Status)
	assert.Equal(t, "alice", checked.CheckedBy)
	require.NotNil(t, checked.CheckedAt)

	missing, err := s.CheckEquipment(ctx, item.ID, types.StatusMissing, "bob")
	require.NoError(t, err)
	assert.Equal(t, types.StatusMissing, missing.Status)

	_, err = s.CheckEquipment(ctx, "nope", types.StatusChecked, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListEquipmentFilterAndSort(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := []*types.EquipmentItem{
		{Name: "Amp", Location: "Stage"},
		{Name: "Mixer", Location: "Stage"},
		{Name: "Kettle", Location: "Kitchen"},
	}
	for _, it := range seed {
		require.NoError(t, s.CreateEquipment(ctx, it))
	}
	_, err := s.CheckEquipment(ctx, seed[1].ID, types.StatusChecked, "alice")
	require.NoError(t, err)

	stage, err := s.ListEquipment(ctx, types.EquipmentFilter{Location: "Stage"})
	require.NoError(t, err)
	require.Len(t, stage, 2)
	assert.Equal(t, "Amp", stage[0].Name)

	checked, err := s.ListEquipment(ctx, types.EquipmentFilter{Status: types.StatusChecked})
	require.NoError(t, err)
	require.Len(t, checked, 1)
	assert.Equal(t, "Mixer", checked[0].Name)

	named, err := s.ListEquipment(ctx, types.EquipmentFilter{Query: "ett"})
	require.NoError(t, err)
	require.Len(t, named, 1)
	assert.Equal(t, "Kettle", named[0].Name)

	// Unknown sort keys fall back to name order.
	all, err := s.ListEquipment(ctx, types.EquipmentFilter{SortBy: "bogus"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Amp", all[0].Name)
}

func TestResetStocktake(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"A", "B"} {
		item := &types.EquipmentItem{Name: name}
		require.NoError(t, s.CreateEquipment(ctx, item))
		_, err := s.CheckEquipment(ctx, item.ID, types.StatusChecked, "alice")
		require.NoError(t, err)
	}

	n, err := s.ResetStocktake(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	all, err := s.ListEquipment(ctx, types.EquipmentFilter{})
	require.NoError(t, err)
	for _, it := range all {
		assert.Equal(t, types.StatusUnchecked, it.Status)
		assert.Empty(t, it.CheckedBy)
		assert.Nil(t, it.CheckedAt)
	}
}

func TestConsumableAdjust(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &types.Consumable{Name: "Coffee", Count: 10, Minimum: 3}
	require.NoError(t, s.CreateConsumable(ctx, c))

	adj, err := s.AdjustConsumable(ctx, c.ID, -4)
	require.NoError(t, err)
	assert.Equal(t, 10, adj.Previous)
	assert.Equal(t, 6, adj.Current)
	assert.False(t, adj.Crossed())

	adj, err = s.AdjustConsumable(ctx, c.ID, -3)
	require.NoError(t, err)
	assert.Equal(t, 3, adj.Current)
	assert.True(t, adj.Crossed(), "6 -> 3 crosses the minimum of 3")

	// Already at the minimum: no re-trigger.
	adj, err = s.AdjustConsumable(ctx, c.ID, -1)
	require.NoError(t, err)
	assert.False(t, adj.Crossed())

	// Restock does not trigger.
	adj, err = s.AdjustConsumable(ctx, c.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, 22, adj.Current)
	assert.False(t, adj.Crossed())
}

func TestConsumableAdjustClampsAtZero(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &types.Consumable{Name: "Tea", Count: 2, Minimum: 0}
	require.NoError(t, s.CreateConsumable(ctx, c))

	adj, err := s.AdjustConsumable(ctx, c.ID, -10)
	require.NoError(t, err)
	assert.Equal(t, 0, adj.Current)
	assert.True(t, adj.Crossed(), "2 -> 0 crosses a minimum of 0")

	got, err := s.GetConsumable(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Count)
}

func TestListConsumablesLowOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateConsumable(ctx, &types.Consumable{Name: "Full", Count: 10, Minimum: 2}))
	require.NoError(t, s.CreateConsumable(ctx, &types.Consumable{Name: "Low", Count: 1, Minimum: 2}))

	low, err := s.ListConsumables(ctx, types.ConsumableFilter{LowOnly: true})
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "Low", low[0].Name)
}

func TestUpdateConsumableDoesNotTouchCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &types.Consumable{Name: "Paper", Count: 7, Minimum: 1}
	require.NoError(t, s.CreateConsumable(ctx, c))

	c.Name = "Printer paper"
	c.Minimum = 2
	c.Count = 999 // ignored by UpdateConsumable
	require.NoError(t, s.UpdateConsumable(ctx, c))

	got, err := s.GetConsumable(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Printer paper", got.Name)
	assert.Equal(t, 2, got.Minimum)
	assert.Equal(t, 7, got.Count)
}

func TestFeedback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateFeedback(ctx, &types.Feedback{AuthorID: "u1", Author: "alice", Message: "more coffee"}))
	require.NoError(t, s.CreateFeedback(ctx, &types.Feedback{AuthorID: "u2", Author: "bob", Message: "projector broken"}))

	all, err := s.ListFeedback(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := s.ListFeedbackByAuthor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "more coffee", mine[0].Message)
}

func TestNotificationDailyDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.BeginNotification(ctx, "c1", "2026-08-29", []string{"a@x", "b@x"})
	require.NoError(t, err)
	assert.Equal(t, types.OutcomePending, rec.Outcome)
	assert.Equal(t, "a@x,b@x", rec.Recipients)

	// Same item, same day: slot already claimed.
	_, err = s.BeginNotification(ctx, "c1", "2026-08-29", nil)
	assert.ErrorIs(t, err, ErrDuplicate)

	// Different day or item is fine.
	_, err = s.BeginNotification(ctx, "c1", "2026-08-30", nil)
	assert.NoError(t, err)
	_, err = s.BeginNotification(ctx, "c2", "2026-08-29", nil)
	assert.NoError(t, err)

	sent, err := s.SentToday(ctx, "c1", "2026-08-29")
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = s.SentToday(ctx, "c3", "2026-08-29")
	require.NoError(t, err)
	assert.False(t, sent)

	require.NoError(t, s.SetNotificationOutcome(ctx, rec.ID, types.OutcomeSent))
	recs, err := s.ListNotifications(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	for _, r := range recs {
		if r.ID == rec.ID {
			assert.Equal(t, types.OutcomeSent, r.Outcome)
		}
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateEquipment(ctx, &types.EquipmentItem{Name: "Amp", Location: "Stage"}))
	require.NoError(t, s.CreateConsumable(ctx, &types.Consumable{Name: "Coffee", Count: 5, Minimum: 2}))
	require.NoError(t, s.CreateFeedback(ctx, &types.Feedback{AuthorID: "u1", Author: "alice", Message: "hi"}))

	snap, err := s.Export(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Equipment, 1)
	assert.Len(t, snap.Consumables, 1)
	assert.Len(t, snap.Feedback, 1)

	dst := newTestStore(t)
	require.NoError(t, dst.Import(ctx, snap))

	equipment, err := dst.ListEquipment(ctx, types.EquipmentFilter{})
	require.NoError(t, err)
	require.Len(t, equipment, 1)
	assert.Equal(t, "Amp", equipment[0].Name)

	consumables, err := dst.ListConsumables(ctx, types.ConsumableFilter{})
	require.NoError(t, err)
	require.Len(t, consumables, 1)
	assert.Equal(t, 5, consumables[0].Count)
}

func TestImportReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateEquipment(ctx, &types.EquipmentItem{Name: "Old"}))

	snap := &types.Snapshot{
		ExportedAt: time.Now(),
		Equipment:  []types.EquipmentItem{{ID: "e1", Name: "New", Status: types.StatusUnchecked}},
	}
	require.NoError(t, s.Import(ctx, snap))

	all, err := s.ListEquipment(ctx, types.EquipmentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "New", all[0].Name)
}

func TestExportConsistentUnderConcurrentWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &types.Consumable{Name: "Coffee", Count: 1000, Minimum: 0}
	require.NoError(t, s.CreateConsumable(ctx, c))

	// Hammer the count while exporting. Every snapshot must be a single
	// point in time: no errors, and the one consumable row present with
	// a count some adjustment actually produced.
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := s.AdjustConsumable(ctx, c.ID, -1); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	for i := 0; i < 25; i++ {
		snap, err := s.Export(ctx)
		require.NoError(t, err)
		require.Len(t, snap.Consumables, 1)
		assert.LessOrEqual(t, snap.Consumables[0].Count, 1000)
		assert.GreaterOrEqual(t, snap.Consumables[0].Count, 0)
	}
	close(stop)
	wg.Wait()
}
