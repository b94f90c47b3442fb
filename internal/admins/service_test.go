package admins

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildsbot/internal/model"
	"buildsbot/internal/store"
)

const (
	mainAdminID = int64(1000)
	staffChatID = int64(-200)
)

func newService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	svc := New(st, mainAdminID, staffChatID).WithClock(func() time.Time {
		return time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	})
	return svc, st
}

func seedUser(t *testing.T, st *store.Store, id int64, username string) {
	t.Helper()
	users := model.Users{}
	require.NoError(t, st.Load(store.DocUsers, &users))
	users[model.UserKey(id)] = &model.User{Username: username, NotificationsEnabled: true}
	require.NoError(t, st.Save(store.DocUsers, users))
}

func TestRoles(t *testing.T) {
	svc, _ := newService(t)

	assert.True(t, svc.IsMainAdmin(mainAdminID))
	assert.True(t, svc.IsAdmin(mainAdminID))
	assert.False(t, svc.IsAdmin(5))
}

func TestAddByUsername(t *testing.T) {
	svc, st := newService(t)
	seedUser(t, st, 42, "bob")

	id, err := svc.AddByUsername("@Bob", mainAdminID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.True(t, svc.IsAdmin(42))

	a, err := svc.Get(42)
	require.NoError(t, err)
	assert.Equal(t, mainAdminID, a.AddedBy.UserID)
	assert.False(t, a.AddedBy.Auto)

	_, err = svc.AddByUsername("bob", mainAdminID)
	assert.ErrorIs(t, err, ErrAlreadyAdmin)

	_, err = svc.AddByUsername("nobody", mainAdminID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAllowedInPolicy(t *testing.T) {
	svc, st := newService(t)
	seedUser(t, st, 42, "bob")
	_, err := svc.AddByUsername("bob", mainAdminID)
	require.NoError(t, err)

	// Main admin acts anywhere.
	assert.True(t, svc.AllowedIn(mainAdminID, 123))
	// Delegated admin only inside the staff chat.
	assert.True(t, svc.AllowedIn(42, staffChatID))
	assert.False(t, svc.AllowedIn(42, 123))
	// Regular user nowhere.
	assert.False(t, svc.AllowedIn(7, staffChatID))
}

func TestRemoveNeverTouchesMainAdmin(t *testing.T) {
	svc, _ := newService(t)

	err := svc.RemoveByID(mainAdminID)
	assert.ErrorIs(t, err, ErrMainAdmin)
	assert.True(t, svc.IsAdmin(mainAdminID))
}

func TestRemoveByUsername(t *testing.T) {
	svc, st := newService(t)
	seedUser(t, st, 42, "bob")
	_, err := svc.AddByUsername("bob", mainAdminID)
	require.NoError(t, err)

	id, err := svc.RemoveByUsername("@bob")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.False(t, svc.IsAdmin(42))

	_, err = svc.RemoveByUsername("bob")
	assert.ErrorIs(t, err, ErrNotAdmin)
}

func TestIncrementBuildsCreatesRecordOnDemand(t *testing.T) {
	svc, _ := newService(t)

	require.NoError(t, svc.IncrementBuilds(42, "bob"))
	require.NoError(t, svc.IncrementBuilds(42, "bob"))

	a, err := svc.Get(42)
	require.NoError(t, err)
	assert.Equal(t, 2, a.BuildsAdded)
	assert.True(t, a.AddedBy.Auto)

	// The main admin has no stored counter.
	require.NoError(t, svc.IncrementBuilds(mainAdminID, "boss"))
	_, err = svc.Get(mainAdminID)
	assert.ErrorIs(t, err, ErrNotAdmin)
}

func TestChatMembershipSync(t *testing.T) {
	svc, _ := newService(t)
	joined := time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)

	created, err := svc.PromoteFromChatJoin(42, "bob", joined)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, svc.IsAdmin(42))

	// Re-join is a no-op.
	created, err = svc.PromoteFromChatJoin(42, "bob", joined)
	require.NoError(t, err)
	assert.False(t, created)

	// The main admin is excluded from both transitions.
	created, err = svc.PromoteFromChatJoin(mainAdminID, "boss", joined)
	require.NoError(t, err)
	assert.False(t, created)
	removed, err := svc.DemoteFromChatLeave(mainAdminID)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = svc.DemoteFromChatLeave(42)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, svc.IsAdmin(42))
}
