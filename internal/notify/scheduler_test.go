package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildsbot/internal/model"
	"buildsbot/internal/store"
)

type capture struct {
	sent []model.Notification
	fail bool
}

func (c *capture) send(_ context.Context, n model.Notification) error {
	if c.fail {
		return errors.New("telegram: forbidden")
	}
	c.sent = append(c.sent, n)
	return nil
}

func newScheduler(t *testing.T, c *capture) (*Scheduler, *store.Store, time.Time) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	now := time.Date(2025, 7, 2, 15, 0, 0, 0, time.UTC)
	s := NewScheduler(st, c.send).WithClock(func() time.Time { return now })

	users := model.Users{
		model.UserKey(1): {Username: "alice", NotificationsEnabled: true},
		model.UserKey(2): {Username: "bob", NotificationsEnabled: false},
	}
	require.NoError(t, st.Save(store.DocUsers, users))
	return s, st, now
}

func loadNotifications(t *testing.T, st *store.Store) model.Notifications {
	t.Helper()
	n := model.Notifications{}
	require.NoError(t, st.Load(store.DocNotifications, &n))
	return n
}

func TestTickDeliversDueOnly(t *testing.T) {
	c := &capture{}
	s, st, now := newScheduler(t, c)

	_, err := s.Schedule(1, model.NotificationDownloadAvailable, now.Add(-time.Minute))
	require.NoError(t, err)
	_, err = s.Schedule(1, model.NotificationDownloadAvailable, now.Add(time.Hour))
	require.NoError(t, err)

	sent, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, c.sent, 1)
	assert.Equal(t, int64(1), c.sent[0].UserID)

	saved := loadNotifications(t, st)
	require.Len(t, saved, 2)
	assert.True(t, saved[0].Sent)
	assert.False(t, saved[1].Sent)
}

func TestTickSkipsOptedOutWithoutMarking(t *testing.T) {
	c := &capture{}
	s, st, now := newScheduler(t, c)

	_, err := s.Schedule(2, model.NotificationDownloadAvailable, now.Add(-time.Minute))
	require.NoError(t, err)

	sent, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, c.sent)

	saved := loadNotifications(t, st)
	require.Len(t, saved, 1)
	assert.False(t, saved[0].Sent)
}

func TestTickLeavesFailuresUnsetForRetry(t *testing.T) {
	c := &capture{fail: true}
	s, st, now := newScheduler(t, c)

	_, err := s.Schedule(1, model.NotificationDownloadAvailable, now.Add(-time.Minute))
	require.NoError(t, err)

	sent, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)

	saved := loadNotifications(t, st)
	require.Len(t, saved, 1)
	assert.False(t, saved[0].Sent)

	// Next tick retries and succeeds.
	c.fail = false
	sent, err = s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.True(t, loadNotifications(t, st)[0].Sent)
}

func TestScheduleAssignsUniqueIDs(t *testing.T) {
	c := &capture{}
	s, _, now := newScheduler(t, c)

	a, err := s.Schedule(1, model.NotificationDownloadAvailable, now)
	require.NoError(t, err)
	b, err := s.Schedule(1, model.NotificationDownloadAvailable, now)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}
