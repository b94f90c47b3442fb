package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildsbot/internal/admins"
	"buildsbot/internal/model"
	"buildsbot/internal/stats"
	"buildsbot/internal/store"
)

const (
	mainAdminID = int64(1000)
	staffChatID = int64(-200)
)

type fakeNotifier struct {
	scheduled []time.Time
	users     []int64
}

func (f *fakeNotifier) Schedule(userID int64, _ string, at time.Time) (string, error) {
	f.users = append(f.users, userID)
	f.scheduled = append(f.scheduled, at)
	return "n-1", nil
}

type fixture struct {
	svc      *Service
	store    *store.Store
	notifier *fakeNotifier
	now      time.Time
	setNow   func(time.Time)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		store:    st,
		notifier: &fakeNotifier{},
		now:      time.Date(2025, 7, 3, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.setNow = func(tm time.Time) { f.now = tm }

	adminSvc := admins.New(st, mainAdminID, staffChatID).WithClock(clock)
	statsSvc := stats.New(st).WithClock(clock)
	f.svc = New(st, statsSvc, adminSvc, f.notifier).WithClock(clock)
	return f
}

func (f *fixture) registerUser(t *testing.T, id int64, username string) {
	t.Helper()
	require.NoError(t, f.svc.RegisterUser(id, username, "Test"))
}

func freeSubmission() Submission {
	return Submission{
		Title:        "Dark City",
		Author:       "bob",
		Description:  "night build",
		CoverURL:     "AgACAgQAAxkBAAI",
		DownloadLink: "https://example.com/build.zip",
		Category:     model.CategoryFree,
	}
}

func (f *fixture) stats(t *testing.T) model.Stats {
	t.Helper()
	var st model.Stats
	require.NoError(t, f.store.Load(store.DocStats, &st))
	return st
}

func TestMainAdminPublishesDirectly(t *testing.T) {
	f := newFixture(t)

	build, published, err := f.svc.Finalize(freeSubmission(), mainAdminID, "boss")
	require.NoError(t, err)
	assert.True(t, published)

	got, err := f.svc.Get(build.BuildID)
	require.NoError(t, err)
	assert.Equal(t, "Dark City", got.Title)
	assert.Equal(t, mainAdminID, got.AddedBy)
	assert.Equal(t, 1, f.stats(t).BuildsAdded)

	pending, err := f.svc.PendingList()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDelegatedSubmissionLandsInPending(t *testing.T) {
	f := newFixture(t)

	build, published, err := f.svc.Finalize(freeSubmission(), 42, "bob")
	require.NoError(t, err)
	assert.False(t, published)

	_, err = f.svc.Get(build.BuildID)
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := f.svc.PendingGet(build.BuildID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.RequesterID)
	assert.Equal(t, "bob", p.RequesterUsername)
	assert.Zero(t, f.stats(t).BuildsAdded)
}

func TestPaidSubmissionRejectedForDelegatedAdmin(t *testing.T) {
	f := newFixture(t)

	sub := freeSubmission()
	sub.Category = model.CategoryPaid
	sub.Price = 100
	sub.Contact = "@seller"

	_, _, err := f.svc.Finalize(sub, 42, "bob")
	assert.ErrorIs(t, err, ErrPaidNotAllowed)

	pending, err := f.svc.PendingList()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPaidSubmissionValidatesPriceAndContact(t *testing.T) {
	f := newFixture(t)

	sub := freeSubmission()
	sub.Category = model.CategoryPaid
	sub.Price = 0
	sub.Contact = "@seller"
	_, _, err := f.svc.Finalize(sub, mainAdminID, "boss")
	assert.ErrorIs(t, err, ErrInvalidBuild)

	sub.Price = 100
	sub.Contact = ""
	_, _, err = f.svc.Finalize(sub, mainAdminID, "boss")
	assert.ErrorIs(t, err, ErrInvalidBuild)

	sub.Contact = "@seller"
	_, published, err := f.svc.Finalize(sub, mainAdminID, "boss")
	require.NoError(t, err)
	assert.True(t, published)
}

func TestApproveMovesRecordAndCreditsSubmitter(t *testing.T) {
	f := newFixture(t)

	build, _, err := f.svc.Finalize(freeSubmission(), 42, "bob")
	require.NoError(t, err)

	approved, err := f.svc.Approve(build.BuildID)
	require.NoError(t, err)
	assert.Equal(t, build.BuildID, approved.BuildID)

	got, err := f.svc.Get(build.BuildID)
	require.NoError(t, err)
	assert.Equal(t, approved.Build, *got)

	_, err = f.svc.PendingGet(build.BuildID)
	assert.ErrorIs(t, err, ErrNotFound)

	adminSvc := admins.New(f.store, mainAdminID, staffChatID)
	rec, err := adminSvc.Get(42)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.BuildsAdded)
	assert.Equal(t, 1, f.stats(t).BuildsAdded)
}

func TestApproveKeepsPendingWhenPublishFails(t *testing.T) {
	f := newFixture(t)

	build, _, err := f.svc.Finalize(freeSubmission(), 42, "bob")
	require.NoError(t, err)

	// A directory squatting on the temp path makes the builds write fail.
	blocker := filepath.Join(f.store.Dir(), "builds.json.tmp")
	require.NoError(t, os.Mkdir(blocker, 0o755))

	_, err = f.svc.Approve(build.BuildID)
	require.Error(t, err)

	// The submission survives the failed publish and approves cleanly after.
	_, err = f.svc.PendingGet(build.BuildID)
	require.NoError(t, err)

	require.NoError(t, os.Remove(blocker))
	_, err = f.svc.Approve(build.BuildID)
	require.NoError(t, err)
	_, err = f.svc.Get(build.BuildID)
	require.NoError(t, err)
}

func TestRejectDropsPending(t *testing.T) {
	f := newFixture(t)

	build, _, err := f.svc.Finalize(freeSubmission(), 42, "bob")
	require.NoError(t, err)

	rejected, err := f.svc.Reject(build.BuildID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), rejected.RequesterID)

	_, err = f.svc.Reject(build.BuildID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.stats(t).BuildsAdded)
}

func TestDeleteFloorsCounterAtZero(t *testing.T) {
	f := newFixture(t)

	build, _, err := f.svc.Finalize(freeSubmission(), mainAdminID, "boss")
	require.NoError(t, err)

	removed, err := f.svc.Delete(build.BuildID)
	require.NoError(t, err)
	assert.Equal(t, build.BuildID, removed.BuildID)
	assert.Zero(t, f.stats(t).BuildsAdded)

	// Deleting with counter already at zero never goes negative.
	build2, _, err := f.svc.Finalize(freeSubmission(), mainAdminID, "boss")
	require.NoError(t, err)
	require.NoError(t, f.svc.stats.RemoveBuild())
	_, err = f.svc.Delete(build2.BuildID)
	require.NoError(t, err)
	assert.Zero(t, f.stats(t).BuildsAdded)
}

func TestDownloadFlow(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, 7, "alice")

	build, _, err := f.svc.Finalize(freeSubmission(), mainAdminID, "boss")
	require.NoError(t, err)

	ok, _, err := f.svc.CanDownload(7)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.svc.RecordDownload(7, build.BuildID))

	u, err := f.svc.User(7)
	require.NoError(t, err)
	require.NotNil(t, u.LastDownload)
	assert.Equal(t, 1, u.DownloadsCount)
	assert.Equal(t, build.BuildID, u.LastBuild)
	assert.Equal(t, 1, f.stats(t).TotalDownloads)

	require.Len(t, f.notifier.scheduled, 1)
	assert.Equal(t, f.now.Add(24*time.Hour), f.notifier.scheduled[0])
	assert.Equal(t, int64(7), f.notifier.users[0])

	// Immediate retry is denied with nearly a full day left.
	f.setNow(f.now.Add(time.Second))
	ok, wait, err := f.svc.CanDownload(7)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "23ч 59м", FormatWait(wait))

	err = f.svc.RecordDownload(7, build.BuildID)
	assert.ErrorIs(t, err, ErrCooldown)
}

func TestConcurrentDownloadsRecordOnce(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, 7, "alice")

	build, _, err := f.svc.Finalize(freeSubmission(), mainAdminID, "boss")
	require.NoError(t, err)

	// The cooldown check runs inside the users-document mutex, so of two
	// simultaneous taps exactly one records.
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			errs <- f.svc.RecordDownload(7, build.BuildID)
		}()
	}
	var recorded, denied int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			recorded++
		case errors.Is(err, ErrCooldown):
			denied++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, recorded)
	assert.Equal(t, 1, denied)

	u, err := f.svc.User(7)
	require.NoError(t, err)
	assert.Equal(t, 1, u.DownloadsCount)
	assert.Equal(t, 1, f.stats(t).TotalDownloads)
	assert.Len(t, f.notifier.scheduled, 1)
}

func TestCooldownBoundaryPermitsAtExactly24h(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, 7, "alice")

	build, _, err := f.svc.Finalize(freeSubmission(), mainAdminID, "boss")
	require.NoError(t, err)
	require.NoError(t, f.svc.RecordDownload(7, build.BuildID))

	start := f.now
	f.setNow(start.Add(24*time.Hour - time.Nanosecond))
	ok, _, err := f.svc.CanDownload(7)
	require.NoError(t, err)
	assert.False(t, ok)

	f.setNow(start.Add(24 * time.Hour))
	ok, _, err = f.svc.CanDownload(7)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPaidBuildNeverTouchesLimit(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, 7, "alice")

	sub := freeSubmission()
	sub.Category = model.CategoryPaid
	sub.Price = 100
	sub.Contact = "@seller"
	build, _, err := f.svc.Finalize(sub, mainAdminID, "boss")
	require.NoError(t, err)

	require.NoError(t, f.svc.RecordDownload(7, build.BuildID))

	u, err := f.svc.User(7)
	require.NoError(t, err)
	assert.Nil(t, u.LastDownload)
	assert.Zero(t, u.DownloadsCount)
	assert.Empty(t, f.notifier.scheduled)
}

func TestResetLimit(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, 7, "alice")

	build, _, err := f.svc.Finalize(freeSubmission(), mainAdminID, "boss")
	require.NoError(t, err)
	require.NoError(t, f.svc.RecordDownload(7, build.BuildID))

	reset, err := f.svc.ResetLimit(7)
	require.NoError(t, err)
	assert.True(t, reset)

	u, err := f.svc.User(7)
	require.NoError(t, err)
	assert.Nil(t, u.LastDownload)
	assert.Equal(t, 1, u.PaidResets)
	assert.Equal(t, 1, f.stats(t).TotalResets)

	reset, err = f.svc.ResetLimit(999)
	require.NoError(t, err)
	assert.False(t, reset)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	page, pages := Paginate(items, 0, 5)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, page)
	assert.Equal(t, 2, pages)

	page, pages = Paginate(items, 1, 5)
	assert.Equal(t, []int{6, 7}, page)
	assert.Equal(t, 2, pages)

	page, pages = Paginate(items, 2, 5)
	assert.Empty(t, page)
	assert.Equal(t, 2, pages)

	page, pages = Paginate([]int{}, 0, 5)
	assert.Empty(t, page)
	assert.Zero(t, pages)
}

func TestBuildIDCollisionBumps(t *testing.T) {
	f := newFixture(t)

	a, _, err := f.svc.Finalize(freeSubmission(), mainAdminID, "boss")
	require.NoError(t, err)
	b, _, err := f.svc.Finalize(freeSubmission(), mainAdminID, "boss")
	require.NoError(t, err)
	assert.NotEqual(t, a.BuildID, b.BuildID)
}
