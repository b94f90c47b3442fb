package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildsbot/internal/model"
	"buildsbot/internal/store"
)

func newService(t *testing.T) (*Service, *store.Store, *time.Time) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	svc := New(st).WithClock(func() time.Time { return now })
	return svc, st, &now
}

func seed(t *testing.T, st *store.Store, downloads []int, paid, free int) {
	t.Helper()
	users := model.Users{}
	for i, d := range downloads {
		users[model.UserKey(int64(i+1))] = &model.User{DownloadsCount: d}
	}
	require.NoError(t, st.Save(store.DocUsers, users))

	builds := model.Builds{}
	for i := 0; i < paid; i++ {
		id := model.NewBuildID(time.Unix(int64(1000+i), 0))
		builds[id] = &model.Build{BuildID: id, Category: model.CategoryPaid}
	}
	for i := 0; i < free; i++ {
		id := model.NewBuildID(time.Unix(int64(2000+i), 0))
		builds[id] = &model.Build{BuildID: id, Category: model.CategoryFree}
	}
	require.NoError(t, st.Save(store.DocBuilds, builds))
}

func TestGetAutoSyncsWhenNeverUpdated(t *testing.T) {
	svc, st, _ := newService(t)
	seed(t, st, []int{2, 3}, 1, 2)

	got, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalUsers)
	assert.Equal(t, 5, got.TotalDownloads)
	assert.Equal(t, 3, got.BuildsAdded)
	assert.Equal(t, 1, got.PaidBuildsCount)
	assert.Equal(t, 2, got.FreeBuildsCount)
	assert.NotEmpty(t, got.LastUpdated)
}

func TestGetSkipsSyncWhenFresh(t *testing.T) {
	svc, st, now := newService(t)
	seed(t, st, []int{1}, 0, 1)

	fresh := model.Stats{TotalUsers: 99, LastUpdated: model.Timestamp(now.Add(-time.Hour))}
	require.NoError(t, st.Save(store.DocStats, fresh))

	got, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, 99, got.TotalUsers)
}

func TestGetResyncsWhenStale(t *testing.T) {
	svc, st, now := newService(t)
	seed(t, st, []int{4}, 0, 1)

	stale := model.Stats{TotalUsers: 99, LastUpdated: model.Timestamp(now.Add(-25 * time.Hour))}
	require.NoError(t, st.Save(store.DocStats, stale))

	got, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalUsers)
	assert.Equal(t, 4, got.TotalDownloads)
}

func TestSyncReportsDeltas(t *testing.T) {
	svc, st, _ := newService(t)
	seed(t, st, []int{1, 1, 1}, 2, 1)
	require.NoError(t, st.Save(store.DocStats, model.Stats{TotalUsers: 1, TotalDownloads: 0}))

	report, err := svc.Sync()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Before.TotalUsers)
	assert.Equal(t, 3, report.After.TotalUsers)
	assert.Equal(t, 3, report.After.TotalDownloads)
	assert.Equal(t, 2, report.After.PaidBuildsCount)
	assert.Equal(t, 1, report.After.FreeBuildsCount)
	assert.NotEmpty(t, report.After.LastSync)
}

func TestRemoveBuildFloorsAtZero(t *testing.T) {
	svc, _, _ := newService(t)

	require.NoError(t, svc.RemoveBuild())
	var st model.Stats
	require.NoError(t, svc.store.Load(store.DocStats, &st))
	assert.Equal(t, 0, st.BuildsAdded)

	require.NoError(t, svc.AddBuild())
	require.NoError(t, svc.RemoveBuild())
	require.NoError(t, svc.store.Load(store.DocStats, &st))
	assert.Equal(t, 0, st.BuildsAdded)
}
