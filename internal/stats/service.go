// Package stats maintains the cached counters document. The cache may
// drift from the source documents and is reconciled lazily or on demand.
package stats

import (
	"time"

	"buildsbot/internal/model"
	"buildsbot/internal/store"
)

const staleAfter = 24 * time.Hour

// Report captures counter values around a manual reconciliation.
type Report struct {
	Before model.Stats
	After  model.Stats
}

// Service reads and reconciles the stats document.
type Service struct {
	store *store.Store
	now   func() time.Time
}

// New constructs the stats service.
func New(st *store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// WithClock overrides time source, used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get returns the cached counters, recomputing first when the cache has
// never been updated or is older than 24 hours.
func (s *Service) Get() (model.Stats, error) {
	var st model.Stats
	if err := s.store.Load(store.DocStats, &st); err != nil {
		return model.Stats{}, err
	}
	if !s.stale(st) {
		return st, nil
	}

	err := s.store.Update(store.DocStats, &st, func() error {
		if err := s.recompute(&st); err != nil {
			return err
		}
		st.LastUpdated = model.Timestamp(s.now())
		return nil
	})
	if err != nil {
		return model.Stats{}, err
	}
	return st, nil
}

// Sync recomputes immediately regardless of staleness and reports deltas.
func (s *Service) Sync() (Report, error) {
	var report Report
	var st model.Stats
	err := s.store.Update(store.DocStats, &st, func() error {
		report.Before = st
		if err := s.recompute(&st); err != nil {
			return err
		}
		ts := model.Timestamp(s.now())
		st.LastUpdated = ts
		st.LastSync = ts
		report.After = st
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	return report, nil
}

// AddDownload bumps the global download counter.
func (s *Service) AddDownload() error {
	var st model.Stats
	return s.store.Update(store.DocStats, &st, func() error {
		st.TotalDownloads++
		return nil
	})
}

// AddBuild bumps the builds-added counter on publish.
func (s *Service) AddBuild() error {
	var st model.Stats
	return s.store.Update(store.DocStats, &st, func() error {
		st.BuildsAdded++
		return nil
	})
}

// RemoveBuild decrements the builds-added counter, floored at zero.
func (s *Service) RemoveBuild() error {
	var st model.Stats
	return s.store.Update(store.DocStats, &st, func() error {
		if st.BuildsAdded > 0 {
			st.BuildsAdded--
		}
		return nil
	})
}

// AddReset bumps the paid-reset counter.
func (s *Service) AddReset() error {
	var st model.Stats
	return s.store.Update(store.DocStats, &st, func() error {
		st.TotalResets++
		return nil
	})
}

func (s *Service) stale(st model.Stats) bool {
	if st.LastUpdated == "" {
		return true
	}
	ts, err := time.Parse(time.RFC3339, st.LastUpdated)
	if err != nil {
		return true
	}
	return s.now().Sub(ts) >= staleAfter
}

func (s *Service) recompute(st *model.Stats) error {
	users := model.Users{}
	if err := s.store.Load(store.DocUsers, &users); err != nil {
		return err
	}
	builds := model.Builds{}
	if err := s.store.Load(store.DocBuilds, &builds); err != nil {
		return err
	}

	downloads := 0
	for _, u := range users {
		downloads += u.DownloadsCount
	}
	paid, free := 0, 0
	for _, b := range builds {
		if b.Category == model.CategoryPaid {
			paid++
		} else {
			free++
		}
	}

	st.TotalUsers = len(users)
	st.TotalDownloads = downloads
	st.BuildsAdded = len(builds)
	st.PaidBuildsCount = paid
	st.FreeBuildsCount = free
	return nil
}
