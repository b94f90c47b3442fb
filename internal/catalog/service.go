// Package catalog implements the build catalog: submission finalize,
// moderation, download cooldown, paid resets and listings.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"buildsbot/internal/admins"
	"buildsbot/internal/model"
	"buildsbot/internal/stats"
	"buildsbot/internal/store"
)

// Cooldown is the rolling download window for FREE builds.
const Cooldown = 24 * time.Hour

// Page sizes for the inline listings.
const (
	PageSizeBuilds  = 5
	PageSizeAdmins  = 5
	PageSizePending = 10
)

var (
	// ErrNotFound means no build or pending record matches the id.
	ErrNotFound = errors.New("catalog: build not found")
	// ErrPaidNotAllowed rejects PAID submissions from delegated admins.
	ErrPaidNotAllowed = errors.New("catalog: paid builds require the main admin")
	// ErrInvalidBuild means a finalize-time invariant failed.
	ErrInvalidBuild = errors.New("catalog: invalid build")
	// ErrCooldown means the user is inside the download window.
	ErrCooldown = errors.New("catalog: download limit active")
)

// Submission carries the fields collected by the add-build conversation.
type Submission struct {
	Title        string
	Author       string
	Description  string
	CoverURL     string
	DownloadLink string
	Category     model.Category
	Price        int
	Contact      string
}

// DownloadNotifier schedules the cooldown-expired notice.
type DownloadNotifier interface {
	Schedule(userID int64, typ string, at time.Time) (string, error)
}

// Service coordinates the catalog documents and counters.
type Service struct {
	store    *store.Store
	stats    *stats.Service
	admins   *admins.Service
	notifier DownloadNotifier
	now      func() time.Time
}

// New constructs the catalog service.
func New(st *store.Store, statsSvc *stats.Service, adminSvc *admins.Service, notifier DownloadNotifier) *Service {
	return &Service{
		store:    st,
		stats:    statsSvc,
		admins:   adminSvc,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithClock overrides time source, used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RegisterUser creates the user record on first contact.
func (s *Service) RegisterUser(id int64, username, firstName string) error {
	users := model.Users{}
	return s.store.Update(store.DocUsers, &users, func() error {
		key := model.UserKey(id)
		if u, ok := users[key]; ok {
			// Keep the handle fresh; Telegram users rename themselves.
			u.Username = username
			u.FirstName = firstName
			return nil
		}
		users[key] = &model.User{
			Username:             username,
			FirstName:            firstName,
			RegisteredAt:         model.Timestamp(s.now()),
			NotificationsEnabled: true,
		}
		return nil
	})
}

// CanDownload reports whether the user may download a FREE build now.
// When denied, wait holds the remaining time.
func (s *Service) CanDownload(userID int64) (ok bool, wait time.Duration, err error) {
	users := model.Users{}
	if err := s.store.Load(store.DocUsers, &users); err != nil {
		return false, 0, err
	}
	u, found := users[model.UserKey(userID)]
	if !found || u.LastDownload == nil {
		return true, 0, nil
	}
	next := u.LastDownload.Add(Cooldown)
	now := s.now()
	if !now.Before(next) {
		return true, 0, nil
	}
	return false, next.Sub(now), nil
}

// FormatWait renders remaining cooldown as truncated hours and minutes.
func FormatWait(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	return fmt.Sprintf("%dч %dм", hours, minutes)
}

// RecordDownload applies the download transition for a FREE build:
// stamps last-download, bumps counters and schedules the 24h notice.
// PAID builds never touch the limit.
func (s *Service) RecordDownload(userID int64, buildID string) error {
	build, err := s.Get(buildID)
	if err != nil {
		return err
	}
	if build.Category == model.CategoryPaid {
		return nil
	}

	now := s.now()
	users := model.Users{}
	err = s.store.Update(store.DocUsers, &users, func() error {
		u, found := users[model.UserKey(userID)]
		if !found {
			return fmt.Errorf("catalog: user %d not registered", userID)
		}
		// Checked under the document mutex so two concurrent taps
		// cannot both pass the window.
		if u.LastDownload != nil {
			next := u.LastDownload.Add(Cooldown)
			if now.Before(next) {
				return fmt.Errorf("%w: %s", ErrCooldown, FormatWait(next.Sub(now)))
			}
		}
		stamp := now
		u.LastDownload = &stamp
		u.DownloadsCount++
		u.LastBuild = buildID
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.stats.AddDownload(); err != nil {
		return err
	}
	if s.notifier != nil {
		if _, err := s.notifier.Schedule(userID, model.NotificationDownloadAvailable, now.Add(Cooldown)); err != nil {
			return err
		}
	}
	return nil
}

// ResetLimit clears the user's download window after a paid reset.
func (s *Service) ResetLimit(userID int64) (bool, error) {
	reset := false
	users := model.Users{}
	err := s.store.Update(store.DocUsers, &users, func() error {
		u, found := users[model.UserKey(userID)]
		if !found {
			return nil
		}
		u.LastDownload = nil
		u.PaidResets++
		reset = true
		return nil
	})
	if err != nil || !reset {
		return reset, err
	}
	return true, s.stats.AddReset()
}

// Finalize validates a completed submission and either publishes it
// directly (main admin) or stages it for moderation. The returned flag
// reports whether the build went straight to the catalog.
func (s *Service) Finalize(sub Submission, submitterID int64, submitterUsername string) (*model.Build, bool, error) {
	if !sub.Category.Valid() {
		return nil, false, fmt.Errorf("%w: unknown category %q", ErrInvalidBuild, sub.Category)
	}
	if sub.Category == model.CategoryPaid {
		if !s.admins.IsMainAdmin(submitterID) {
			return nil, false, ErrPaidNotAllowed
		}
		if sub.Price <= 0 {
			return nil, false, fmt.Errorf("%w: paid build requires a positive price", ErrInvalidBuild)
		}
		if sub.Contact == "" {
			return nil, false, fmt.Errorf("%w: paid build requires a contact", ErrInvalidBuild)
		}
	}

	now := s.now()
	build := model.Build{
		Title:        sub.Title,
		Author:       sub.Author,
		Description:  sub.Description,
		CoverURL:     sub.CoverURL,
		DownloadLink: sub.DownloadLink,
		Category:     sub.Category,
		Price:        sub.Price,
		Contact:      sub.Contact,
		AddedBy:      submitterID,
		AddedAt:      model.Timestamp(now),
		BuildID:      model.NewBuildID(now),
	}

	if s.admins.IsMainAdmin(submitterID) {
		builds := model.Builds{}
		err := s.store.Update(store.DocBuilds, &builds, func() error {
			build.BuildID = uniqueID(build.BuildID, builds)
			b := build
			builds[b.BuildID] = &b
			return nil
		})
		if err != nil {
			return nil, false, err
		}
		if err := s.stats.AddBuild(); err != nil {
			return nil, false, err
		}
		return &build, true, nil
	}

	pendingRec := model.PendingBuild{
		Build:             build,
		RequesterID:       submitterID,
		RequesterUsername: submitterUsername,
	}
	pending := model.PendingBuilds{}
	err := s.store.Update(store.DocPending, &pending, func() error {
		pendingRec.BuildID = uniqueIDPending(pendingRec.BuildID, pending)
		p := pendingRec
		pending[p.BuildID] = &p
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	build.BuildID = pendingRec.BuildID
	return &build, false, nil
}

// Approve moves a pending record to the catalog under the same id and
// credits the submitter's counter. The build is published before the
// pending record is dropped, so a failure in between keeps the
// submission rather than losing it.
func (s *Service) Approve(buildID string) (*model.PendingBuild, error) {
	pending := model.PendingBuilds{}
	if err := s.store.Load(store.DocPending, &pending); err != nil {
		return nil, err
	}
	approved, ok := pending[buildID]
	if !ok {
		return nil, ErrNotFound
	}

	builds := model.Builds{}
	err := s.store.Update(store.DocBuilds, &builds, func() error {
		b := approved.Build
		builds[b.BuildID] = &b
		return nil
	})
	if err != nil {
		return nil, err
	}

	pending = model.PendingBuilds{}
	err = s.store.Update(store.DocPending, &pending, func() error {
		delete(pending, buildID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.stats.AddBuild(); err != nil {
		return nil, err
	}
	if err := s.admins.IncrementBuilds(approved.RequesterID, approved.RequesterUsername); err != nil {
		return nil, err
	}
	return approved, nil
}

// Reject drops a pending record and returns it for submitter notification.
func (s *Service) Reject(buildID string) (*model.PendingBuild, error) {
	var rejected *model.PendingBuild
	pending := model.PendingBuilds{}
	err := s.store.Update(store.DocPending, &pending, func() error {
		p, ok := pending[buildID]
		if !ok {
			return ErrNotFound
		}
		rejected = p
		delete(pending, buildID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

// Delete removes a published build and decrements the builds-added
// counter, floored at zero.
func (s *Service) Delete(buildID string) (*model.Build, error) {
	var removed *model.Build
	builds := model.Builds{}
	err := s.store.Update(store.DocBuilds, &builds, func() error {
		b, ok := builds[buildID]
		if !ok {
			return ErrNotFound
		}
		removed = b
		delete(builds, buildID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.stats.RemoveBuild(); err != nil {
		return nil, err
	}
	return removed, nil
}

// Get returns a published build by id.
func (s *Service) Get(buildID string) (*model.Build, error) {
	builds := model.Builds{}
	if err := s.store.Load(store.DocBuilds, &builds); err != nil {
		return nil, err
	}
	b, ok := builds[buildID]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

// Builds returns the catalog sorted newest first.
func (s *Service) Builds() ([]model.Build, error) {
	builds := model.Builds{}
	if err := s.store.Load(store.DocBuilds, &builds); err != nil {
		return nil, err
	}
	list := make([]model.Build, 0, len(builds))
	for _, b := range builds {
		list = append(list, *b)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].BuildID > list[j].BuildID })
	return list, nil
}

// PendingGet returns one pending record by id.
func (s *Service) PendingGet(buildID string) (*model.PendingBuild, error) {
	pending := model.PendingBuilds{}
	if err := s.store.Load(store.DocPending, &pending); err != nil {
		return nil, err
	}
	p, ok := pending[buildID]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// PendingList returns pending submissions oldest first.
func (s *Service) PendingList() ([]model.PendingBuild, error) {
	pending := model.PendingBuilds{}
	if err := s.store.Load(store.DocPending, &pending); err != nil {
		return nil, err
	}
	list := make([]model.PendingBuild, 0, len(pending))
	for _, p := range pending {
		list = append(list, *p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].BuildID < list[j].BuildID })
	return list, nil
}

// User returns the stored user record.
func (s *Service) User(userID int64) (*model.User, error) {
	users := model.Users{}
	if err := s.store.Load(store.DocUsers, &users); err != nil {
		return nil, err
	}
	u, ok := users[model.UserKey(userID)]
	if !ok {
		return nil, fmt.Errorf("catalog: user %d not registered", userID)
	}
	return u, nil
}

// Paginate slices items into a fixed-size page. Pages count from zero;
// an out-of-range page yields an empty slice. The second result is the
// total number of pages.
func Paginate[T any](items []T, page, perPage int) ([]T, int) {
	if perPage <= 0 || len(items) == 0 {
		return nil, 0
	}
	pages := (len(items) + perPage - 1) / perPage
	if page < 0 || page >= pages {
		return nil, pages
	}
	start := page * perPage
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], pages
}

// Build ids derive from unix seconds; two submissions in the same second
// would collide, so bump until free.
func uniqueID(id string, existing model.Builds) string {
	for {
		if _, taken := existing[id]; !taken {
			return id
		}
		id = bumpID(id)
	}
}

func uniqueIDPending(id string, existing model.PendingBuilds) string {
	for {
		if _, taken := existing[id]; !taken {
			return id
		}
		id = bumpID(id)
	}
}

func bumpID(id string) string {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return id + "0"
	}
	return strconv.FormatInt(n+1, 10)
}
