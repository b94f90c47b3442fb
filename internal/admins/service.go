// Package admins resolves roles and manages the delegated-admin set.
// The main admin is a static configured id and is never stored.
package admins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"buildsbot/core/logger"
	"buildsbot/internal/model"
	"buildsbot/internal/store"
)

var (
	// ErrUserNotFound means no registered user matches the given handle.
	ErrUserNotFound = errors.New("admins: user not found")
	// ErrNotAdmin means the target user holds no delegated-admin record.
	ErrNotAdmin = errors.New("admins: not an admin")
	// ErrAlreadyAdmin means the target user is already in the admin set.
	ErrAlreadyAdmin = errors.New("admins: already an admin")
	// ErrMainAdmin rejects operations that target the main admin record.
	ErrMainAdmin = errors.New("admins: main admin is not a stored record")
)

// Entry pairs an admin record with its user id for listings.
type Entry struct {
	ID    int64
	Admin model.Admin
}

// Service answers capability checks and mutates the admins document.
type Service struct {
	store       *store.Store
	mainAdminID int64
	staffChatID int64
	now         func() time.Time
}

// New constructs the access-control service.
func New(st *store.Store, mainAdminID, staffChatID int64) *Service {
	return &Service{
		store:       st,
		mainAdminID: mainAdminID,
		staffChatID: staffChatID,
		now:         time.Now,
	}
}

// WithClock overrides time source, used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// MainAdminID exposes the configured main admin id.
func (s *Service) MainAdminID() int64 {
	return s.mainAdminID
}

// StaffChatID exposes the configured staff chat id.
func (s *Service) StaffChatID() int64 {
	return s.staffChatID
}

// IsMainAdmin reports whether id is the configured main admin.
func (s *Service) IsMainAdmin(id int64) bool {
	return id != 0 && id == s.mainAdminID
}

// IsAdmin reports whether id is the main admin or a delegated admin.
func (s *Service) IsAdmin(id int64) bool {
	if s.IsMainAdmin(id) {
		return true
	}
	admins := model.Admins{}
	if err := s.store.Load(store.DocAdmins, &admins); err != nil {
		logger.Error(context.Background(), "admins", "load.fail",
			slog.String("err", err.Error()),
		)
		return false
	}
	_, ok := admins[model.UserKey(id)]
	return ok
}

// AllowedIn applies the command-level policy: the main admin acts anywhere,
// a delegated admin only inside the staff chat.
func (s *Service) AllowedIn(userID, chatID int64) bool {
	if s.IsMainAdmin(userID) {
		return true
	}
	if chatID != s.staffChatID {
		return false
	}
	return s.IsAdmin(userID)
}

// Get returns the stored admin record for id.
func (s *Service) Get(id int64) (*model.Admin, error) {
	admins := model.Admins{}
	if err := s.store.Load(store.DocAdmins, &admins); err != nil {
		return nil, err
	}
	a, ok := admins[model.UserKey(id)]
	if !ok {
		return nil, ErrNotAdmin
	}
	return a, nil
}

// List returns all delegated admins sorted by id for stable pagination.
func (s *Service) List() ([]Entry, error) {
	admins := model.Admins{}
	if err := s.store.Load(store.DocAdmins, &admins); err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(admins))
	for key, a := range admins {
		id, err := model.ParseUserKey(key)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{ID: id, Admin: *a})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// AddByUsername grants admin rights to a registered user looked up by handle.
// Returns the resolved user id.
func (s *Service) AddByUsername(username string, grantedBy int64) (int64, error) {
	handle := normalizeHandle(username)
	if handle == "" {
		return 0, ErrUserNotFound
	}

	users := model.Users{}
	if err := s.store.Load(store.DocUsers, &users); err != nil {
		return 0, err
	}
	var (
		targetID   int64
		targetUser *model.User
	)
	for key, u := range users {
		if normalizeHandle(u.Username) != handle {
			continue
		}
		id, err := model.ParseUserKey(key)
		if err != nil {
			continue
		}
		targetID, targetUser = id, u
		break
	}
	if targetUser == nil {
		return 0, ErrUserNotFound
	}
	if s.IsMainAdmin(targetID) {
		return targetID, ErrMainAdmin
	}

	admins := model.Admins{}
	err := s.store.Update(store.DocAdmins, &admins, func() error {
		key := model.UserKey(targetID)
		if _, exists := admins[key]; exists {
			return ErrAlreadyAdmin
		}
		admins[key] = &model.Admin{
			Username: targetUser.Username,
			AddedBy:  model.GrantedBy{UserID: grantedBy},
			AddedAt:  model.Timestamp(s.now()),
		}
		return nil
	})
	if err != nil {
		return targetID, err
	}
	return targetID, nil
}

// RemoveByID revokes a delegated admin. The main admin is never removable.
func (s *Service) RemoveByID(id int64) error {
	if s.IsMainAdmin(id) {
		return ErrMainAdmin
	}
	admins := model.Admins{}
	return s.store.Update(store.DocAdmins, &admins, func() error {
		key := model.UserKey(id)
		if _, ok := admins[key]; !ok {
			return ErrNotAdmin
		}
		delete(admins, key)
		return nil
	})
}

// RemoveByUsername revokes a delegated admin matched by handle and returns its id.
func (s *Service) RemoveByUsername(username string) (int64, error) {
	handle := normalizeHandle(username)
	if handle == "" {
		return 0, ErrNotAdmin
	}
	var removedID int64
	admins := model.Admins{}
	err := s.store.Update(store.DocAdmins, &admins, func() error {
		for key, a := range admins {
			if normalizeHandle(a.Username) != handle {
				continue
			}
			id, err := model.ParseUserKey(key)
			if err != nil {
				continue
			}
			if s.IsMainAdmin(id) {
				return ErrMainAdmin
			}
			removedID = id
			delete(admins, key)
			return nil
		}
		return ErrNotAdmin
	})
	if err != nil {
		return 0, err
	}
	return removedID, nil
}

// IncrementBuilds bumps an admin's builds-added counter, creating the
// record on demand (the approve path may credit a user who joined the
// staff chat before the admins document existed).
func (s *Service) IncrementBuilds(id int64, username string) error {
	if s.IsMainAdmin(id) {
		return nil
	}
	admins := model.Admins{}
	return s.store.Update(store.DocAdmins, &admins, func() error {
		key := model.UserKey(id)
		a, ok := admins[key]
		if !ok {
			a = &model.Admin{
				Username: username,
				AddedBy:  model.GrantedBy{Auto: true},
				AddedAt:  model.Timestamp(s.now()),
			}
			admins[key] = a
		}
		a.BuildsAdded++
		return nil
	})
}

// PromoteFromChatJoin grants admin rights when a user joins the staff chat.
// Returns false when no record was created (main admin or already present).
func (s *Service) PromoteFromChatJoin(id int64, username string, joinedAt time.Time) (bool, error) {
	if s.IsMainAdmin(id) {
		return false, nil
	}
	created := false
	admins := model.Admins{}
	err := s.store.Update(store.DocAdmins, &admins, func() error {
		key := model.UserKey(id)
		if _, exists := admins[key]; exists {
			return nil
		}
		admins[key] = &model.Admin{
			Username:     username,
			AddedBy:      model.GrantedBy{Auto: true},
			AddedAt:      model.Timestamp(s.now()),
			ChatJoinDate: model.Timestamp(joinedAt),
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// DemoteFromChatLeave revokes admin rights when a user leaves the staff
// chat. Returns false when there was nothing to revoke.
func (s *Service) DemoteFromChatLeave(id int64) (bool, error) {
	if s.IsMainAdmin(id) {
		return false, nil
	}
	removed := false
	admins := model.Admins{}
	err := s.store.Update(store.DocAdmins, &admins, func() error {
		key := model.UserKey(id)
		if _, ok := admins[key]; !ok {
			return nil
		}
		delete(admins, key)
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func normalizeHandle(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}

// FormatEntry renders an admin line for listings.
func FormatEntry(e Entry) string {
	name := e.Admin.Username
	if name == "" {
		name = model.UserKey(e.ID)
	}
	return fmt.Sprintf("@%s — %d", strings.TrimPrefix(name, "@"), e.Admin.BuildsAdded)
}
