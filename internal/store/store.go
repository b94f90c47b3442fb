// Package store persists named JSON documents under a single data directory.
// Each document is read and written whole; concurrent read-modify-write cycles
// on the same document are serialized with a per-document mutex.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Document names used by the catalog bot.
const (
	DocUsers         = "users"
	DocBuilds        = "builds"
	DocStats         = "stats"
	DocAdmins        = "admins"
	DocPending       = "pending_builds"
	DocNotifications = "notifications"
)

// Store reads and writes named JSON documents in a directory.
type Store struct {
	dir string

	guard sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store: empty data dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	return &Store{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Dir returns the data directory the store operates on.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func (s *Store) lock(name string) *sync.Mutex {
	s.guard.Lock()
	defer s.guard.Unlock()
	mu, ok := s.locks[name]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[name] = mu
	}
	return mu
}

// Load reads the named document into v. A missing file leaves v untouched
// so callers start from their zero value.
func (s *Store) Load(name string, v any) error {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("store: read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: decode %s: %w", name, err)
	}
	return nil
}

// Save serializes v and replaces the named document. The write goes through
// a temp file so a crash mid-write never leaves a truncated document.
func (s *Store) Save(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", name, err)
	}
	path := s.path(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: replace %s: %w", name, err)
	}
	return nil
}

// Update runs a read-modify-write cycle on the named document under its
// mutex: load into v, apply fn, save. fn returning an error aborts the save.
func (s *Store) Update(name string, v any, fn func() error) error {
	mu := s.lock(name)
	mu.Lock()
	defer mu.Unlock()

	if err := s.Load(name, v); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return s.Save(name, v)
}
