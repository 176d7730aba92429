// Package localstore persists guest-mode state the way a browser's
// localStorage would: a fixed set of keys, each holding one opaque JSON
// value, scoped to the local profile and fully superseded once the guest
// list is merged into an account.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/smartmark/smartmark/internal/domain"
)

const (
	bookmarksKey  = "bookmarks.json"
	onboardingKey = "onboarding-complete"
)

// Store reads and writes guest state under a single directory.
type Store struct {
	dir string
}

// New creates the state directory if needed and returns a store over it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// NewLocalID returns a client-assigned bookmark id. The prefix keeps local
// ids from ever colliding with server-assigned ones.
func NewLocalID() string {
	return domain.LocalIDPrefix + uuid.NewString()
}

// Bookmarks returns the guest bookmark list. A missing or empty key reads
// as an empty list, matching localStorage semantics.
func (s *Store) Bookmarks() ([]domain.Bookmark, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, bookmarksKey))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.Bookmark{}, nil
		}
		return nil, fmt.Errorf("failed to read local bookmarks: %w", err)
	}

	var bookmarks []domain.Bookmark
	if err := json.Unmarshal(data, &bookmarks); err != nil {
		return nil, fmt.Errorf("failed to decode local bookmarks: %w", err)
	}
	if bookmarks == nil {
		bookmarks = []domain.Bookmark{}
	}
	return bookmarks, nil
}

// SaveBookmarks replaces the guest bookmark list wholesale.
func (s *Store) SaveBookmarks(bookmarks []domain.Bookmark) error {
	data, err := json.Marshal(bookmarks)
	if err != nil {
		return fmt.Errorf("failed to encode local bookmarks: %w", err)
	}
	return s.writeKey(bookmarksKey, data)
}

// Clear removes the guest bookmark list. Called once every local entry is
// accounted for server-side, by dedup or by confirmed sync.
func (s *Store) Clear() error {
	err := os.Remove(filepath.Join(s.dir, bookmarksKey))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear local bookmarks: %w", err)
	}
	return nil
}

// OnboardingComplete reports whether the guest has already chosen between
// signing in and local mode. Presence of the key is the marker.
func (s *Store) OnboardingComplete() bool {
	_, err := os.Stat(filepath.Join(s.dir, onboardingKey))
	return err == nil
}

// MarkOnboardingComplete sets the onboarding marker. Set once, never cleared.
func (s *Store) MarkOnboardingComplete() error {
	return s.writeKey(onboardingKey, []byte("1"))
}

// writeKey replaces a key's value atomically so a crash mid-write never
// leaves a half-written document behind.
func (s *Store) writeKey(key string, data []byte) error {
	path := filepath.Join(s.dir, key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}
	return nil
}
