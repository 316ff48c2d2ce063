package catalog

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// The zero value is ready to use.
type MemStore struct {
	mu    sync.RWMutex
	users map[string][]Entry
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		users: make(map[string][]Entry),
	}
}

// Catalog implements [Provider.Catalog].
func (s *MemStore) Catalog(_ context.Context, userID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.users[userID]), nil
}

// Replace implements [Store.Replace].
func (s *MemStore) Replace(_ context.Context, userID string, entries []Entry) error {
	next, err := withIDs(nil, entries)
	if err != nil {
		return fmt.Errorf("catalog: replace %q: %w", userID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string][]Entry)
	}
	s.users[userID] = next
	return nil
}

// Append implements [Store.Append].
func (s *MemStore) Append(_ context.Context, userID string, entries []Entry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string][]Entry)
	}

	cur := s.users[userID]
	added := 0
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if indexOf(cur, e.ID) >= 0 {
			s.users[userID] = cur
			return added, fmt.Errorf("catalog: append %q at index %d (title %q): %w", userID, added, e.Title, ErrDuplicateID)
		}
		cur = append(cur, e)
		added++
	}
	s.users[userID] = cur
	return added, nil
}

// Get implements [Store.Get].
func (s *MemStore) Get(_ context.Context, userID, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.users[userID]
	i := indexOf(entries, id)
	if i < 0 {
		return Entry{}, ErrNotFound
	}
	return entries[i], nil
}

// Remove implements [Store.Remove].
func (s *MemStore) Remove(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.users[userID]
	i := indexOf(entries, id)
	if i < 0 {
		return ErrNotFound
	}
	s.users[userID] = slices.Delete(slices.Clone(entries), i, i+1)
	return nil
}

// Delete implements [Store.Delete].
func (s *MemStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// withIDs appends entries to base, generating missing IDs and rejecting
// duplicates.
func withIDs(base, entries []Entry) ([]Entry, error) {
	out := slices.Clone(base)
	seen := make(map[string]struct{}, len(out)+len(entries))
	for _, e := range out {
		seen[e.ID] = struct{}{}
	}
	for i, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("entry %d (title %q): %w", i, e.Title, ErrDuplicateID)
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}

func indexOf(entries []Entry, id string) int {
	return slices.IndexFunc(entries, func(e Entry) bool { return e.ID == id })
}
