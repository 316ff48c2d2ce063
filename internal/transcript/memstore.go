package transcript

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// The zero value is ready to use.
type MemStore struct {
	mu    sync.RWMutex
	users map[string]*UserState
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		users: make(map[string]*UserState),
	}
}

// AppendFinal implements [Store.AppendFinal].
func (s *MemStore) AppendFinal(_ context.Context, userID, text string, ts time.Time) (Segment, error) {
	if strings.TrimSpace(text) == "" {
		return Segment{}, nil
	}
	seg := Segment{ID: uuid.NewString(), Text: text, Timestamp: ts, IsFinal: true}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(userID)
	u.Finals = append(u.Finals, seg)
	u.Intermediate = Segment{}
	if u.Marker == SentinelNone {
		u.Marker = seg.ID
	}
	return seg, nil
}

// ReplaceIntermediate implements [Store.ReplaceIntermediate].
func (s *MemStore) ReplaceIntermediate(_ context.Context, userID, text string, ts time.Time) (Segment, error) {
	if strings.TrimSpace(text) == "" {
		return Segment{}, nil
	}
	seg := Segment{ID: uuid.NewString(), Text: text, Timestamp: ts}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.user(userID).Intermediate = seg
	return seg, nil
}

// State implements [Store.State].
func (s *MemStore) State(_ context.Context, userID string) (UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user(userID).Clone(), nil
}

// SaveCursor implements [Store.SaveCursor].
func (s *MemStore) SaveCursor(_ context.Context, userID, marker string, offset int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(userID)
	u.Marker = marker
	u.Offset = max(offset, 0)
	return nil
}

// Recent implements [Store.Recent].
func (s *MemStore) Recent(_ context.Context, userID string, since time.Time) ([]Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return []Segment{}, nil
	}
	out := make([]Segment, 0, len(u.Finals))
	for _, seg := range u.Finals {
		if !seg.Timestamp.Before(since) {
			out = append(out, seg)
		}
	}
	return out, nil
}

// Purge implements [Store.Purge].
func (s *MemStore) Purge(_ context.Context, userID string, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return 0, nil
	}
	n := len(u.Finals)
	u.Finals = slices.DeleteFunc(u.Finals, func(seg Segment) bool {
		return seg.Timestamp.Before(before)
	})
	return n - len(u.Finals), nil
}

// Delete implements [Store.Delete].
func (s *MemStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	return nil
}

// Users implements [Store.Users].
func (s *MemStore) Users(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// user returns the state for userID, creating it on first contact.
// Caller must hold s.mu for writing.
func (s *MemStore) user(userID string) *UserState {
	if s.users == nil {
		s.users = make(map[string]*UserState)
	}
	u, ok := s.users[userID]
	if !ok {
		u = &UserState{UserID: userID}
		s.users[userID] = u
	}
	return u
}
