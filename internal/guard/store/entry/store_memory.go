// Package entry provides the shared in-memory rate limit table keyed by
// (user, operation). The guard owns this table exclusively; the admission
// check mutates it synchronously and the sweeper is the only component
// performing unsolicited deletion.
package entry

import (
	"context"
	"fmt"
	"sync"

	"aegis/internal/guard/models"
)

func key(userID string, operation models.OperationKind) string {
	return fmt.Sprintf("%s:%s", userID, operation)
}

type InMemoryEntryStore struct {
	mu      sync.RWMutex
	entries map[string]*models.RateLimitEntry
}

func New() *InMemoryEntryStore {
	return &InMemoryEntryStore{
		entries: make(map[string]*models.RateLimitEntry),
	}
}

// Get returns a copy of the entry for (userID, operation), or nil if absent.
// Returning a copy keeps callers from mutating the table in place; mutation
// goes through Update.
func (s *InMemoryEntryStore) Get(_ context.Context, userID string, operation models.OperationKind) (*models.RateLimitEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, exists := s.entries[key(userID, operation)]; exists {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

// Put inserts or replaces the entry for its (user, operation) key.
func (s *InMemoryEntryStore) Put(_ context.Context, e *models.RateLimitEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	s.entries[key(e.UserID, e.Operation)] = &cp
	return nil
}

// Update applies fn to the entry for (userID, operation) while holding the
// write lock, so a read-modify-write cycle cannot interleave with another
// caller on the same key. fn receives a copy of the current entry (nil when
// absent); a non-nil result replaces the entry, a nil result removes it.
// An error from fn aborts without writing.
func (s *InMemoryEntryStore) Update(_ context.Context, userID string, operation models.OperationKind, fn func(*models.RateLimitEntry) (*models.RateLimitEntry, error)) (*models.RateLimitEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(userID, operation)
	var cur *models.RateLimitEntry
	if e, exists := s.entries[k]; exists {
		cp := *e
		cur = &cp
	}

	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if next == nil {
		delete(s.entries, k)
		return nil, nil
	}
	stored := *next
	s.entries[k] = &stored
	out := stored
	return &out, nil
}

// Delete removes the entry for (userID, operation). Missing entries are a no-op.
func (s *InMemoryEntryStore) Delete(_ context.Context, userID string, operation models.OperationKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key(userID, operation))
	return nil
}

// ListByUser returns copies of all entries belonging to userID.
func (s *InMemoryEntryStore) ListByUser(_ context.Context, userID string) ([]*models.RateLimitEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.RateLimitEntry
	for _, e := range s.entries {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// DeleteWhere removes every entry matching the predicate and returns the
// number removed. The write lock is held for the whole scan so the sweeper
// cannot race a concurrent admission check.
func (s *InMemoryEntryStore) DeleteWhere(_ context.Context, match func(*models.RateLimitEntry) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, e := range s.entries {
		if match(e) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Len reports the current number of entries.
func (s *InMemoryEntryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear drops all entries. Used on guard shutdown to release memory.
func (s *InMemoryEntryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*models.RateLimitEntry)
	return nil
}
