// Package store provides the in-memory profile store. Reads return copies
// so callers cannot mutate shared state.
package store

import (
	"context"
	"sync"

	"aegis/internal/profile/models"
	dErrors "aegis/pkg/domain-errors"
)

type InMemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*models.Profile
}

func New() *InMemoryProfileStore {
	return &InMemoryProfileStore{
		profiles: make(map[string]*models.Profile),
	}
}

// Get returns a copy of the profile for userID.
func (s *InMemoryProfileStore) Get(ctx context.Context, userID string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
	}
	cp := *p
	return &cp, nil
}

// Put stores a copy of the profile keyed by its user ID.
func (s *InMemoryProfileStore) Put(ctx context.Context, p *models.Profile) error {
	if p == nil || p.UserID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "profile requires a user id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.profiles[p.UserID] = &cp
	return nil
}

// Delete removes the profile for userID. Deleting an absent profile is an error.
func (s *InMemoryProfileStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[userID]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "profile not found")
	}
	delete(s.profiles, userID)
	return nil
}

// Len reports the number of stored profiles.
func (s *InMemoryProfileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}
