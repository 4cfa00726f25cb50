// Package mock provides an in-memory test double for the store.Store
// interface.
package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sondelabs/sonde/internal/store"
)

// Store records saved interviews in memory. Safe for concurrent use.
type Store struct {
	mu sync.Mutex

	// SaveErr, when non-nil, is returned by every Save call.
	SaveErr error

	// Saved holds every interview passed to Save, in call order, with the
	// assigned id filled in.
	Saved []store.Interview
}

// Compile-time check that *Store satisfies [store.Store].
var _ store.Store = (*Store)(nil)

// Save implements store.Store.
func (s *Store) Save(_ context.Context, iv store.Interview) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return "", s.SaveErr
	}
	if iv.ID == "" {
		iv.ID = uuid.NewString()
	}
	s.Saved = append(s.Saved, iv)
	return iv.ID, nil
}

// Get implements store.Store.
func (s *Store) Get(_ context.Context, id string) (*store.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Saved {
		if s.Saved[i].ID == id {
			iv := s.Saved[i]
			return &iv, nil
		}
	}
	return nil, store.ErrNotFound
}
