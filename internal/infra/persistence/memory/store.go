// Package memory provides an in-memory project store for tests and
// ephemeral sessions.
package memory

import (
	"context"
	"sync"

	"blockcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.ProjectStore = (*Store)(nil)

// Store keeps the last saved document in memory.
type Store struct {
	mu    sync.Mutex
	doc   domain.ProjectDocument
	saved bool
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{}
}

// Save replaces the held document with a deep copy.
func (s *Store) Save(_ context.Context, doc domain.ProjectDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc.Clone()
	s.saved = true
	return nil
}

// Load returns a deep copy of the held document; found is false before the
// first save.
func (s *Store) Load(context.Context) (domain.ProjectDocument, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.saved {
		return domain.ProjectDocument{}, false, nil
	}
	return s.doc.Clone(), true, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
