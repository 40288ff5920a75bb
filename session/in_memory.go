// Package session provides SessionStore implementations.
package session

import (
	"fmt"
	"sync"

	"github.com/hupe1980/rxmesh/core"
)

// InMemoryStore keeps sessions in a mutex-guarded map. It hands back the same
// *core.Session instance on every Get, which keeps the context store
// reference-shared across handoffs for the session's lifetime.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Create registers a new session. An empty id gets a generated one.
func (s *InMemoryStore) Create(id string) (*core.Session, error) {
	if id == "" {
		id = core.NewID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; exists {
		return nil, fmt.Errorf("session %q already exists", id)
	}

	sess := core.NewSession(id)
	s.sessions[id] = sess
	return sess, nil
}

// Get returns the live session instance for id.
func (s *InMemoryStore) Get(id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	return sess, nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Len returns the number of stored sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
