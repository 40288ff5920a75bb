package core

import (
	"sync"
	"time"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	// StatusActive marks a session that accepts user messages.
	StatusActive SessionStatus = "active"
	// StatusHandoffInProgress marks a session mid-transfer between agents.
	StatusHandoffInProgress SessionStatus = "handoff_in_progress"
	// StatusClosed marks a session that no longer accepts operations.
	StatusClosed SessionStatus = "closed"
)

// Session is one conversation: an append-only thread of turns, a context
// store shared by every agent that touches the conversation, the active
// agent pointer and the lifecycle state. It is safe for concurrent access,
// though the coordinator serializes all writes (single logical owner).
//
// Contract:
//   - State (the context store) accumulates monotonically; handoffs never
//     reset or copy it — agents share it by reference through the session
//   - Thread returns a defensive copy so callers cannot mutate history
//   - Only the coordinator mutates ActiveAgent, and only via a validated
//     handoff request
type Session struct {
	ID          string         `json:"id"`
	Status      SessionStatus  `json:"status"`
	ActiveAgent string         `json:"active_agent"`
	State       map[string]any `json:"state"`
	Turns       []Turn         `json:"turns"`
	Created     time.Time      `json:"created"`
	Updated     time.Time      `json:"updated"`

	mu sync.RWMutex
}

// NewSession creates an active session with an empty thread and context store.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:      id,
		Status:  StatusActive,
		State:   map[string]any{},
		Turns:   []Turn{},
		Created: now,
		Updated: now,
	}
}

// GetState returns the value and existence flag for a context-store key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.State[key]
	return v, ok
}

// SetState stores a key/value pair in the context store.
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State[key] = value
	s.Updated = time.Now().UTC()
}

// ApplyStateDelta merges the provided pairs into the context store.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	if len(delta) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range delta {
		s.State[k] = v
	}
	s.Updated = time.Now().UTC()
}

// StateSnapshot returns a shallow copy of the context store.
func (s *Session) StateSnapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[string]any, len(s.State))
	for k, v := range s.State {
		snap[k] = v
	}
	return snap
}

// AppendTurn adds a turn to the thread.
func (s *Session) AppendTurn(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Turns = append(s.Turns, t)
	s.Updated = time.Now().UTC()
}

// Thread returns a defensive copy of the full turn sequence.
func (s *Session) Thread() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]Turn, len(s.Turns))
	copy(turns, s.Turns)
	return turns
}

// Len returns the number of turns in the thread.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Turns)
}

// GetStatus returns the current lifecycle state.
func (s *Session) GetStatus() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// SetStatus updates the lifecycle state.
func (s *Session) SetStatus(st SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = st
	s.Updated = time.Now().UTC()
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool { return s.GetStatus() == StatusClosed }

// GetActiveAgent returns the name of the agent currently owning the session.
func (s *Session) GetActiveAgent() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ActiveAgent
}

// SetActiveAgent updates the active-agent pointer. Only the coordinator
// calls this, and only after handoff validation.
func (s *Session) SetActiveAgent(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ActiveAgent = name
	s.Updated = time.Now().UTC()
}

// Handoffs returns all handoff events recorded in the thread, in order.
func (s *Session) Handoffs() []HandoffEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var events []HandoffEvent
	for _, t := range s.Turns {
		if t.Kind == TurnHandoff && t.Handoff != nil {
			events = append(events, *t.Handoff)
		}
	}
	return events
}

// SessionStore persists sessions. Implementations must hand back the same
// session instance on every Get so the context store stays reference-shared
// for the session's lifetime.
type SessionStore interface {
	Create(id string) (*Session, error)
	Get(id string) (*Session, error)
	Delete(id string) error
}
