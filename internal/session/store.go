package session

import (
	"sync"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a session's conversation history.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Store keeps per-session conversation history in memory.
//
// Session identifiers are opaque caller-supplied strings. An entry is
// created on first reference and lives until Evict; nothing expires on
// its own. Each entry carries its own mutex so unrelated sessions never
// contend (the outer lock only guards the map itself).
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	mu        sync.Mutex
	turns     []Turn
	createdAt time.Time
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*entry)}
}

// Append adds a turn to the session's history, creating the session if
// it does not exist yet.
func (s *Store) Append(sessionID string, role Role, text string) {
	e := s.entryFor(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.turns = append(e.turns, Turn{Role: role, Text: text, At: time.Now().UTC()})
}

// History returns a copy of the session's turns in append order. An
// unknown session yields an empty history, not an error.
func (s *Store) History(sessionID string) []Turn {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Turn, len(e.turns))
	copy(out, e.turns)
	return out
}

// Len reports the number of turns stored for the session.
func (s *Store) Len(sessionID string) int {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.turns)
}

// Clear empties the session's history. Clearing an absent session is a
// no-op.
func (s *Store) Clear(sessionID string) {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.turns = nil
}

// Evict removes the session entirely. Evicting an absent session is a
// no-op.
func (s *Store) Evict(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Count reports how many sessions currently exist.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) entryFor(sessionID string) *entry {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[sessionID]; ok {
		return e
	}
	e = &entry{createdAt: time.Now().UTC()}
	s.sessions[sessionID] = e
	return e
}
