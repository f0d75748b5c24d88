package memory

import "sync"

// Store maps session IDs to their Memory.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Memory
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Memory)}
}

// GetOrCreate returns the session's Memory, creating it with maxPairs if it
// does not exist. The bound of an existing session is never changed.
func (s *Store) GetOrCreate(id string, maxPairs int) *Memory {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.sessions[id]; ok {
		return m
	}
	m := New(maxPairs)
	s.sessions[id] = m
	return m
}

func (s *Store) Get(id string) (*Memory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sessions[id]
	return m, ok
}

// Clear empties one session's history. Unknown IDs are ignored.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	m, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		m.Clear()
	}
}

// ClearAll drops every session.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*Memory)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
