// Package globals holds the canonical storage for script-level globals.
// Compiled bodies keep private copies in frame slots and write them back
// here at synchronization points.
package globals

import (
	"sync"

	"zam/internal/tree"
	"zam/internal/val"
)

// Store maps global identifiers to their current values. It is safe for
// concurrent use.
type Store struct {
	mu     sync.RWMutex
	vals   map[*tree.ID]val.Value
	writes map[*tree.ID]int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		vals:   make(map[*tree.ID]val.Value),
		writes: make(map[*tree.ID]int),
	}
}

// Load returns a new reference to the value of id, or void if unset.
func (s *Store) Load(id *tree.ID) val.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return val.Retain(s.vals[id])
}

// Store replaces the value of id, consuming the caller's reference.
func (s *Store) Store(id *tree.ID, v val.Value) {
	s.mu.Lock()
	old := s.vals[id]
	s.vals[id] = v
	s.writes[id]++
	s.mu.Unlock()
	val.Release(old)
}

// Writes returns how many times id has been stored.
func (s *Store) Writes(id *tree.ID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes[id]
}

// Reset releases every value.
func (s *Store) Reset() {
	s.mu.Lock()
	vals := s.vals
	s.vals = make(map[*tree.ID]val.Value)
	s.writes = make(map[*tree.ID]int)
	s.mu.Unlock()
	for _, v := range vals {
		val.Release(v)
	}
}
