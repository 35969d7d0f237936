package thresholds

import (
	"sync"

	"github.com/coastle/coastle/internal/types"
)

// Defaults are the limits used until an optimizer run succeeds
func Defaults() types.ThresholdSet {
	return types.ThresholdSet{
		types.HighTide:        2.5,
		types.StormSurge:      3.0,
		types.CoastalFlooding: 3.5,
		types.WindSpeed:       15,
		types.Rainfall:        10,
		types.Turbidity:       25,
	}
}

// Store holds the current threshold set. Writers swap in a new map, so a
// snapshot returned by Get never changes underneath its reader.
type Store struct {
	mu      sync.RWMutex
	current types.ThresholdSet
}

// NewStore creates a store seeded with initial (copied)
func NewStore(initial types.ThresholdSet) *Store {
	return &Store{current: initial.Clone()}
}

// Get returns a copy of the current thresholds
func (s *Store) Get() types.ThresholdSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Replace merges partial over the current values key by key and returns the
// merged set. Magnitudes are not validated.
func (s *Store) Replace(partial types.ThresholdSet) types.ThresholdSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Clone()
	for k, v := range partial {
		next[k] = v
	}
	s.current = next
	return next.Clone()
}
