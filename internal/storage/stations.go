package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/coastle/coastle/internal/types"
	"github.com/google/uuid"
)

// StationRegistry keeps the known stations so readings can be resolved by
// station ID
type StationRegistry struct {
	mu       sync.RWMutex
	stations map[string]types.Station
}

// NewStationRegistry creates a registry seeded with stations
func NewStationRegistry(stations ...types.Station) *StationRegistry {
	r := &StationRegistry{stations: make(map[string]types.Station)}
	for _, s := range stations {
		r.Put(s)
	}
	return r
}

// Put adds or replaces a station, assigning an ID when missing
func (r *StationRegistry) Put(s types.Station) types.Station {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	r.mu.Lock()
	r.stations[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get returns a station by id
func (r *StationRegistry) Get(id string) (types.Station, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stations[id]
	if !ok {
		return types.Station{}, fmt.Errorf("station %s: %w", id, ErrNotFound)
	}
	return s, nil
}

// List returns all stations sorted by name
func (r *StationRegistry) List() []types.Station {
	r.mu.RLock()
	out := make([]types.Station, 0, len(r.stations))
	for _, s := range r.stations {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Update replaces an existing station. The ID in s is ignored.
func (r *StationRegistry) Update(id string, s types.Station) (types.Station, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stations[id]; !ok {
		return types.Station{}, fmt.Errorf("station %s: %w", id, ErrNotFound)
	}
	s.ID = id
	r.stations[id] = s
	return s, nil
}

// Delete removes a station and returns it
func (r *StationRegistry) Delete(id string) (types.Station, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stations[id]
	if !ok {
		return types.Station{}, fmt.Errorf("station %s: %w", id, ErrNotFound)
	}
	delete(r.stations, id)
	return s, nil
}
