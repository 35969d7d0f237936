package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coastle/coastle/internal/types"
	"github.com/google/uuid"
)

// MemoryStore keeps alerts in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	alerts map[string]*types.Alert
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory alert store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		alerts: make(map[string]*types.Alert),
		now:    time.Now,
	}
}

// Save stores a copy of alert, assigning an ID and creation time when missing
func (s *MemoryStore) Save(ctx context.Context, alert *types.Alert) (*types.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	stored := cloneAlert(alert)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	s.alerts[stored.ID] = stored
	s.mu.Unlock()

	return cloneAlert(stored), nil
}

// Find returns copies of matching alerts ordered by timestamp. limit <= 0
// means no limit.
func (s *MemoryStore) Find(ctx context.Context, filter types.AlertFilter, order types.SortOrder, limit int) ([]*types.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	s.mu.RLock()
	result := make([]*types.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if filter.Matches(a) {
			result = append(result, cloneAlert(a))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		if order == types.SortOldestFirst {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Get returns a single alert
func (s *MemoryStore) Get(ctx context.Context, id string) (*types.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return cloneAlert(a), nil
}

// Acknowledge marks an alert acknowledged and returns the updated copy
func (s *MemoryStore) Acknowledge(ctx context.Context, id string) (*types.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	a.Acknowledged = true
	return cloneAlert(a), nil
}

// Delete removes an alert and returns what was removed
func (s *MemoryStore) Delete(ctx context.Context, id string) (*types.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	delete(s.alerts, id)
	return a, nil
}

// Ping always succeeds for the memory store
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

func cloneAlert(a *types.Alert) *types.Alert {
	c := *a
	if a.Details != nil {
		c.Details = make(map[string]interface{}, len(a.Details))
		for k, v := range a.Details {
			c.Details[k] = v
		}
	}
	return &c
}
