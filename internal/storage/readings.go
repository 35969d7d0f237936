package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/coastle/coastle/internal/types"
)

// DefaultReadingCapacity bounds the in-memory reading history
const DefaultReadingCapacity = 10000

// ReadingStore keeps the history of sensor readings for charts. Results are
// newest first; limit <= 0 means no limit.
type ReadingStore interface {
	AddReading(ctx context.Context, reading *types.Reading) error
	RecentReadings(ctx context.Context, limit int) ([]*types.Reading, error)
	StationReadings(ctx context.Context, stationID string, limit int) ([]*types.Reading, error)
}

// ReadingBuffer is an in-memory ReadingStore holding the last capacity readings
type ReadingBuffer struct {
	mu       sync.RWMutex
	buffer   []*types.Reading
	capacity int
}

// NewReadingBuffer creates a buffer. capacity <= 0 uses DefaultReadingCapacity.
func NewReadingBuffer(capacity int) *ReadingBuffer {
	if capacity <= 0 {
		capacity = DefaultReadingCapacity
	}
	return &ReadingBuffer{
		buffer:   make([]*types.Reading, 0, capacity),
		capacity: capacity,
	}
}

// AddReading stores a copy of reading, dropping the oldest when full
func (b *ReadingBuffer) AddReading(ctx context.Context, reading *types.Reading) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	stored := *reading

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buffer) >= b.capacity {
		b.buffer = b.buffer[1:]
	}
	b.buffer = append(b.buffer, &stored)
	return nil
}

// RecentReadings returns the newest readings across all stations
func (b *ReadingBuffer) RecentReadings(ctx context.Context, limit int) ([]*types.Reading, error) {
	return b.find(ctx, func(*types.Reading) bool { return true }, limit)
}

// StationReadings returns the newest readings of one station
func (b *ReadingBuffer) StationReadings(ctx context.Context, stationID string, limit int) ([]*types.Reading, error) {
	return b.find(ctx, func(r *types.Reading) bool { return r.StationID == stationID }, limit)
}

func (b *ReadingBuffer) find(ctx context.Context, match func(*types.Reading) bool, limit int) ([]*types.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	b.mu.RLock()
	result := make([]*types.Reading, 0, len(b.buffer))
	for _, r := range b.buffer {
		if match(r) {
			c := *r
			result = append(result, &c)
		}
	}
	b.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
