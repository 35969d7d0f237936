package storage

import (
	"context"
	"testing"
	"time"

	"github.com/coastle/coastle/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newAlert(area string, ts time.Time) *types.Alert {
	return &types.Alert{
		Area:      area,
		Kind:      types.KindSurge,
		Severity:  types.SeverityLow,
		Timestamp: ts,
		Summary:   "High tide level detected at " + area,
		Details:   map[string]interface{}{"tide_m": 2.6},
	}
}

func TestMemoryStore_SaveAssignsIDAndCreatedAt(t *testing.T) {
	s := NewMemoryStore()
	s.now = func() time.Time { return base }
	in := newAlert("Test Pier", base)

	saved, err := s.Save(context.Background(), in)

	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, base, saved.CreatedAt)
	assert.Empty(t, in.ID, "input must not be mutated")

	saved.Details["tide_m"] = 99.0
	got, err := s.Get(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.6, got.Details["tide_m"])
}

func TestMemoryStore_SaveCancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Save(ctx, newAlert("Test Pier", base))

	assert.ErrorIs(t, err, ErrStorage)
}

func TestMemoryStore_FindFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 0; i < 3; i++ {
		_, err := s.Save(ctx, newAlert("Test Pier", base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}
	_, err := s.Save(ctx, newAlert("North Buoy", base.Add(30*time.Minute)))
	require.NoError(t, err)

	all, err := s.Find(ctx, types.AlertFilter{}, types.SortNewestFirst, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, base.Add(2*time.Hour), all[0].Timestamp)

	area := "Test Pier"
	pier, err := s.Find(ctx, types.AlertFilter{Area: &area}, types.SortOldestFirst, 0)
	require.NoError(t, err)
	require.Len(t, pier, 3)
	assert.Equal(t, base, pier[0].Timestamp)

	since := base.Add(time.Hour)
	recent, err := s.Find(ctx, types.AlertFilter{Since: &since}, types.SortNewestFirst, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, base.Add(2*time.Hour), recent[0].Timestamp)
}

func TestMemoryStore_AcknowledgeAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	saved, err := s.Save(ctx, newAlert("Test Pier", base))
	require.NoError(t, err)

	acked, err := s.Acknowledge(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, acked.Acknowledged)

	unacked := false
	active, err := s.Find(ctx, types.AlertFilter{Acknowledged: &unacked}, types.SortNewestFirst, 0)
	require.NoError(t, err)
	assert.Empty(t, active)

	deleted, err := s.Delete(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, deleted.ID)

	_, err = s.Get(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Acknowledge(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Delete(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
