package alerter

import (
	"context"
	"testing"
	"time"

	"github.com/coastle/coastle/internal/storage"
	"github.com/coastle/coastle/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, store storage.AlertStore, area string, age time.Duration) *types.Alert {
	t.Helper()
	a, err := store.Save(context.Background(), &types.Alert{
		Area:      area,
		Kind:      types.KindSurge,
		Severity:  types.SeverityLow,
		Timestamp: now.Add(-age),
		Summary:   "High tide level detected at " + area,
	})
	require.NoError(t, err)
	return a
}

func TestQueryService_ActiveAlertsByArea(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	q := NewQueryService(store, 0)
	q.now = func() time.Time { return now }

	fresh := seed(t, store, "Test Pier", time.Hour)
	older := seed(t, store, "Test Pier", 23*time.Hour)
	seed(t, store, "Test Pier", 25*time.Hour)
	acked := seed(t, store, "Test Pier", 2*time.Hour)
	seed(t, store, "North Buoy", time.Hour)

	_, err := store.Acknowledge(ctx, acked.ID)
	require.NoError(t, err)

	alerts, err := q.ActiveAlertsByArea(ctx, "Test Pier")
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, fresh.ID, alerts[0].ID)
	assert.Equal(t, older.ID, alerts[1].ID)

	none, err := q.ActiveAlertsByArea(ctx, "Nowhere")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestQueryService_AllActiveAlerts(t *testing.T) {
	store := storage.NewMemoryStore()
	q := NewQueryService(store, 6*time.Hour)
	q.now = func() time.Time { return now }

	seed(t, store, "Test Pier", time.Hour)
	seed(t, store, "North Buoy", 5*time.Hour)
	seed(t, store, "North Buoy", 7*time.Hour)

	alerts, err := q.AllActiveAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "Test Pier", alerts[0].Area)
}

func TestQueryService_Recent(t *testing.T) {
	store := storage.NewMemoryStore()
	q := NewQueryService(store, 0)
	for i := 0; i < 60; i++ {
		seed(t, store, "Test Pier", time.Duration(i)*time.Hour)
	}

	alerts, err := q.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, alerts, DefaultRecentLimit)

	alerts, err = q.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, alerts, 5)
	assert.Equal(t, now, alerts[0].Timestamp)
}

func TestQueryService_WindowBoundaryIsInclusive(t *testing.T) {
	store := storage.NewMemoryStore()
	q := NewQueryService(store, 0)
	q.now = func() time.Time { return now }

	edge := seed(t, store, "Test Pier", DefaultActiveWindow)
	seed(t, store, "Test Pier", DefaultActiveWindow+time.Nanosecond)

	alerts, err := q.ActiveAlertsByArea(context.Background(), "Test Pier")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, edge.ID, alerts[0].ID)
	assert.Equal(t, now.Add(-DefaultActiveWindow), alerts[0].Timestamp)
}
