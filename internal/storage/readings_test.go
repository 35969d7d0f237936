package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/coastle/coastle/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var readingCols = []string{"station_id", "ts", "tide_m", "wind_mps", "rain_mm", "salinity_ppt", "turbidity_ntu"}

func tideReading(station string, ts time.Time, tide float64) *types.Reading {
	return &types.Reading{StationID: station, Timestamp: ts, Metrics: types.Metrics{TideM: types.Float(tide)}}
}

func TestReadingBuffer_NewestFirstWithLimits(t *testing.T) {
	ctx := context.Background()
	b := NewReadingBuffer(0)
	for i := 0; i < 5; i++ {
		require.NoError(t, b.AddReading(ctx, tideReading("test-pier", base.Add(time.Duration(i)*time.Minute), 1+float64(i))))
	}
	require.NoError(t, b.AddReading(ctx, tideReading("north-buoy", base.Add(90*time.Second), 0.5)))

	recent, err := b.RecentReadings(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, base.Add(4*time.Minute), recent[0].Timestamp)
	assert.Equal(t, base.Add(2*time.Minute), recent[2].Timestamp)

	pier, err := b.StationReadings(ctx, "test-pier", 0)
	require.NoError(t, err)
	require.Len(t, pier, 5)
	assert.Equal(t, 5.0, *pier[0].Metrics.TideM)

	buoy, err := b.StationReadings(ctx, "north-buoy", 100)
	require.NoError(t, err)
	require.Len(t, buoy, 1)
	assert.Nil(t, buoy[0].Metrics.WindMPS)
}

func TestReadingBuffer_DropsOldest(t *testing.T) {
	ctx := context.Background()
	b := NewReadingBuffer(2)
	for i := 0; i < 3; i++ {
		require.NoError(t, b.AddReading(ctx, tideReading("test-pier", base.Add(time.Duration(i)*time.Minute), float64(i))))
	}

	all, err := b.RecentReadings(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, base.Add(time.Minute), all[1].Timestamp)
}

func TestReadingBuffer_CopiesInput(t *testing.T) {
	ctx := context.Background()
	b := NewReadingBuffer(10)
	r := tideReading("test-pier", base, 2.6)
	require.NoError(t, b.AddReading(ctx, r))
	r.StationID = "changed"

	got, err := b.StationReadings(ctx, "test-pier", 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func newMockReadingStore(t *testing.T) (*PostgresReadingStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresReadingStore(db, zerolog.Nop()), mock
}

func TestPostgresReadingStore_AddReading(t *testing.T) {
	store, mock := newMockReadingStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO readings (" + readingColumns + ")")).
		WithArgs("test-pier", base, 2.6, nil, nil, nil, 12.0).
		WillReturnResult(sqlmock.NewResult(1, 1))

	r := tideReading("test-pier", base, 2.6)
	r.Metrics.TurbidityNTU = types.Float(12)
	require.NoError(t, store.AddReading(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReadingStore_AddReadingFailure(t *testing.T) {
	store, mock := newMockReadingStore(t)
	mock.ExpectExec("INSERT INTO readings").WillReturnError(errors.New("disk full"))

	err := store.AddReading(context.Background(), tideReading("test-pier", base, 2.6))

	assert.ErrorIs(t, err, ErrStorage)
}

func TestPostgresReadingStore_RecentReadings(t *testing.T) {
	store, mock := newMockReadingStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM readings ORDER BY ts DESC LIMIT $1")).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows(readingCols).
			AddRow("test-pier", base, 2.6, nil, nil, nil, nil).
			AddRow("north-buoy", base.Add(-time.Minute), nil, 18.0, 12.0, nil, nil))

	readings, err := store.RecentReadings(context.Background(), 50)

	require.NoError(t, err)
	require.Len(t, readings, 2)
	require.NotNil(t, readings[0].Metrics.TideM)
	assert.Equal(t, 2.6, *readings[0].Metrics.TideM)
	assert.Nil(t, readings[0].Metrics.WindMPS)
	assert.Nil(t, readings[1].Metrics.TideM)
	assert.Equal(t, 18.0, *readings[1].Metrics.WindMPS)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReadingStore_StationReadings(t *testing.T) {
	store, mock := newMockReadingStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM readings WHERE station_id = $1 ORDER BY ts DESC LIMIT $2")).
		WithArgs("test-pier", 100).
		WillReturnRows(sqlmock.NewRows(readingCols))

	readings, err := store.StationReadings(context.Background(), "test-pier", 100)

	require.NoError(t, err)
	assert.NotNil(t, readings)
	assert.Empty(t, readings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReadingStore_QueryError(t *testing.T) {
	store, mock := newMockReadingStore(t)
	mock.ExpectQuery("FROM readings").WillReturnError(errors.New("timeout"))

	_, err := store.StationReadings(context.Background(), "test-pier", 0)

	assert.ErrorIs(t, err, ErrStorage)
}
