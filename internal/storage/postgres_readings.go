package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coastle/coastle/internal/types"
	"github.com/rs/zerolog"
)

const readingsSchema = `
CREATE TABLE IF NOT EXISTS readings (
	id            BIGSERIAL PRIMARY KEY,
	station_id    TEXT NOT NULL,
	ts            TIMESTAMPTZ NOT NULL,
	tide_m        DOUBLE PRECISION,
	wind_mps      DOUBLE PRECISION,
	rain_mm       DOUBLE PRECISION,
	salinity_ppt  DOUBLE PRECISION,
	turbidity_ntu DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS readings_ts_idx ON readings (ts DESC);
CREATE INDEX IF NOT EXISTS readings_station_idx ON readings (station_id, ts DESC);
`

const readingColumns = `station_id, ts, tide_m, wind_mps, rain_mm, salinity_ppt, turbidity_ntu`

// PostgresReadingStore persists readings in the readings table
type PostgresReadingStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewPostgresReadingStore wraps an existing connection. The table is created
// by PostgresStore.Migrate.
func NewPostgresReadingStore(db *sql.DB, logger zerolog.Logger) *PostgresReadingStore {
	return &PostgresReadingStore{
		db:     db,
		logger: logger.With().Str("component", "postgres-readings").Logger(),
	}
}

// AddReading inserts one reading. Absent metrics are stored as NULL.
func (s *PostgresReadingStore) AddReading(ctx context.Context, r *types.Reading) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO readings (`+readingColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.StationID,
		r.Timestamp,
		r.Metrics.TideM,
		r.Metrics.WindMPS,
		r.Metrics.RainMM,
		r.Metrics.SalinityPPT,
		r.Metrics.TurbidityNTU,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("station_id", r.StationID).Msg("Failed to insert reading")
		return fmt.Errorf("%w: insert reading: %v", ErrStorage, err)
	}
	return nil
}

// RecentReadings returns the newest readings across all stations
func (s *PostgresReadingStore) RecentReadings(ctx context.Context, limit int) ([]*types.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings ORDER BY ts DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

// StationReadings returns the newest readings of one station
func (s *PostgresReadingStore) StationReadings(ctx context.Context, stationID string, limit int) ([]*types.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings WHERE station_id = $1 ORDER BY ts DESC`
	args := []interface{}{stationID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

func (s *PostgresReadingStore) query(ctx context.Context, query string, args ...interface{}) ([]*types.Reading, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query readings: %v", ErrStorage, err)
	}
	defer rows.Close()

	result := []*types.Reading{}
	for rows.Next() {
		var r types.Reading
		if err := rows.Scan(
			&r.StationID,
			&r.Timestamp,
			&r.Metrics.TideM,
			&r.Metrics.WindMPS,
			&r.Metrics.RainMM,
			&r.Metrics.SalinityPPT,
			&r.Metrics.TurbidityNTU,
		); err != nil {
			return nil, fmt.Errorf("%w: scan reading: %v", ErrStorage, err)
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate readings: %v", ErrStorage, err)
	}
	return result, nil
}
