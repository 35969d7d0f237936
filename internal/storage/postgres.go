package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coastle/coastle/internal/types"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

const alertsSchema = `
CREATE TABLE IF NOT EXISTS alerts (
	id           UUID PRIMARY KEY,
	area         TEXT NOT NULL,
	center_lat   DOUBLE PRECISION NOT NULL,
	center_lng   DOUBLE PRECISION NOT NULL,
	kind         TEXT NOT NULL,
	severity     TEXT NOT NULL,
	ts           TIMESTAMPTZ NOT NULL,
	summary      TEXT NOT NULL,
	details      JSONB,
	acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS alerts_active_idx ON alerts (acknowledged, ts DESC);
CREATE INDEX IF NOT EXISTS alerts_area_idx ON alerts (area, ts DESC);
`

const alertColumns = `id, area, center_lat, center_lng, kind, severity, ts, summary, details, acknowledged, created_at`

// PostgresStore persists alerts in a PostgreSQL table
type PostgresStore struct {
	db     *sql.DB
	root   zerolog.Logger
	logger zerolog.Logger
	now    func() time.Time
}

// PostgresOptions configures the connection pool
type PostgresOptions struct {
	DSN      string
	MaxConns int
	MaxIdle  int
}

// OpenPostgres connects, pings and ensures the alerts table exists
func OpenPostgres(ctx context.Context, opts PostgresOptions, logger zerolog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.MaxConns > 0 {
		db.SetMaxOpenConns(opts.MaxConns)
	}
	if opts.MaxIdle > 0 {
		db.SetMaxIdleConns(opts.MaxIdle)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewPostgresStore(db, logger)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStore wraps an existing connection
func NewPostgresStore(db *sql.DB, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		root:   logger,
		logger: logger.With().Str("component", "postgres-store").Logger(),
		now:    time.Now,
	}
}

// Migrate creates the alerts and readings tables and their indexes
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, alertsSchema); err != nil {
		return fmt.Errorf("creating alerts table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, readingsSchema); err != nil {
		return fmt.Errorf("creating readings table: %w", err)
	}
	return nil
}

// Readings returns a reading store sharing this connection pool
func (s *PostgresStore) Readings() *PostgresReadingStore {
	return NewPostgresReadingStore(s.db, s.root)
}

// Save inserts alert and returns the stored row
func (s *PostgresStore) Save(ctx context.Context, alert *types.Alert) (*types.Alert, error) {
	stored := cloneAlert(alert)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now().UTC()
	}

	details, err := json.Marshal(stored.Details)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding details: %v", ErrStorage, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO alerts (`+alertColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		stored.ID,
		stored.Area,
		stored.Center.Lat,
		stored.Center.Lng,
		string(stored.Kind),
		string(stored.Severity),
		stored.Timestamp,
		stored.Summary,
		details,
		stored.Acknowledged,
		stored.CreatedAt,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("alert_id", stored.ID).Msg("Failed to insert alert")
		return nil, fmt.Errorf("%w: insert alert: %v", ErrStorage, err)
	}
	return stored, nil
}

// Find queries alerts matching filter ordered by ts
func (s *PostgresStore) Find(ctx context.Context, filter types.AlertFilter, order types.SortOrder, limit int) ([]*types.Alert, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Area != nil {
		args = append(args, *filter.Area)
		where = append(where, fmt.Sprintf("area = $%d", len(args)))
	}
	if filter.Acknowledged != nil {
		args = append(args, *filter.Acknowledged)
		where = append(where, fmt.Sprintf("acknowledged = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		where = append(where, fmt.Sprintf("ts >= $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString("SELECT " + alertColumns + " FROM alerts")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if order == types.SortOldestFirst {
		b.WriteString(" ORDER BY ts ASC")
	} else {
		b.WriteString(" ORDER BY ts DESC")
	}
	if limit > 0 {
		args = append(args, limit)
		b.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query alerts: %v", ErrStorage, err)
	}
	defer rows.Close()

	var result []*types.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate alerts: %v", ErrStorage, err)
	}
	return result, nil
}

// Get loads one alert by id
func (s *PostgresStore) Get(ctx context.Context, id string) (*types.Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)
	return s.scanOne(row, id)
}

// Acknowledge sets acknowledged and returns the updated row
func (s *PostgresStore) Acknowledge(ctx context.Context, id string) (*types.Alert, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE alerts SET acknowledged = TRUE WHERE id = $1 RETURNING `+alertColumns, id)
	return s.scanOne(row, id)
}

// Delete removes an alert and returns the deleted row
func (s *PostgresStore) Delete(ctx context.Context, id string) (*types.Alert, error) {
	row := s.db.QueryRowContext(ctx, `DELETE FROM alerts WHERE id = $1 RETURNING `+alertColumns, id)
	return s.scanOne(row, id)
}

// Ping checks the connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) scanOne(row *sql.Row, id string) (*types.Alert, error) {
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return a, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row scanner) (*types.Alert, error) {
	var (
		a        types.Alert
		kind     string
		severity string
		details  []byte
	)
	err := row.Scan(
		&a.ID,
		&a.Area,
		&a.Center.Lat,
		&a.Center.Lng,
		&kind,
		&severity,
		&a.Timestamp,
		&a.Summary,
		&details,
		&a.Acknowledged,
		&a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan alert: %v", ErrStorage, err)
	}
	a.Kind = types.Kind(kind)
	a.Severity = types.Severity(severity)
	if len(details) > 0 && string(details) != "null" {
		if err := json.Unmarshal(details, &a.Details); err != nil {
			return nil, fmt.Errorf("%w: decode details: %v", ErrStorage, err)
		}
	}
	return &a, nil
}
