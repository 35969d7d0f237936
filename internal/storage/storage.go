package storage

import (
	"context"
	"errors"

	"github.com/coastle/coastle/internal/types"
)

var (
	// ErrStorage marks a persistence failure (unavailable backend, rejected write)
	ErrStorage = errors.New("storage error")
	// ErrNotFound is returned when an alert or station does not exist
	ErrNotFound = errors.New("not found")
)

// AlertStore persists alerts
type AlertStore interface {
	Save(ctx context.Context, alert *types.Alert) (*types.Alert, error)
	Find(ctx context.Context, filter types.AlertFilter, sort types.SortOrder, limit int) ([]*types.Alert, error)
	Get(ctx context.Context, id string) (*types.Alert, error)
	Acknowledge(ctx context.Context, id string) (*types.Alert, error)
	Delete(ctx context.Context, id string) (*types.Alert, error)
	Ping(ctx context.Context) error
	Close() error
}
