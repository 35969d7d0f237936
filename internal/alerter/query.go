package alerter

import (
	"context"
	"time"

	"github.com/coastle/coastle/internal/storage"
	"github.com/coastle/coastle/internal/types"
)

// DefaultActiveWindow is how far back an unacknowledged alert stays active
const DefaultActiveWindow = 24 * time.Hour

// DefaultRecentLimit caps Recent when the caller gives no limit
const DefaultRecentLimit = 50

// QueryService answers read-side alert queries. "Active" is computed at query
// time from the acknowledged flag and the trailing window.
type QueryService struct {
	store  storage.AlertStore
	window time.Duration
	now    func() time.Time
}

// NewQueryService creates a query service. window <= 0 uses DefaultActiveWindow.
func NewQueryService(store storage.AlertStore, window time.Duration) *QueryService {
	if window <= 0 {
		window = DefaultActiveWindow
	}
	return &QueryService{store: store, window: window, now: time.Now}
}

// ActiveAlertsByArea returns active alerts for area, newest first
func (q *QueryService) ActiveAlertsByArea(ctx context.Context, area string) ([]*types.Alert, error) {
	filter := q.activeFilter()
	filter.Area = &area
	return q.store.Find(ctx, filter, types.SortNewestFirst, 0)
}

// AllActiveAlerts returns every active alert, newest first
func (q *QueryService) AllActiveAlerts(ctx context.Context) ([]*types.Alert, error) {
	return q.store.Find(ctx, q.activeFilter(), types.SortNewestFirst, 0)
}

// Recent returns the newest alerts regardless of state
func (q *QueryService) Recent(ctx context.Context, limit int) ([]*types.Alert, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return q.store.Find(ctx, types.AlertFilter{}, types.SortNewestFirst, limit)
}

func (q *QueryService) activeFilter() types.AlertFilter {
	unacknowledged := false
	since := q.now().Add(-q.window)
	return types.AlertFilter{
		Acknowledged: &unacknowledged,
		Since:        &since,
	}
}
