package alerter

import (
	"sync"
	"time"

	"github.com/coastle/coastle/internal/types"
	"github.com/rs/zerolog"
)

// BreachTracker counts alerts per area and kind inside a sliding window and
// warns when an area keeps breaching. It only observes; every breach still
// produces its own alert.
type BreachTracker struct {
	log       zerolog.Logger
	threshold int           // alerts within window that count as repeated
	window    time.Duration // sliding window
	now       func() time.Time
	mu        sync.Mutex
	history   map[string][]time.Time // key: area|kind -> alert times
	repeating map[string]bool        // key: area|kind -> currently repeating
}

// NewBreachTracker creates a tracker.
func NewBreachTracker(log zerolog.Logger, threshold int, window time.Duration) *BreachTracker {
	return &BreachTracker{
		log:       log.With().Str("component", "breach-tracker").Logger(),
		threshold: threshold,
		window:    window,
		now:       time.Now,
		history:   make(map[string][]time.Time),
		repeating: make(map[string]bool),
	}
}

func breachKey(area string, kind types.Kind) string {
	return area + "|" + string(kind)
}

// Record registers an alert and returns whether its area and kind are
// repeating. justStarted is true only for the alert that crossed the threshold.
func (b *BreachTracker) Record(alert *types.Alert) (repeating bool, justStarted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := breachKey(alert.Area, alert.Kind)
	now := b.now()
	pruned := b.prune(b.history[key], now)
	pruned = append(pruned, now)
	b.history[key] = pruned

	if len(pruned) < b.threshold {
		delete(b.repeating, key)
		return false, false
	}

	wasRepeating := b.repeating[key]
	b.repeating[key] = true
	if !wasRepeating {
		b.log.Warn().
			Str("area", alert.Area).
			Str("kind", string(alert.Kind)).
			Int("alerts", len(pruned)).
			Dur("window", b.window).
			Msg("repeated breaches detected")
		return true, true
	}
	return true, false
}

// IsRepeating reports whether area and kind are currently marked repeating.
func (b *BreachTracker) IsRepeating(area string, kind types.Kind) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.repeating[breachKey(area, kind)]
}

// Cleanup removes entries older than the window. Call periodically.
func (b *BreachTracker) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for key, timestamps := range b.history {
		pruned := b.prune(timestamps, now)
		if len(pruned) == 0 {
			delete(b.history, key)
			delete(b.repeating, key)
			continue
		}
		b.history[key] = pruned
		if len(pruned) < b.threshold && b.repeating[key] {
			delete(b.repeating, key)
			b.log.Info().Str("key", key).Msg("repeated breaches stopped")
		}
	}
}

func (b *BreachTracker) prune(timestamps []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-b.window)
	pruned := make([]time.Time, 0, len(timestamps)+1)
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	return pruned
}
