package evaluator

import (
	"context"
	"errors"
	"fmt"

	"github.com/coastle/coastle/internal/metrics"
	"github.com/coastle/coastle/internal/storage"
	"github.com/coastle/coastle/internal/types"
	"github.com/rs/zerolog"
)

// ThresholdSource supplies the current threshold snapshot
type ThresholdSource interface {
	Get() types.ThresholdSet
}

// AlertSaver persists a new alert
type AlertSaver interface {
	Save(ctx context.Context, alert *types.Alert) (*types.Alert, error)
}

// Dispatcher hands a created alert to notification. It must not block on
// delivery and has no way to report failure.
type Dispatcher interface {
	Dispatch(alert *types.Alert)
}

// Evaluator checks readings against thresholds and raises alerts
type Evaluator struct {
	thresholds ThresholdSource
	store      AlertSaver
	dispatcher Dispatcher
	rules      []Rule
	logger     zerolog.Logger
}

// NewEvaluator creates an evaluator using DefaultRules
func NewEvaluator(thresholds ThresholdSource, store AlertSaver, dispatcher Dispatcher, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
		store:      store,
		dispatcher: dispatcher,
		rules:      DefaultRules,
		logger:     logger.With().Str("component", "evaluator").Logger(),
	}
}

// WithRules replaces the rule table
func (e *Evaluator) WithRules(rules []Rule) *Evaluator {
	e.rules = rules
	return e
}

// Evaluate applies the rules to one reading. It returns the created alert,
// nil when no rule matched, or an error wrapping storage.ErrStorage when the
// alert could not be persisted (in which case nothing is notified).
func (e *Evaluator) Evaluate(ctx context.Context, station types.Station, reading *types.Reading) (*types.Alert, error) {
	t := e.thresholds.Get()

	rule, ok := e.match(reading.Metrics, t)
	if !ok {
		metrics.EvaluationsTotal.WithLabelValues("no_alert").Inc()
		e.logger.Debug().
			Str("station", station.Name).
			Msg("Reading within thresholds")
		return nil, nil
	}

	summary, details := rule.Describe(station, reading, t)
	alert := &types.Alert{
		Area:      station.Name,
		Center:    station.Point,
		Kind:      rule.Kind,
		Severity:  rule.Classify(reading.Metrics, t),
		Timestamp: reading.Timestamp,
		Summary:   summary,
		Details:   details,
	}

	saved, err := e.store.Save(ctx, alert)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		e.logger.Error().
			Err(err).
			Str("station", station.Name).
			Str("rule", rule.Name).
			Msg("Failed to persist alert")
		if !errors.Is(err, storage.ErrStorage) {
			err = fmt.Errorf("%w: %v", storage.ErrStorage, err)
		}
		return nil, fmt.Errorf("saving %s alert for %s: %w", rule.Kind, station.Name, err)
	}

	metrics.EvaluationsTotal.WithLabelValues("alert").Inc()
	metrics.AlertsCreatedTotal.WithLabelValues(string(saved.Kind), string(saved.Severity)).Inc()
	e.logger.Info().
		Str("alert_id", saved.ID).
		Str("station", station.Name).
		Str("kind", string(saved.Kind)).
		Str("severity", string(saved.Severity)).
		Msg("Alert created")

	e.dispatcher.Dispatch(saved)
	return saved, nil
}

// match returns the first rule that fires
func (e *Evaluator) match(m types.Metrics, t types.ThresholdSet) (Rule, bool) {
	for _, rule := range e.rules {
		if rule.Match(m, t) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Item pairs a station with one of its readings
type Item struct {
	Station types.Station
	Reading *types.Reading
}

// BatchResult is the outcome of one item in a batch
type BatchResult struct {
	Station string       `json:"station"`
	Alert   *types.Alert `json:"alert,omitempty"`
	Err     error        `json:"-"`
}

// EvaluateBatch evaluates items in order. A failed item does not stop the
// batch. Thresholds are read per item, so a concurrent refresh may split the
// batch between old and new values.
func (e *Evaluator) EvaluateBatch(ctx context.Context, items []Item) []BatchResult {
	results := make([]BatchResult, 0, len(items))
	for _, item := range items {
		alert, err := e.Evaluate(ctx, item.Station, item.Reading)
		results = append(results, BatchResult{Station: item.Station.Name, Alert: alert, Err: err})
	}
	return results
}
