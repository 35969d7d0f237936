package alerter

import (
	"context"
	"time"

	"github.com/coastle/coastle/internal/storage"
	"github.com/coastle/coastle/internal/types"
	"github.com/rs/zerolog"
)

// Sender delivers alerts in the background
type Sender interface {
	Dispatch(alert *types.Alert)
	DispatchTo(alert *types.Alert, channelNames []string)
	Available(channelNames []string) []string
}

// Engine follows an alert after creation: it routes the first notification,
// starts escalation timers, watches for repeated breaches, and applies the
// acknowledge and delete actions.
type Engine struct {
	store      storage.AlertStore
	sender     Sender
	escalation *EscalationManager
	breaches   *BreachTracker
	logger     zerolog.Logger
}

// EngineOptions configures optional engine behavior. Zero values disable
// the corresponding feature.
type EngineOptions struct {
	Escalation      map[types.Severity]EscalationRule
	BreachThreshold int
	BreachWindow    time.Duration
}

// NewEngine creates a new alert engine
func NewEngine(store storage.AlertStore, sender Sender, opts EngineOptions, logger zerolog.Logger) *Engine {
	e := &Engine{
		store:  store,
		sender: sender,
		logger: logger.With().Str("component", "alert-engine").Logger(),
	}
	if len(opts.Escalation) > 0 {
		e.escalation = NewEscalationManager(logger, opts.Escalation, e.escalate)
	}
	if opts.BreachThreshold > 0 && opts.BreachWindow > 0 {
		e.breaches = NewBreachTracker(logger, opts.BreachThreshold, opts.BreachWindow)
	}
	return e
}

// Dispatch hands a newly created alert to notification and tracking. It never
// blocks on delivery.
func (e *Engine) Dispatch(alert *types.Alert) {
	if e.breaches != nil {
		e.breaches.Record(alert)
	}
	e.sender.Dispatch(alert)
	if e.escalation != nil {
		e.escalation.StartEscalation(alert)
	}
}

// escalate re-sends an alert that is still unacknowledged
func (e *Engine) escalate(alert *types.Alert, channels []string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	current, err := e.store.Get(ctx, alert.ID)
	if err != nil {
		e.logger.Debug().
			Err(err).
			Str("alert_id", alert.ID).
			Msg("Skipping escalation, alert unavailable")
		return false
	}
	if current.Acknowledged {
		return false
	}
	targets := e.sender.Available(channels)
	if len(targets) == 0 {
		e.logger.Warn().
			Str("alert_id", alert.ID).
			Strs("channels", channels).
			Msg("No escalation channel is configured, alert not escalated")
		return false
	}
	e.sender.DispatchTo(current, targets)
	return true
}

// Acknowledge marks an alert acknowledged and stops its escalation
func (e *Engine) Acknowledge(ctx context.Context, id string) (*types.Alert, error) {
	alert, err := e.store.Acknowledge(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.escalation != nil {
		e.escalation.CancelEscalation(id)
	}
	e.logger.Info().
		Str("alert_id", id).
		Str("area", alert.Area).
		Msg("Alert acknowledged")
	return alert, nil
}

// Delete removes an alert and stops its escalation
func (e *Engine) Delete(ctx context.Context, id string) (*types.Alert, error) {
	alert, err := e.store.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.escalation != nil {
		e.escalation.CancelEscalation(id)
	}
	e.logger.Info().
		Str("alert_id", id).
		Msg("Alert deleted")
	return alert, nil
}

// Run prunes breach history every interval until ctx is done
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	if e.breaches == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.breaches.Cleanup()
		}
	}
}

// Stop cancels pending escalations
func (e *Engine) Stop() {
	if e.escalation != nil {
		e.escalation.Stop()
	}
}
