package alerter

import (
	"context"
	"sync"
	"time"

	"github.com/coastle/coastle/internal/metrics"
	"github.com/coastle/coastle/internal/types"
	"github.com/rs/zerolog"
)

// EscalateFunc is called when an alert escalates to additional channels.
// It reports whether the escalation was sent.
type EscalateFunc func(alert *types.Alert, channels []string) bool

// EscalationRule defines when and where to escalate an unacknowledged alert.
type EscalationRule struct {
	Channels []string
	Delay    time.Duration
}

// EscalationManager tracks unacknowledged alerts and escalates them after the
// delay configured for their severity.
type EscalationManager struct {
	log        zerolog.Logger
	rules      map[types.Severity]EscalationRule
	onEscalate EscalateFunc
	mu         sync.Mutex
	timers     map[string]context.CancelFunc // alert ID -> cancel func
	wg         sync.WaitGroup
}

// NewEscalationManager creates a new escalation manager.
func NewEscalationManager(log zerolog.Logger, rules map[types.Severity]EscalationRule, onEscalate EscalateFunc) *EscalationManager {
	return &EscalationManager{
		log:        log.With().Str("component", "escalation").Logger(),
		rules:      rules,
		onEscalate: onEscalate,
		timers:     make(map[string]context.CancelFunc),
	}
}

// StartEscalation begins the escalation timer for a created alert if its
// severity has a rule.
func (m *EscalationManager) StartEscalation(alert *types.Alert) {
	rule, ok := m.rules[alert.Severity]
	if !ok || rule.Delay <= 0 || len(rule.Channels) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cancel, ok := m.timers[alert.ID]; ok {
		cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.timers[alert.ID] = cancel

	m.log.Debug().
		Str("alert_id", alert.ID).
		Dur("delay", rule.Delay).
		Strs("channels", rule.Channels).
		Msg("escalation timer started")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		timer := time.NewTimer(rule.Delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			m.mu.Lock()
			delete(m.timers, alert.ID)
			m.mu.Unlock()

			if m.onEscalate != nil && m.onEscalate(alert, rule.Channels) {
				metrics.EscalationsTotal.Inc()
				m.log.Warn().
					Str("alert_id", alert.ID).
					Str("area", alert.Area).
					Strs("channels", rule.Channels).
					Msg("escalating unacknowledged alert")
			}
		}
	}()
}

// CancelEscalation cancels pending escalation for an acknowledged or deleted alert.
func (m *EscalationManager) CancelEscalation(alertID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cancel, ok := m.timers[alertID]; ok {
		cancel()
		delete(m.timers, alertID)
		m.log.Debug().Str("alert_id", alertID).Msg("escalation cancelled")
	}
}

// Pending returns the number of running escalation timers.
func (m *EscalationManager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Stop cancels all pending escalation timers and waits for them to exit.
func (m *EscalationManager) Stop() {
	m.mu.Lock()
	for id, cancel := range m.timers {
		cancel()
		delete(m.timers, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}
