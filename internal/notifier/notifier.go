package notifier

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/coastle/coastle/internal/metrics"
	"github.com/coastle/coastle/internal/types"
	"github.com/rs/zerolog"
)

// DefaultSendTimeout bounds a detached dispatch
const DefaultSendTimeout = 10 * time.Second

// Channel is one external notification route (email relay, chat, topic...)
type Channel interface {
	Name() string
	Send(ctx context.Context, alert *types.Alert) error
}

// Notifier fans an alert out to its channels. Delivery is best effort: channel
// failures are logged and counted, never returned to the caller.
type Notifier struct {
	logger   zerolog.Logger
	channels map[string]Channel
	order    []string
	rules    map[string][]string
	timeout  time.Duration
	wg       sync.WaitGroup
}

// Options configures a Notifier
type Options struct {
	// Rules maps a severity (or "default") to channel names. With no rules
	// every channel receives every alert.
	Rules   map[string][]string
	Timeout time.Duration
}

// NewNotifier creates a notifier over channels
func NewNotifier(logger zerolog.Logger, channels []Channel, opts Options) *Notifier {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSendTimeout
	}
	n := &Notifier{
		logger:   logger.With().Str("component", "notifier").Logger(),
		channels: make(map[string]Channel, len(channels)),
		rules:    opts.Rules,
		timeout:  opts.Timeout,
	}
	for _, ch := range channels {
		n.channels[ch.Name()] = ch
		n.order = append(n.order, ch.Name())
	}
	return n
}

// ChannelsFor returns the channel names an alert of the given severity is
// routed to
func (n *Notifier) ChannelsFor(severity types.Severity) []string {
	if len(n.rules) == 0 {
		return append([]string(nil), n.order...)
	}
	if names, ok := n.rules[string(severity)]; ok {
		return names
	}
	if names, ok := n.rules["default"]; ok {
		return names
	}
	return []string{}
}

// Available returns the names that refer to configured channels, in order
func (n *Notifier) Available(channelNames []string) []string {
	out := make([]string, 0, len(channelNames))
	for _, name := range channelNames {
		if _, ok := n.channels[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Dispatch sends alert on its routed channels in the background. The outcome
// is deliberately discarded; see Notify.
func (n *Notifier) Dispatch(alert *types.Alert) {
	n.DispatchTo(alert, n.ChannelsFor(alert.Severity))
}

// DispatchTo sends alert on the named channels in the background
func (n *Notifier) DispatchTo(alert *types.Alert, channelNames []string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		n.SendTo(ctx, alert, channelNames)
	}()
}

// Notify sends alert on its routed channels and waits for completion
func (n *Notifier) Notify(ctx context.Context, alert *types.Alert) {
	n.SendTo(ctx, alert, n.ChannelsFor(alert.Severity))
}

// SendTo sends alert to each named channel, continuing past failures. It
// returns the number of channels that accepted the alert.
func (n *Notifier) SendTo(ctx context.Context, alert *types.Alert, channelNames []string) int {
	delivered := 0
	for _, name := range channelNames {
		ch, ok := n.channels[name]
		if !ok {
			n.logger.Warn().
				Str("channel", name).
				Msg("Channel not configured, skipping")
			continue
		}

		if err := n.sendSafely(ctx, ch, alert); err != nil {
			metrics.NotificationsTotal.WithLabelValues(name, "failed").Inc()
			n.logger.Error().
				Err(err).
				Str("channel", name).
				Str("alert_id", alert.ID).
				Msg("Failed to send notification")
			continue
		}

		delivered++
		metrics.NotificationsTotal.WithLabelValues(name, "sent").Inc()
		n.logger.Info().
			Str("channel", name).
			Str("alert_id", alert.ID).
			Msg("Notification sent")
	}
	return delivered
}

// sendSafely turns a panicking channel into an error
func (n *Notifier) sendSafely(ctx context.Context, ch Channel, alert *types.Alert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues("notifier").Inc()
			n.logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Str("channel", ch.Name()).
				Msg("Notification channel panic recovered")
			err = fmt.Errorf("channel %s panicked: %v", ch.Name(), r)
		}
	}()
	return ch.Send(ctx, alert)
}

// Wait blocks until background dispatches have finished
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Close waits for in-flight dispatches and releases channel resources
func (n *Notifier) Close() error {
	n.wg.Wait()
	var firstErr error
	for _, name := range n.order {
		closer, ok := n.channels[name].(interface{ Close() error })
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing channel %s: %w", name, err)
		}
	}
	return firstErr
}

// formatMessage renders an alert as a plain-text notification
func formatMessage(alert *types.Alert) (title, body string) {
	var marker string
	switch alert.Severity {
	case types.SeverityHigh:
		marker = "🔴"
	case types.SeverityMed:
		marker = "⚠️"
	default:
		marker = "ℹ️"
	}

	title = fmt.Sprintf("%s Coastle Alert: %s", marker, alert.Summary)
	body = fmt.Sprintf("Type: %s\nSeverity: %s\nArea: %s\nLocation: %.4f, %.4f\nTime: %s",
		alert.Kind, alert.Severity, alert.Area, alert.Center.Lat, alert.Center.Lng,
		alert.Timestamp.Format(time.RFC3339))
	return title, body
}
