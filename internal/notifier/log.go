package notifier

import (
	"context"

	"github.com/coastle/coastle/internal/types"
	"github.com/rs/zerolog"
)

// LogChannel writes notifications to the log instead of delivering them
type LogChannel struct {
	name   string
	logger zerolog.Logger
}

// NewLogChannel creates a log-only channel
func NewLogChannel(name string, logger zerolog.Logger) *LogChannel {
	return &LogChannel{name: name, logger: logger.With().Str("channel", name).Logger()}
}

// Name returns the configured channel name
func (c *LogChannel) Name() string { return c.name }

// Send logs the alert
func (c *LogChannel) Send(ctx context.Context, alert *types.Alert) error {
	title, _ := formatMessage(alert)
	c.logger.Info().
		Str("alert_id", alert.ID).
		Str("area", alert.Area).
		Str("kind", string(alert.Kind)).
		Str("severity", string(alert.Severity)).
		Str("title", title).
		Msg("Would send notification for alert")
	return nil
}
