package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/coastle/coastle/internal/types"
	"github.com/go-resty/resty/v2"
)

// AppriseChannel posts notifications to an Apprise API server, which relays
// them to email, SMS or chat targets
type AppriseChannel struct {
	name    string
	apiURL  string
	service string
	client  *resty.Client
}

// NewAppriseChannel creates a channel. apiURL is the Apprise API base URL and
// service the configured notification key or service URL.
func NewAppriseChannel(name, apiURL, service string, timeout time.Duration) *AppriseChannel {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &AppriseChannel{
		name:    name,
		apiURL:  apiURL,
		service: service,
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

// Name returns the configured channel name
func (c *AppriseChannel) Name() string { return c.name }

// Send posts the alert
func (c *AppriseChannel) Send(ctx context.Context, alert *types.Alert) error {
	title, body := formatMessage(alert)
	payload := map[string]string{
		"title":  title,
		"body":   body,
		"type":   appriseType(alert.Severity),
		"format": "text",
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(fmt.Sprintf("%s/notify/%s", c.apiURL, c.service))
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("apprise API error: %d - %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func appriseType(severity types.Severity) string {
	switch severity {
	case types.SeverityHigh:
		return "failure"
	case types.SeverityMed:
		return "warning"
	default:
		return "info"
	}
}
