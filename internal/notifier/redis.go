package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coastle/coastle/internal/types"
	"github.com/go-redis/redis/v8"
)

// RedisStreamChannel appends alerts to a Redis stream for downstream
// consumers (dashboards, SMS gateways)
type RedisStreamChannel struct {
	name   string
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamChannel creates a channel over client. maxLen > 0 caps the
// stream length approximately.
func NewRedisStreamChannel(name string, client *redis.Client, stream string, maxLen int64) *RedisStreamChannel {
	return &RedisStreamChannel{name: name, client: client, stream: stream, maxLen: maxLen}
}

// Name returns the configured channel name
func (c *RedisStreamChannel) Name() string { return c.name }

// Send adds the alert to the stream
func (c *RedisStreamChannel) Send(ctx context.Context, alert *types.Alert) error {
	args, err := streamArgs(c.stream, c.maxLen, alert)
	if err != nil {
		return err
	}
	if err := c.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis XADD %s: %w", c.stream, err)
	}
	return nil
}

// Close closes the redis client
func (c *RedisStreamChannel) Close() error {
	return c.client.Close()
}

func streamArgs(stream string, maxLen int64, alert *types.Alert) (*redis.XAddArgs, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize alert: %w", err)
	}
	return &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: maxLen > 0,
		Values: map[string]interface{}{
			"alert_id":  alert.ID,
			"area":      alert.Area,
			"kind":      string(alert.Kind),
			"severity":  string(alert.Severity),
			"data":      string(data),
			"timestamp": alert.Timestamp.Unix(),
		},
	}, nil
}
