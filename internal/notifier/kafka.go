package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coastle/coastle/internal/types"
	"github.com/segmentio/kafka-go"
)

// KafkaChannel publishes alerts as JSON to a topic, keyed by area so all
// alerts for one station land on the same partition
type KafkaChannel struct {
	name   string
	writer *kafka.Writer
}

// NewKafkaChannel creates a channel writing to topic on brokers
func NewKafkaChannel(name string, brokers []string, topic string, writeTimeout time.Duration) (*KafkaChannel, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultSendTimeout
	}
	return &KafkaChannel{
		name: name,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			WriteTimeout: writeTimeout,
			RequiredAcks: kafka.RequireOne,
		},
	}, nil
}

// Name returns the configured channel name
func (c *KafkaChannel) Name() string { return c.name }

// Send publishes the alert
func (c *KafkaChannel) Send(ctx context.Context, alert *types.Alert) error {
	msg, err := kafkaMessage(alert)
	if err != nil {
		return err
	}
	if err := c.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}

// Close flushes and closes the writer
func (c *KafkaChannel) Close() error {
	return c.writer.Close()
}

func kafkaMessage(alert *types.Alert) (kafka.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to serialize alert: %w", err)
	}
	return kafka.Message{
		Key:   []byte(alert.Area),
		Value: data,
		Time:  alert.Timestamp,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(alert.Kind)},
			{Key: "severity", Value: []byte(alert.Severity)},
		},
	}, nil
}
