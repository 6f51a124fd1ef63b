// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. Producers serialise events as JSON; consumers hand raw
// values to a MessageHandler and commit once the message is settled.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/resilience"
)

// MessageHandler is a callback invoked for each Kafka message. Errors
// wrapping apperrors.ErrInvalidInput are never retried.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// ConsumerStats counts settled messages.
type ConsumerStats struct {
	Handled int64 `json:"handled"`
	Dropped int64 `json:"dropped"`
}

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler
	retry   resilience.RetryConfig

	handled atomic.Int64
	dropped atomic.Int64
}

// NewConsumer creates a Consumer for topic in the configured group. Only
// messages produced after the group first joins are delivered.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	return newConsumer(r, topic, handler)
}

func newConsumer(r *kafka.Reader, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Retryable: func(err error) bool {
				return !errors.Is(err, apperrors.ErrInvalidInput)
			},
		},
	}
}

// Start enters the consume loop until ctx is cancelled. Every fetched
// message is committed after it is handled or dropped, so a poison message
// cannot stall the partition.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s := c.Stats()
				c.logger.Info("consumer stopping", "reason", ctx.Err(), "handled", s.Handled, "dropped", s.Dropped)
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		if !c.process(ctx, msg) && ctx.Err() != nil {
			// Interrupted mid-retry; leave it for the next group member.
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// process runs the handler with retries and reports whether it succeeded.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	err := resilience.Retry(ctx, "kafka handler", c.retry, func() error {
		return c.handler(ctx, msg.Key, msg.Value)
	})
	if err == nil {
		c.handled.Add(1)
		return true
	}
	c.dropped.Add(1)
	c.logger.Error("dropping message",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
		"error", err,
	)
	return false
}

// Stats returns the message counters since the consumer was created.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{Handled: c.handled.Load(), Dropped: c.dropped.Load()}
}

// DecodeJSON unmarshals a Kafka message value into T. Failures wrap
// apperrors.ErrInvalidInput.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w: %w", apperrors.ErrInvalidInput, err)
	}
	return result, nil
}
