// Package events announces completed index builds over Kafka so running
// searchers can reload without a restart.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/resilience"
)

// IndexBuilt is published once per successful build.
type IndexBuilt struct {
	BuildID     string    `json:"build_id"`
	Documents   int       `json:"documents"`
	Shards      int       `json:"shards"`
	IndexSizeKB int64     `json:"index_size_kb"`
	DataDir     string    `json:"data_dir"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewIndexBuilt stamps an event with a fresh build id.
func NewIndexBuilt(documents, shards int, sizeKB int64, dataDir string) IndexBuilt {
	return IndexBuilt{
		BuildID:     uuid.NewString(),
		Documents:   documents,
		Shards:      shards,
		IndexSizeKB: sizeKB,
		DataDir:     dataDir,
		CompletedAt: time.Now().UTC(),
	}
}

// Publish sends ev, giving up after timeout.
func Publish(ctx context.Context, pub kafka.Publisher, ev IndexBuilt, timeout time.Duration) error {
	err := resilience.WithTimeout(ctx, timeout, "publish-index-built", func(ctx context.Context) error {
		return pub.Publish(ctx, kafka.Event{Key: ev.BuildID, Value: ev})
	})
	if err != nil {
		return fmt.Errorf("publishing index built event: %w", err)
	}
	slog.Default().With("component", "index-events").Info("index built event published",
		"build_id", ev.BuildID,
		"documents", ev.Documents,
	)
	return nil
}

// Handler decodes IndexBuilt messages and passes them to fn. Undecodable
// messages are logged and skipped so they do not block the partition.
func Handler(fn func(ctx context.Context, ev IndexBuilt) error) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-events")
	return func(ctx context.Context, key []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[IndexBuilt](value)
		if err != nil {
			logger.Error("failed to decode index built event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		logger.Info("index built event received", "build_id", ev.BuildID, "documents", ev.Documents)
		if err := fn(ctx, ev); err != nil {
			return fmt.Errorf("handling build %s: %w", ev.BuildID, err)
		}
		return nil
	}
}

// Listener runs a Kafka consumer for index built events.
type Listener struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func NewListener(consumer *kafka.Consumer) *Listener {
	return &Listener{
		consumer: consumer,
		logger:   slog.Default().With("component", "index-events"),
	}
}

// Start blocks until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	l.logger.Info("index event listener starting")
	return l.consumer.Start(ctx)
}
