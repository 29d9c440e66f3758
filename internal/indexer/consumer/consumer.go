// Package consumer keeps a serving process on the newest index generation by
// reacting to index-complete events published by whichever process built it.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/kafka"
)

// IndexReloader is the part of store.Store the consumer drives.
type IndexReloader interface {
	Root() string
	Generation() uint64
	Reload() (bool, error)
}

// IndexConsumer wraps a Kafka consumer to drive index reloads.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleIndexComplete returns a MessageHandler that reloads st when an event
// announces a newer generation of the same index root. Other event types and
// undecodable messages are dropped.
func HandleIndexComplete(st IndexReloader) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	root := absPath(st.Root())
	return func(ctx context.Context, msg kafka.Message) error {
		if msg.Type != "" && msg.Type != ingestion.EventIndexComplete {
			return nil
		}
		event, err := kafka.DecodeJSON[ingestion.IndexCompleteEvent](msg.Value)
		if err != nil {
			logger.Error("dropping undecodable index-complete event",
				"error", err,
				"offset", msg.Offset,
			)
			return nil
		}
		if absPath(event.IndexRoot) != root {
			logger.Debug("ignoring event for another index root", "index_root", event.IndexRoot)
			return nil
		}
		if event.Generation <= st.Generation() {
			return nil
		}
		switched, err := st.Reload()
		if err != nil {
			return fmt.Errorf("reloading generation %d: %w", event.Generation, err)
		}
		logger.Info("index reloaded",
			"generation", st.Generation(),
			"announced", event.Generation,
			"origin", event.Origin,
			"switched", switched,
		)
		return nil
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
