// Package kafka wraps segmentio/kafka-go for the index-complete fan-out:
// a synchronous JSON producer and a group consumer that hands decoded
// messages to a callback.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/resilience"
)

// Message is a fetched record with its event type lifted out of the headers.
type Message struct {
	Key       []byte
	Type      string
	Value     []byte
	Partition int
	Offset    int64
	Time      time.Time
}

// MessageHandler processes one message. A non-nil error leaves the offset
// uncommitted.
type MessageHandler func(ctx context.Context, msg Message) error

// Consumer reads a topic as part of a consumer group and hands each message
// to a MessageHandler, committing offsets only after the handler succeeds.
type Consumer struct {
	reader  *kafka.Reader
	handler MessageHandler
	backoff resilience.Backoff
	logger  *slog.Logger
}

// NewConsumer joins groupID on topic, starting from the newest offset.
// Processes that must each observe every message pass a group id unique to
// the process.
func NewConsumer(cfg config.KafkaConfig, topic, groupID string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     groupID,
			MinBytes:    1,
			MaxBytes:    1e6,
			StartOffset: kafka.LastOffset,
		}),
		handler: handler,
		backoff: resilience.Backoff{Initial: 200 * time.Millisecond, Max: 10 * time.Second, Multiplier: 2, Jitter: 0.2},
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic, "group", groupID),
	}
}

// Start consumes until ctx is cancelled. Fetch failures back off
// exponentially instead of spinning against an unreachable broker.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	failures := 0
	for {
		km, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			failures++
			delay := c.backoff.Delay(failures)
			c.logger.Error("fetch failed", "error", err, "retry_in", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		failures = 0

		msg := fromKafka(km)
		if err := c.handler(ctx, msg); err != nil {
			c.logger.Error("handler failed",
				"type", msg.Type,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		if err := c.reader.CommitMessages(ctx, km); err != nil {
			c.logger.Error("commit failed", "offset", km.Offset, "error", err)
		}
	}
}

func fromKafka(km kafka.Message) Message {
	msg := Message{
		Key:       km.Key,
		Value:     km.Value,
		Partition: km.Partition,
		Offset:    km.Offset,
		Time:      km.Time,
	}
	for _, h := range km.Headers {
		if h.Key == HeaderEventType {
			msg.Type = string(h.Value)
		}
	}
	return msg
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
