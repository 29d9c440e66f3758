package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
)

// HeaderEventType names the event carried by a message so consumers sharing
// a topic can skip kinds they do not handle.
const HeaderEventType = "event-type"

// Event is one message to publish. Key selects the partition, so events with
// the same key stay ordered. Value is JSON-encoded.
type Event struct {
	Key   string
	Type  string
	Value any
}

// Producer writes events synchronously to a single topic.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewProducer does not dial; the first Publish connects to cfg.Brokers.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			MaxAttempts:            1,
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Publish blocks until the broker acknowledges the event. The writer makes a
// single attempt; callers wrap Publish in their own retry policy.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	msg, err := encode(event, time.Now())
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing %s event: %w", event.Type, err)
	}
	p.logger.Debug("event published", "type", event.Type, "key", event.Key, "bytes", len(msg.Value))
	return nil
}

// Close flushes pending writes and releases the connections.
func (p *Producer) Close() error {
	return p.writer.Close()
}

func encode(event Event, at time.Time) (kafka.Message, error) {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding %s event: %w", event.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(event.Key),
		Value: value,
		Time:  at,
	}
	if event.Type != "" {
		msg.Headers = []kafka.Header{{Key: HeaderEventType, Value: []byte(event.Type)}}
	}
	return msg, nil
}
