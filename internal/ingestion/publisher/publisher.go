// Package publisher announces committed index generations on Kafka. Publishing
// is retried with backoff and guarded by a circuit breaker so an unavailable
// broker never blocks uploads for long.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/resilience"
)

// EventProducer is the subset of kafka.Producer the publisher needs.
type EventProducer interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type Publisher struct {
	producer  EventProducer
	indexRoot string
	origin    string
	breaker   *resilience.CircuitBreaker
	retry     resilience.RetryConfig
	logger    *slog.Logger
}

func New(producer EventProducer, indexRoot string) *Publisher {
	return &Publisher{
		producer:  producer,
		indexRoot: indexRoot,
		origin:    origin(),
		breaker: resilience.NewCircuitBreaker("kafka-index-complete", resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     30 * time.Second,
		}),
		retry: resilience.RetryConfig{
			MaxAttempts: 3,
			Backoff:     resilience.Backoff{Initial: 100 * time.Millisecond, Max: time.Second},
		},
		logger: slog.Default().With("component", "publisher"),
	}
}

// NotifyIndexComplete publishes an IndexCompleteEvent keyed by index root.
func (p *Publisher) NotifyIndexComplete(ctx context.Context, stats indexer.BuildStats) error {
	event := kafka.Event{
		Key:  p.indexRoot,
		Type: ingestion.EventIndexComplete,
		Value: ingestion.IndexCompleteEvent{
			IndexRoot:   p.indexRoot,
			Generation:  stats.Generation,
			Documents:   stats.Documents,
			Units:       stats.Units,
			Origin:      p.origin,
			CompletedAt: time.Now().UTC(),
		},
	}
	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Retry(ctx, "publish-index-complete", p.retry, func(ctx context.Context) error {
			return p.producer.Publish(ctx, event)
		})
	})
	if err != nil {
		return fmt.Errorf("publishing index-complete for generation %d: %w", stats.Generation, err)
	}
	p.logger.Info("index-complete published", "generation", stats.Generation)
	return nil
}

func origin() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s/%d", host, os.Getpid())
}
