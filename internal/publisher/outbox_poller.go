package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/Chidera001-dev/e-commerce-system/internal/metrics"
	"github.com/Chidera001-dev/e-commerce-system/internal/repository"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// OutboxPoller moves committed outbox events onto the queue. An event is
// marked processed only after the broker acknowledged it, so delivery is at
// least once.
type OutboxPoller struct {
	eventTick time.Duration
	batchSize int
	db        repository.Store
	writer    MessageWriter
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewOutboxPoller(db repository.Store, writer MessageWriter, m *metrics.Metrics, logger *slog.Logger) *OutboxPoller {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxPoller{
		eventTick: time.Second,
		batchSize: 100,
		db:        db,
		writer:    writer,
		metrics:   m,
		logger:    logger.With("component", "outbox_poller"),
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// processUnpublishedEvents claims a batch with SKIP LOCKED, so several API
// replicas can poll the same table without publishing an event twice.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	published := 0
	err := p.db.InTx(ctx, func(q repository.Queries) error {
		events, err := q.GetUnprocessedEvents(ctx, p.batchSize)
		if err != nil {
			return err
		}

		for _, event := range events {
			if err := p.publish(ctx, event); err != nil {
				p.logger.ErrorContext(ctx, "failed to publish event", "event_id", event.EventID, "error", err)
				continue
			}
			if err := q.MarkEventAsProcessed(ctx, event.ID); err != nil {
				// the tx is unusable now; everything in it is re-sent next tick
				return err
			}
			published++
			p.metrics.ObserveOutboxPublished()
		}
		return nil
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to process outbox", "error", err)
		return 0
	}
	return published
}

func (p *OutboxPoller) publish(ctx context.Context, event *domain.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id, keeps an order's events on one partition
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
