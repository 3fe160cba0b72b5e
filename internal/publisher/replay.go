package publisher

import (
	"context"
	"fmt"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/segmentio/kafka-go"
)

type DeadLetterStore interface {
	Get(ctx context.Context, id string) (*domain.DeadLetter, error)
	MarkReplayed(ctx context.Context, id string) error
}

// Replay puts a dead-lettered task back on the queue unchanged. The worker's
// fulfilled marker makes replaying an already completed task harmless.
func Replay(ctx context.Context, store DeadLetterStore, writer MessageWriter, id string) (*domain.DeadLetter, error) {
	dl, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	msg := kafka.Message{
		Key:   []byte(dl.Key),
		Value: dl.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(domain.EventTypeFulfillmentRequested)},
			{Key: "replay_of", Value: []byte(dl.ID)},
		},
	}
	if err := writer.WriteMessages(ctx, msg); err != nil {
		return nil, fmt.Errorf("republish %s: %w", id, err)
	}
	if err := store.MarkReplayed(ctx, id); err != nil {
		return nil, err
	}
	return dl, nil
}
