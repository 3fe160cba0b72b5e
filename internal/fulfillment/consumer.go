package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

// Consumer feeds fulfillment tasks to the runner. A message is committed only
// after the runner is done with it; until then it is handed to the runner
// again, and a crash means the group redelivers it.
type Consumer struct {
	reader     MessageReader
	runner     *Runner
	logger     *slog.Logger
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewConsumer(reader MessageReader, runner *Runner, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		reader:     reader,
		runner:     runner,
		logger:     logger.With("component", "fulfillment_consumer"),
		retryDelay: 5 * time.Second,
		sleep:      sleepCtx,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			c.logger.ErrorContext(ctx, "error reading message", "error", err)
			if c.sleep(ctx, c.retryDelay) != nil {
				return
			}
			continue
		}

		for {
			err := c.processMessage(ctx, m)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			c.logger.ErrorContext(ctx, "fulfillment message not completed, will retry",
				"partition", m.Partition, "offset", m.Offset, "error", err)
			if c.sleep(ctx, c.retryDelay) != nil {
				return
			}
		}
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("error closing kafka reader", "error", err)
	}
}

func (c *Consumer) processMessage(ctx context.Context, m kafka.Message) error {
	job := Job{
		ID:      fmt.Sprintf("%s-%d-%d", m.Topic, m.Partition, m.Offset),
		Topic:   m.Topic,
		Key:     string(m.Key),
		Payload: m.Value,
	}

	var task domain.FulfillmentTask
	err := json.Unmarshal(m.Value, &task)
	if err == nil && task.OrderID <= 0 {
		err = errors.New("missing order_id")
	}
	if err != nil {
		err = c.runner.Reject(ctx, job, fmt.Errorf("malformed fulfillment task: %w", err), 0, true)
	} else {
		job.OrderID = task.OrderID
		err = c.runner.Run(ctx, job)
	}
	if err != nil {
		return err
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("commit message: %w", err)
	}
	return nil
}
