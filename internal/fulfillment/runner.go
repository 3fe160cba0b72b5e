package fulfillment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/Chidera001-dev/e-commerce-system/internal/metrics"
)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type Processor interface {
	Process(ctx context.Context, orderID int64) error
}

type DeadLetterSink interface {
	Save(ctx context.Context, dl *domain.DeadLetter) error
}

// Job is one delivery of a fulfillment task.
type Job struct {
	ID      string
	Topic   string
	Key     string
	Payload []byte
	OrderID int64
}

type Settings struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultSettings() Settings {
	return Settings{MaxAttempts: 3, BaseDelay: 10 * time.Second, MaxDelay: 5 * time.Minute}
}

// Runner drives a Processor with bounded exponential backoff and hands
// whatever it cannot finish to the dead-letter sink.
type Runner struct {
	settings  Settings
	processor Processor
	dead      DeadLetterSink
	metrics   *metrics.Metrics
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewRunner(s Settings, p Processor, dead DeadLetterSink, m *metrics.Metrics, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultSettings()
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = def.MaxAttempts
	}
	if s.BaseDelay <= 0 {
		s.BaseDelay = def.BaseDelay
	}
	if s.MaxDelay < s.BaseDelay {
		s.MaxDelay = def.MaxDelay
	}
	return &Runner{
		settings:  s,
		processor: p,
		dead:      dead,
		metrics:   m,
		logger:    logger.With("component", "fulfillment_runner"),
		sleep:     sleepCtx,
	}
}

// Run returns nil once the job is either done or dead-lettered, meaning the
// message may be committed. An error means the job must be delivered again.
func (r *Runner) Run(ctx context.Context, job Job) error {
	var lastErr error
	for attempt := 1; attempt <= r.settings.MaxAttempts; attempt++ {
		err := r.processor.Process(ctx, job.OrderID)
		if err == nil {
			r.metrics.ObserveFulfillmentAttempt("success")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if IsPermanent(err) {
			r.metrics.ObserveFulfillmentAttempt("permanent")
			return r.Reject(ctx, job, err, attempt, true)
		}

		lastErr = err
		r.metrics.ObserveFulfillmentAttempt("retry")
		r.logger.WarnContext(ctx, "fulfillment attempt failed",
			"order_id", job.OrderID, "attempt", attempt, "max_attempts", r.settings.MaxAttempts, "error", err)

		if attempt < r.settings.MaxAttempts {
			if err := r.sleep(ctx, r.backoff(attempt)); err != nil {
				return err
			}
		}
	}
	return r.Reject(ctx, job, lastErr, r.settings.MaxAttempts, false)
}

// Reject dead-letters job without running it.
func (r *Runner) Reject(ctx context.Context, job Job, cause error, attempts int, permanent bool) error {
	dl := &domain.DeadLetter{
		ID:        job.ID,
		Topic:     job.Topic,
		Key:       job.Key,
		Payload:   job.Payload,
		OrderID:   job.OrderID,
		Attempts:  attempts,
		LastError: cause.Error(),
		Permanent: permanent,
		FailedAt:  time.Now().UTC(),
	}
	if err := r.dead.Save(ctx, dl); err != nil {
		r.logger.ErrorContext(ctx, "failed to dead-letter fulfillment task", "order_id", job.OrderID, "error", err)
		return err
	}

	r.metrics.ObserveDeadLetter()
	r.logger.ErrorContext(ctx, "fulfillment task dead-lettered",
		"order_id", job.OrderID, "dead_letter_id", dl.ID, "attempts", attempts, "permanent", permanent, "error", cause)
	return nil
}

func (r *Runner) backoff(attempt int) time.Duration {
	if attempt > 30 {
		return r.settings.MaxDelay
	}
	d := r.settings.BaseDelay << (attempt - 1)
	if d <= 0 || d > r.settings.MaxDelay {
		return r.settings.MaxDelay
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
