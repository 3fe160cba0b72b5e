// Package circuitbreaker wraps sony/gobreaker for outbound collaborators.
package circuitbreaker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

type Settings struct {
	Name string
	// ConsecutiveFailures trips the breaker. Zero means 5.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing. Zero means 30s.
	OpenTimeout time.Duration
	// HalfOpenRequests is how many probes are let through. Zero means 1.
	HalfOpenRequests uint32
	// IsSuccessful classifies errors that should not count as failures.
	IsSuccessful func(err error) bool
}

type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

func New[T any](s Settings, logger *slog.Logger) *Breaker[T] {
	if logger == nil {
		logger = slog.Default()
	}
	threshold := s.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	timeout := s.OpenTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	probes := s.HalfOpenRequests
	if probes == 0 {
		probes = 1
	}

	cb := gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: probes,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: s.IsSuccessful,
	})
	return &Breaker[T]{cb: cb}
}

func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	return b.cb.Execute(fn)
}

func (b *Breaker[T]) State() string {
	return b.cb.State().String()
}

// IsOpen reports whether err came from the breaker rejecting the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
