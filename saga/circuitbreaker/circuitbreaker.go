// Package circuitbreaker wraps sony/gobreaker behind a small interface so
// callers fast-fail instead of hammering an unhealthy downstream.
//
// Breakers are scoped per owning component instance; there is no global
// registry and no cross-instance shared state.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/LerianStudio/lib-saga/saga/log"
)

// State represents circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
	StateUnknown  State = "unknown"
)

// Config holds circuit breaker configuration.
type Config struct {
	MaxRequests         uint32        // Max requests allowed in half-open state
	Interval            time.Duration // Closed-state window after which counts reset
	OpenTimeout         time.Duration // How long the breaker stays open before half-open
	ConsecutiveFailures uint32        // Consecutive failures that trip the breaker
	FailureRatio        float64       // Failure ratio that trips the breaker
	MinRequests         uint32        // Min requests before the ratio is checked
}

// DefaultConfig provides balanced settings for most downstreams.
func DefaultConfig() Config {
	return Config{
		MaxRequests:         3,
		Interval:            2 * time.Minute,
		OpenTimeout:         30 * time.Second,
		ConsecutiveFailures: 5,
		FailureRatio:        0.5,
		MinRequests:         10,
	}
}

// Counts represents circuit breaker statistics.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker protects one downstream operation.
type Breaker struct {
	breaker *gobreaker.CircuitBreaker
	logger  log.Logger
}

// New creates a circuit breaker named after the downstream it protects.
func New(name string, config Config, logger log.Logger) *Breaker {
	if logger == nil {
		logger = log.NewNop()
	}

	b := &Breaker{logger: logger}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)

			return counts.ConsecutiveFailures >= config.ConsecutiveFailures ||
				(counts.Requests >= config.MinRequests && failureRatio >= config.FailureRatio)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			b.handleStateChange(name, from, to)
		},
	}

	b.breaker = gobreaker.NewCircuitBreaker(settings)

	return b
}

// Execute runs fn through the circuit breaker. While the breaker is open
// the call fails fast with an error satisfying IsOpen.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	result, err := b.breaker.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, fmt.Errorf("circuit breaker %q is open: %w", b.breaker.Name(), err)
		}

		if errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("circuit breaker %q is recovering: %w", b.breaker.Name(), err)
		}
	}

	return result, err
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	switch b.breaker.State() {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateUnknown
	}
}

// Counts returns the current breaker statistics.
func (b *Breaker) Counts() Counts {
	counts := b.breaker.Counts()

	return Counts{
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
	}
}

// IsOpen reports whether err was caused by an open or half-open-saturated
// breaker rather than by the wrapped operation itself.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (b *Breaker) handleStateChange(name string, from, to gobreaker.State) {
	ctx := context.Background()

	b.logger.Log(ctx, log.LevelWarn, "circuit breaker state changed",
		log.String("breaker", name),
		log.String("from", from.String()),
		log.String("to", to.String()),
	)

	switch to {
	case gobreaker.StateOpen:
		b.logger.Log(ctx, log.LevelError, "circuit breaker opened, requests will fast-fail",
			log.String("breaker", name))
	case gobreaker.StateHalfOpen:
		b.logger.Log(ctx, log.LevelInfo, "circuit breaker half-open, testing recovery",
			log.String("breaker", name))
	case gobreaker.StateClosed:
		b.logger.Log(ctx, log.LevelInfo, "circuit breaker closed, downstream is healthy",
			log.String("breaker", name))
	}
}
