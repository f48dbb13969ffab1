// Package orchestration implements the saga coordinator: a sequential
// state machine that produces commands, awaits participant signals with
// bounded timeouts and compensates when a later step fails.
//
// The coordinator never reads the ambient clock or spawns its own timers.
// All time and waiting goes through the Context capability supplied by
// the hosting substrate, so a replaying host reproduces identical
// decisions.
package orchestration

import (
	"errors"
	"time"
)

var (
	// ErrNilContext is returned when an orchestration runs without a
	// context capability.
	ErrNilContext = errors.New("orchestration context is required")
	// ErrNegativeTimeout is returned when a wait is bounded by a negative
	// duration.
	ErrNegativeTimeout = errors.New("timeout must not be negative")
	// ErrNoProducers is returned when an orchestrator is built without
	// command producers.
	ErrNoProducers = errors.New("at least one command producer is required")
	// ErrNoPersisters is returned when an orchestrator is built without
	// state persisters.
	ErrNoPersisters = errors.New("at least one state persister is required")
	// ErrMissingStep is returned when a lookup names a producer or
	// persister absent from its table. A hole in a step table is a
	// configuration defect and is never converted into a saga outcome.
	ErrMissingStep = errors.New("missing step")
	// ErrStepTimeout is returned when a deadline fires before a retried
	// step resolves.
	ErrStepTimeout = errors.New("step timed out")
	// ErrUnknownStep is returned by a substrate asked to run a step it
	// has no registration for.
	ErrUnknownStep = errors.New("unknown step")
)

// CancelFunc releases a pending durable timer. Outstanding timers
// otherwise keep the hosting substrate from marking the instance
// complete.
type CancelFunc func()

// RetryPolicy bounds the retries of one orchestration step call.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, first call included.
	MaxAttempts int
	// FirstRetryInterval is the delay before the first retry; later
	// retries back off exponentially from it.
	FirstRetryInterval time.Duration
}

// DefaultRetryPolicy returns the policy applied to step calls when the
// caller does not override it.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:        3,
		FirstRetryInterval: 500 * time.Millisecond,
	}
}

// Context is the durable execution capability supplied by the hosting
// substrate. It is the orchestrator's only source of time, waiting and
// step execution.
//
// CreateTimer returns a channel that resolves at the deadline plus a
// cancel function for when the timer loses its race. WaitForSignal
// returns a channel resolving with the payload of the next named external
// signal; signal waits are not cancellable.
type Context interface {
	InstanceID() string
	CurrentTime() time.Time
	CreateTimer(deadline time.Time) (<-chan struct{}, CancelFunc)
	WaitForSignal(name string) <-chan string
	CallStepWithRetry(name string, policy RetryPolicy, input any) (any, error)
}
