package orchestration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LerianStudio/lib-saga/saga/backoff"
	"github.com/LerianStudio/lib-saga/saga/log"
)

// signalBuffer bounds how many undelivered payloads a signal channel
// holds before a sender blocks.
const signalBuffer = 16

// Local is an in-process substrate implementing the Context capability.
// It runs steps on the calling goroutine with real timers, which is what
// single-process deployments and tests use; a durable host would supply
// its own Context instead.
type Local struct {
	id    string
	clock func() time.Time
	steps map[string]Step

	mu      sync.Mutex
	signals map[string]chan string

	logger log.Logger
}

// LocalOption configures a Local substrate.
type LocalOption func(*Local)

// WithLocalLogger sets a structured logger for the substrate.
func WithLocalLogger(logger log.Logger) LocalOption {
	return func(l *Local) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithLocalClock sets the substrate's time source.
func WithLocalClock(clock func() time.Time) LocalOption {
	return func(l *Local) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// NewLocal creates a substrate for one orchestration instance. The id
// doubles as the instance id; an empty id gets a generated one.
func NewLocal(id string, opts ...LocalOption) *Local {
	if id == "" {
		id = uuid.NewString()
	}

	l := &Local{
		id:      id,
		clock:   func() time.Time { return time.Now().UTC() },
		steps:   make(map[string]Step),
		signals: make(map[string]chan string),
		logger:  log.NewNop(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	return l
}

// RegisterStep binds a step name to its implementation. Registering a nil
// step or a duplicate name is a no-op.
func (l *Local) RegisterStep(name string, step Step) {
	if step == nil {
		return
	}

	if _, exists := l.steps[name]; exists {
		return
	}

	l.steps[name] = step
}

// Signal delivers one external signal payload, typically the messageType
// of a participant event keyed by its source.
func (l *Local) Signal(name, payload string) {
	l.signalChannel(name) <- payload
}

// InstanceID implements Context.
func (l *Local) InstanceID() string {
	return l.id
}

// CurrentTime implements Context.
func (l *Local) CurrentTime() time.Time {
	return l.clock()
}

// CreateTimer implements Context with a real timer firing at the
// deadline.
func (l *Local) CreateTimer(deadline time.Time) (<-chan struct{}, CancelFunc) {
	fired := make(chan struct{})

	timer := time.AfterFunc(deadline.Sub(l.clock()), func() {
		close(fired)
	})

	return fired, func() { timer.Stop() }
}

// WaitForSignal implements Context.
func (l *Local) WaitForSignal(name string) <-chan string {
	return l.signalChannel(name)
}

// CallStepWithRetry implements Context: it runs the registered step on
// the calling goroutine, retrying failures with jittered exponential
// backoff up to the policy's attempt budget.
func (l *Local) CallStepWithRetry(name string, policy RetryPolicy, input any) (any, error) {
	step, ok := l.steps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStep, name)
	}

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	ctx := context.Background()

	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			l.logger.Log(ctx, log.LevelWarn, "retrying orchestration step",
				log.String("instance_id", l.id),
				log.String("step", name),
				log.Int("attempt", attempt+1),
				log.Err(lastErr),
			)

			if err := backoff.SleepWithContext(ctx, backoff.ExponentialWithJitter(policy.FirstRetryInterval, attempt-1)); err != nil {
				return nil, err
			}
		}

		out, err := step(ctx, input)
		if err == nil {
			return out, nil
		}

		lastErr = err
	}

	return nil, fmt.Errorf("step %q failed after %d attempts: %w", name, attempts, lastErr)
}

func (l *Local) signalChannel(name string) chan string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.signals[name]
	if !ok {
		ch = make(chan string, signalBuffer)
		l.signals[name] = ch
	}

	return ch
}
