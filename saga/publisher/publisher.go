// Package publisher implements the reliable-publish primitive protecting
// the orchestrator from transient downstream failures: a bounded retry
// loop composed with a circuit breaker around a single transport publish.
//
// Callers never see a propagated publish error; every exhausted failure is
// converted into a Result with Valid=false.
package publisher

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/LerianStudio/lib-saga/saga/backoff"
	"github.com/LerianStudio/lib-saga/saga/circuitbreaker"
	"github.com/LerianStudio/lib-saga/saga/log"
	"github.com/LerianStudio/lib-saga/saga/messaging"
)

// ErrNilTransport is returned when a publisher is built without a transport.
var ErrNilTransport = errors.New("publish transport is required")

// DefaultMaxRetries is the retry budget applied when none is configured.
const DefaultMaxRetries = 3

// Transport performs one raw publish of an envelope.
type Transport interface {
	Publish(ctx context.Context, envelope *messaging.Envelope) error
}

// Result is the outcome of a reliable publish. Valid=false means every
// attempt failed or the breaker was open; Message carries the envelope
// actually sent, with a regenerated message id and creation date.
type Result struct {
	Valid   bool                `json:"valid"`
	Message *messaging.Envelope `json:"-"`
}

// ReliablePublisher retries a transport publish and short-circuits through
// a per-instance circuit breaker. Instances are not shared across
// concurrent saga activities; each owns its breaker state.
type ReliablePublisher struct {
	transport    Transport
	breaker      *circuitbreaker.Breaker
	logger       log.Logger
	tracer       trace.Tracer
	clock        func() time.Time
	maxRetries   int
	retryBackoff time.Duration
}

// Option configures a ReliablePublisher.
type Option func(*ReliablePublisher)

// WithLogger sets a structured logger.
func WithLogger(logger log.Logger) Option {
	return func(p *ReliablePublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTracer sets the tracer used to span publish attempts.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *ReliablePublisher) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// WithMaxRetries caps how many times a failed publish is retried after the
// initial attempt.
func WithMaxRetries(maxRetries int) Option {
	return func(p *ReliablePublisher) {
		if maxRetries >= 0 {
			p.maxRetries = maxRetries
		}
	}
}

// WithRetryBackoff sets the base delay between attempts; each sleep is
// exponential in the attempt with full jitter. Zero disables the delay
// entirely.
func WithRetryBackoff(base time.Duration) Option {
	return func(p *ReliablePublisher) {
		if base >= 0 {
			p.retryBackoff = base
		}
	}
}

// WithBreakerConfig replaces the default circuit breaker configuration.
func WithBreakerConfig(config circuitbreaker.Config) Option {
	return func(p *ReliablePublisher) {
		p.breaker = circuitbreaker.New("publisher", config, p.logger)
	}
}

// WithClock overrides the clock used to stamp regenerated headers.
func WithClock(clock func() time.Time) Option {
	return func(p *ReliablePublisher) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// New creates a reliable publisher over the given transport.
func New(transport Transport, opts ...Option) (*ReliablePublisher, error) {
	if transport == nil {
		return nil, ErrNilTransport
	}

	p := &ReliablePublisher{
		transport:  transport,
		logger:     log.NewNop(),
		tracer:     noop.NewTracerProvider().Tracer("lib-saga.publisher"),
		clock:      func() time.Time { return time.Now().UTC() },
		maxRetries: DefaultMaxRetries,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	if p.breaker == nil {
		p.breaker = circuitbreaker.New("publisher", circuitbreaker.DefaultConfig(), p.logger)
	}

	return p, nil
}

// Publish serializes the message, regenerates its header with a fresh
// message id and creation date, and sends it through retry and breaker.
// All failures are folded into the returned Result.
func (p *ReliablePublisher) Publish(ctx context.Context, message any) Result {
	envelope, err := messaging.NewEnvelopeFromMessage(message)
	if err != nil {
		p.logger.Log(ctx, log.LevelError, "publish message is not serializable", log.Err(err))

		return Result{}
	}

	header, err := envelope.Header()
	if err != nil {
		p.logger.Log(ctx, log.LevelError, "publish message has no parsable header", log.Err(err))

		return Result{}
	}

	outbound, err := envelope.WithHeader(header.Regenerate(p.clock()))
	if err != nil {
		p.logger.Log(ctx, log.LevelError, "publish header regeneration failed", log.Err(err))

		return Result{}
	}

	ctx, span := p.tracer.Start(ctx, "publisher.publish", trace.WithAttributes(
		attribute.String("saga.transaction_id", header.TransactionID),
		attribute.String("saga.message_type", header.MessageType),
	))
	defer span.End()

	return p.publishWithRetry(ctx, header, outbound)
}

func (p *ReliablePublisher) publishWithRetry(
	ctx context.Context,
	header messaging.MessageHeader,
	outbound *messaging.Envelope,
) Result {
	attempts := p.maxRetries + 1

	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			p.logger.Log(ctx, log.LevelWarn, "retrying publish",
				log.Int("attempt", attempt),
				log.String("transaction_id", header.TransactionID),
				log.String("message_type", header.MessageType),
				log.Err(lastErr),
			)

			if err := backoff.SleepWithContext(ctx, backoff.ExponentialWithJitter(p.retryBackoff, attempt-1)); err != nil {
				lastErr = err

				break
			}
		}

		_, lastErr = p.breaker.Execute(func() (any, error) {
			return nil, p.transport.Publish(ctx, outbound)
		})
		if lastErr == nil {
			return Result{Valid: true, Message: outbound}
		}

		if circuitbreaker.IsOpen(lastErr) {
			break
		}
	}

	p.logger.Log(ctx, log.LevelError, "publish failed after exhausting retries",
		log.String("transaction_id", header.TransactionID),
		log.String("message_type", header.MessageType),
		log.Err(lastErr),
	)

	return Result{}
}
