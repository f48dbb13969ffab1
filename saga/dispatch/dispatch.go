// Package dispatch routes inbound command envelopes to the processor
// registered for their message type. Every participant uses the same
// dispatcher; a participant only reacts to the commands it owns and
// silently ignores the rest.
package dispatch

import (
	"context"
	"errors"

	"github.com/LerianStudio/lib-saga/saga/log"
	"github.com/LerianStudio/lib-saga/saga/messaging"
)

var (
	// ErrNoProcessors is returned when a dispatcher is built without any
	// registered processor. A missing handler map is a configuration
	// defect, not a runtime outcome.
	ErrNoProcessors = errors.New("at least one command processor is required")
)

// Processor handles one concrete command type.
type Processor interface {
	Process(ctx context.Context, envelope *messaging.Envelope) error
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(ctx context.Context, envelope *messaging.Envelope) error

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, envelope *messaging.Envelope) error {
	return f(ctx, envelope)
}

// Dispatcher maps message-type names to processors.
type Dispatcher struct {
	processors map[string]Processor
	logger     log.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets a structured logger for the dispatcher.
func WithLogger(logger log.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a dispatcher over a non-empty processor map keyed by
// messageType.
func New(processors map[string]Processor, opts ...Option) (*Dispatcher, error) {
	if len(processors) == 0 {
		return nil, ErrNoProcessors
	}

	registered := make(map[string]Processor, len(processors))
	for messageType, processor := range processors {
		registered[messageType] = processor
	}

	d := &Dispatcher{
		processors: registered,
		logger:     log.NewNop(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	return d, nil
}

// Dispatch peeks the envelope header and invokes the processor registered
// for its messageType with the full envelope. Unknown message types are a
// no-op: another participant owns them.
func (d *Dispatcher) Dispatch(ctx context.Context, envelope *messaging.Envelope) error {
	if envelope == nil {
		return messaging.ErrNilEnvelope
	}

	header, err := envelope.Header()
	if err != nil {
		return err
	}

	processor, ok := d.processors[header.MessageType]
	if !ok {
		d.logger.Log(ctx, log.LevelDebug, "ignoring message type without processor",
			log.String("message_type", header.MessageType),
			log.String("transaction_id", header.TransactionID),
		)

		return nil
	}

	return processor.Process(ctx, envelope)
}

// DispatchBatch processes a batch of independent envelopes. A failure on
// one message is logged and never aborts its siblings. The number of
// failed messages is returned.
func (d *Dispatcher) DispatchBatch(ctx context.Context, envelopes []*messaging.Envelope) int {
	failed := 0

	for i, envelope := range envelopes {
		if err := d.Dispatch(ctx, envelope); err != nil {
			failed++

			d.logger.Log(ctx, log.LevelError, "batch message processing failed",
				log.Int("index", i),
				log.Err(err),
			)
		}
	}

	return failed
}
