package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-saga/saga/log"
	"github.com/LerianStudio/lib-saga/saga/messaging"
	"github.com/LerianStudio/lib-saga/saga/repository"
)

var (
	// ErrNilStore is returned when a processor is built without a store.
	ErrNilStore = errors.New("initial transfer store is required")
	// ErrNilProducer is returned when a processor is built without an
	// event producer.
	ErrNilProducer = errors.New("event producer is required")
)

// Processor handles validate-transfer commands: it runs the validation,
// persists the aggregate and publishes the verdict event. Unexpected
// failures are converted into OtherReasonValidationFailedEvent; an error
// escapes only when even the failure event cannot be published.
type Processor struct {
	transfers repository.Appender[InitialTransfer]
	producer  messaging.Producer
	logger    log.Logger
	clock     func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets a structured logger for the processor.
func WithLogger(logger log.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock sets the time source used to stamp events.
func WithClock(clock func() time.Time) Option {
	return func(p *Processor) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewProcessor creates the validation command processor.
func NewProcessor(transfers repository.Appender[InitialTransfer], producer messaging.Producer, opts ...Option) (*Processor, error) {
	if transfers == nil {
		return nil, ErrNilStore
	}

	if producer == nil {
		return nil, ErrNilProducer
	}

	p := &Processor{
		transfers: transfers,
		producer:  producer,
		logger:    log.NewNop(),
		clock:     time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p, nil
}

// Process handles one ValidateTransferCommand envelope.
func (p *Processor) Process(ctx context.Context, envelope *messaging.Envelope) error {
	var command messaging.Command
	if err := envelope.Parse(&command); err != nil {
		// An undecodable body has no transaction id to correlate a
		// failure event with; the batch handler isolates the error.
		return err
	}

	transactionID := command.Header.TransactionID

	transfer := NewInitialTransfer(transactionID, command.Content.Transaction)
	eventType, reason := transfer.Validate()

	if err := p.transfers.Add(ctx, transfer); err != nil {
		return p.fail(ctx, transactionID, fmt.Errorf("persist validation: %w", err))
	}

	p.logger.Log(ctx, log.LevelInfo, "transfer validated",
		log.String("transaction_id", transactionID),
		log.String("verdict", string(transfer.State)),
	)

	event := messaging.NewEvent(transactionID, eventType, messaging.SourceValidator, p.clock())
	if reason != "" {
		event = messaging.NewFailureEvent(transactionID, eventType, messaging.SourceValidator, reason, p.clock())
	}

	if err := p.producer.Produce(ctx, event); err != nil {
		return p.fail(ctx, transactionID, fmt.Errorf("publish validation event: %w", err))
	}

	return nil
}

// ProcessCancel handles one CancelTransferCommand envelope for deployments
// that route compensation through the validator.
func (p *Processor) ProcessCancel(ctx context.Context, envelope *messaging.Envelope) error {
	var command messaging.Command
	if err := envelope.Parse(&command); err != nil {
		return err
	}

	transactionID := command.Header.TransactionID

	transfer := NewInitialTransfer(transactionID, command.Content.Transaction)
	eventType := transfer.Cancel()

	if err := p.transfers.Add(ctx, transfer); err != nil {
		return p.fail(ctx, transactionID, fmt.Errorf("persist cancellation: %w", err))
	}

	event := messaging.NewEvent(transactionID, eventType, messaging.SourceValidator, p.clock())
	if err := p.producer.Produce(ctx, event); err != nil {
		return p.fail(ctx, transactionID, fmt.Errorf("publish cancellation event: %w", err))
	}

	return nil
}

func (p *Processor) fail(ctx context.Context, transactionID string, cause error) error {
	p.logger.Log(ctx, log.LevelError, "validation processing failed",
		log.String("transaction_id", transactionID),
		log.Err(cause),
	)

	event := messaging.NewFailureEvent(
		transactionID,
		messaging.EventOtherReasonValidationFailed,
		messaging.SourceValidator,
		cause.Error(),
		p.clock(),
	)

	if err := p.producer.Produce(ctx, event); err != nil {
		return fmt.Errorf("publish failure event: %w", err)
	}

	return nil
}
