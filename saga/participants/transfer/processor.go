package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LerianStudio/lib-saga/saga/log"
	"github.com/LerianStudio/lib-saga/saga/messaging"
	"github.com/LerianStudio/lib-saga/saga/repository"
)

var (
	// ErrNilLedger is returned when a processor is built without a ledger
	// store.
	ErrNilLedger = errors.New("ledger store is required")
	// ErrNilProducer is returned when a processor is built without an
	// event producer.
	ErrNilProducer = errors.New("event producer is required")
)

// Processor handles transfer and cancel-transfer commands: it builds the
// double-entry lines, appends them to the ledger and publishes the outcome
// event. Transfer failures become OtherReasonTransferFailedEvent and
// cancellation failures TransferNotCanceledEvent; an error escapes only
// when even the failure event cannot be published.
type Processor struct {
	ledger   repository.Appender[Line]
	producer messaging.Producer
	logger   log.Logger
	clock    func() time.Time
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

// WithClock sets the time source used to stamp ledger lines and events.
func WithClock(clock func() time.Time) Option {
	return func(p *Processor) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewProcessor creates the transfer command processor.
func NewProcessor(ledger repository.Appender[Line], producer messaging.Producer, opts ...Option) (*Processor, error) {
	if ledger == nil {
		return nil, ErrNilLedger
	}

	if producer == nil {
		return nil, ErrNilProducer
	}

	p := &Processor{
		ledger:   ledger,
		producer: producer,
		logger:   log.NewNop(),
		clock:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p, nil
}

// Process handles one TransferCommand envelope.
func (p *Processor) Process(ctx context.Context, envelope *messaging.Envelope) error {
	return p.process(ctx, envelope, TransferLines, messaging.EventTransferSucceeded, messaging.EventOtherReasonTransferFailed)
}

// ProcessCancel handles one CancelTransferCommand envelope.
func (p *Processor) ProcessCancel(ctx context.Context, envelope *messaging.Envelope) error {
	return p.process(ctx, envelope, CancelLines, messaging.EventTransferCanceled, messaging.EventTransferNotCanceled)
}

func (p *Processor) process(
	ctx context.Context,
	envelope *messaging.Envelope,
	build func(transactionID, accountFromID, accountToID string, amount decimal.Decimal, at time.Time) ([]Line, error),
	successEvent, failureEvent string,
) error {
	var command messaging.Command
	if err := envelope.Parse(&command); err != nil {
		// An undecodable body has no transaction id to correlate a
		// failure event with; the batch handler isolates the error.
		return err
	}

	transactionID := command.Header.TransactionID
	details := command.Content.Transaction

	lines, err := build(transactionID, details.AccountFromID, details.AccountToID, details.Amount, p.clock())
	if err != nil {
		return p.fail(ctx, transactionID, failureEvent, err)
	}

	for _, line := range lines {
		if err := p.ledger.Add(ctx, line); err != nil {
			return p.fail(ctx, transactionID, failureEvent, fmt.Errorf("append ledger line: %w", err))
		}
	}

	p.logger.Log(ctx, log.LevelInfo, "ledger lines appended",
		log.String("transaction_id", transactionID),
		log.Int("lines", len(lines)),
		log.String("outcome", successEvent),
	)

	event := messaging.NewEvent(transactionID, successEvent, messaging.SourceTransfer, p.clock())
	if err := p.producer.Produce(ctx, event); err != nil {
		return p.fail(ctx, transactionID, failureEvent, fmt.Errorf("publish outcome event: %w", err))
	}

	return nil
}

func (p *Processor) fail(ctx context.Context, transactionID, failureEvent string, cause error) error {
	p.logger.Log(ctx, log.LevelError, "transfer processing failed",
		log.String("transaction_id", transactionID),
		log.String("outcome", failureEvent),
		log.Err(cause),
	)

	event := messaging.NewFailureEvent(transactionID, failureEvent, messaging.SourceTransfer, cause.Error(), p.clock())
	if err := p.producer.Produce(ctx, event); err != nil {
		return fmt.Errorf("publish failure event: %w", err)
	}

	return nil
}
