package receipt

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
	ErrNilStore = errors.New("executed transfer store is required")
	// ErrNilProducer is returned when a processor is built without an
	// event producer.
	ErrNilProducer = errors.New("event producer is required")
)

// Processor handles issue-receipt commands: it issues the signed receipt,
// persists it and publishes ReceiptIssuedEvent carrying the signature.
// Failures are converted into OtherReasonReceiptFailedEvent; an error
// escapes only when even the failure event cannot be published.
type Processor struct {
	receipts repository.Appender[ExecutedTransfer]
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

// WithClock sets the time source used to date receipts and stamp events.
func WithClock(clock func() time.Time) Option {
	return func(p *Processor) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewProcessor creates the receipt command processor.
func NewProcessor(receipts repository.Appender[ExecutedTransfer], producer messaging.Producer, opts ...Option) (*Processor, error) {
	if receipts == nil {
		return nil, ErrNilStore
	}

	if producer == nil {
		return nil, ErrNilProducer
	}

	p := &Processor{
		receipts: receipts,
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

// Process handles one IssueReceiptCommand envelope.
func (p *Processor) Process(ctx context.Context, envelope *messaging.Envelope) error {
	var command messaging.Command
	if err := envelope.Parse(&command); err != nil {
		// An undecodable body has no transaction id to correlate a
		// failure event with; the batch handler isolates the error.
		return err
	}

	transactionID := command.Header.TransactionID

	executed, err := IssueReceipt(transactionID, p.clock())
	if err != nil {
		return p.fail(ctx, transactionID, err)
	}

	if err := p.receipts.Add(ctx, executed); err != nil {
		return p.fail(ctx, transactionID, fmt.Errorf("persist receipt: %w", err))
	}

	p.logger.Log(ctx, log.LevelInfo, "receipt issued",
		log.String("transaction_id", transactionID),
		log.String("signature", executed.ReceiptSignature),
	)

	event := messaging.NewReceiptIssuedEvent(transactionID, executed.ReceiptSignature, p.clock())
	if err := p.producer.Produce(ctx, event); err != nil {
		return p.fail(ctx, transactionID, fmt.Errorf("publish receipt event: %w", err))
	}

	return nil
}

func (p *Processor) fail(ctx context.Context, transactionID string, cause error) error {
	p.logger.Log(ctx, log.LevelError, "receipt processing failed",
		log.String("transaction_id", transactionID),
		log.Err(cause),
	)

	event := messaging.NewFailureEvent(
		transactionID,
		messaging.EventOtherReasonReceiptFailed,
		messaging.SourceReceipt,
		cause.Error(),
		p.clock(),
	)

	if err := p.producer.Produce(ctx, event); err != nil {
		return fmt.Errorf("publish failure event: %w", err)
	}

	return nil
}
