package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-saga/saga"
	"github.com/LerianStudio/lib-saga/saga/log"
	"github.com/LerianStudio/lib-saga/saga/messaging"
	"github.com/LerianStudio/lib-saga/saga/publisher"
)

// Signal names the orchestrator awaits on, one per participant. A
// participant's events arrive as signals carrying the event type as
// payload.
const (
	SignalValidator = string(messaging.SourceValidator)
	SignalTransfer  = string(messaging.SourceTransfer)
	SignalReceipt   = string(messaging.SourceReceipt)
)

// CommandProducer publishes one command towards a participant and reports
// whether the publish went through.
type CommandProducer func() publisher.Result

// StatePersister records one saga state transition and reports whether it
// was durably written.
type StatePersister func() bool

// Timeouts bounds each of the orchestrator's external waits.
type Timeouts struct {
	Validation time.Duration
	Transfer   time.Duration
	Receipt    time.Duration
}

// DefaultTimeouts returns the wait bounds applied when the deployment
// does not configure its own.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Validation: 30 * time.Second,
		Transfer:   30 * time.Second,
		Receipt:    30 * time.Second,
	}
}

// Orchestrator drives one money transfer saga to a terminal state. It is
// configured at construction with a producer per command kind and a
// persister per recordable state; every transition resolves through those
// tables.
type Orchestrator struct {
	producers  map[messaging.CommandKind]CommandProducer
	persisters map[saga.State]StatePersister
	timeouts   Timeouts
	logger     log.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a structured logger for the orchestrator.
func WithLogger(logger log.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTimeouts overrides the wait bound per external signal.
func WithTimeouts(timeouts Timeouts) Option {
	return func(o *Orchestrator) {
		o.timeouts = timeouts
	}
}

// New creates an orchestrator over non-empty producer and persister
// tables.
func New(producers map[messaging.CommandKind]CommandProducer, persisters map[saga.State]StatePersister, opts ...Option) (*Orchestrator, error) {
	if len(producers) == 0 {
		return nil, ErrNoProducers
	}

	if len(persisters) == 0 {
		return nil, ErrNoPersisters
	}

	registeredProducers := make(map[messaging.CommandKind]CommandProducer, len(producers))
	for kind, producer := range producers {
		registeredProducers[kind] = producer
	}

	registeredPersisters := make(map[saga.State]StatePersister, len(persisters))
	for state, persister := range persisters {
		registeredPersisters[state] = persister
	}

	o := &Orchestrator{
		producers:  registeredProducers,
		persisters: registeredPersisters,
		timeouts:   DefaultTimeouts(),
		logger:     log.NewNop(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	return o, nil
}

// Run executes the saga to a terminal state.
//
// Business failures (rejected validation, missing or mismatched signals,
// timeouts, failed publishes) always resolve to a persisted terminal
// state and a nil error. A non-nil error means a configuration defect: a
// nil context or a hole in a step table.
func (o *Orchestrator) Run(ctx context.Context, octx Context) (saga.State, error) {
	if octx == nil {
		return "", ErrNilContext
	}

	logger := o.logger.With(log.String("instance_id", octx.InstanceID()))

	ok, err := o.persist(saga.StatePending)
	if err != nil {
		return "", err
	}

	if !ok {
		logger.Log(ctx, log.LevelError, "pending state was not persisted")

		return o.finish(ctx, logger, saga.StateFail)
	}

	ok, err = o.produce(messaging.CommandValidateTransfer)
	if err != nil {
		return "", err
	}

	if !ok {
		logger.Log(ctx, log.LevelError, "validate transfer command was not published")

		return o.finish(ctx, logger, saga.StateFail)
	}

	signal, err := AwaitWithTimeout(octx, SignalValidator, o.timeouts.Validation)
	if err != nil {
		return "", err
	}

	if signal != messaging.EventTransferValidated {
		o.logMismatch(ctx, logger, SignalValidator, messaging.EventTransferValidated, signal)

		return o.finish(ctx, logger, saga.StateFail)
	}

	ok, err = o.produce(messaging.CommandTransfer)
	if err != nil {
		return "", err
	}

	if !ok {
		logger.Log(ctx, log.LevelError, "transfer command was not published")

		return o.finish(ctx, logger, saga.StateFail)
	}

	signal, err = AwaitWithTimeout(octx, SignalTransfer, o.timeouts.Transfer)
	if err != nil {
		return "", err
	}

	if signal != messaging.EventTransferSucceeded {
		o.logMismatch(ctx, logger, SignalTransfer, messaging.EventTransferSucceeded, signal)

		return o.finish(ctx, logger, saga.StateFail)
	}

	ok, err = o.produce(messaging.CommandIssueReceipt)
	if err != nil {
		return "", err
	}

	if !ok {
		logger.Log(ctx, log.LevelError, "issue receipt command was not published")

		return o.finish(ctx, logger, saga.StateFail)
	}

	signal, err = AwaitWithTimeout(octx, SignalReceipt, o.timeouts.Receipt)
	if err != nil {
		return "", err
	}

	if signal == messaging.EventReceiptIssued {
		return o.finish(ctx, logger, saga.StateSuccess)
	}

	o.logMismatch(ctx, logger, SignalReceipt, messaging.EventReceiptIssued, signal)

	return o.compensate(ctx, logger, octx)
}

// compensate undoes a transfer whose receipt never confirmed: it asks the
// transfer participant to reverse the lines and awaits the confirmation.
func (o *Orchestrator) compensate(ctx context.Context, logger log.Logger, octx Context) (saga.State, error) {
	ok, err := o.produce(messaging.CommandCancelTransfer)
	if err != nil {
		return "", err
	}

	if !ok {
		logger.Log(ctx, log.LevelError, "cancel transfer command was not published")

		return o.finish(ctx, logger, saga.StateFail)
	}

	signal, err := AwaitWithTimeout(octx, SignalTransfer, o.timeouts.Transfer)
	if err != nil {
		return "", err
	}

	if signal != messaging.EventTransferCanceled {
		o.logMismatch(ctx, logger, SignalTransfer, messaging.EventTransferCanceled, signal)

		return o.finish(ctx, logger, saga.StateFail)
	}

	return o.finish(ctx, logger, saga.StateCancelled)
}

// finish persists the terminal state. A persistence failure demotes the
// outcome to Fail, itself recorded best-effort.
func (o *Orchestrator) finish(ctx context.Context, logger log.Logger, state saga.State) (saga.State, error) {
	persist, err := o.persister(state)
	if err != nil {
		return "", err
	}

	if persist() {
		logger.Log(ctx, log.LevelInfo, "saga finished",
			log.String("state", string(state)),
		)

		return state, nil
	}

	logger.Log(ctx, log.LevelError, "terminal state was not persisted",
		log.String("state", string(state)),
	)

	if state == saga.StateFail {
		return saga.StateFail, nil
	}

	persistFail, err := o.persister(saga.StateFail)
	if err != nil {
		return "", err
	}

	persistFail()

	return saga.StateFail, nil
}

func (o *Orchestrator) produce(kind messaging.CommandKind) (bool, error) {
	producer, ok := o.producers[kind]
	if !ok {
		return false, fmt.Errorf("%w: no producer for command %q", ErrMissingStep, kind)
	}

	return producer().Valid, nil
}

func (o *Orchestrator) persist(state saga.State) (bool, error) {
	persist, err := o.persister(state)
	if err != nil {
		return false, err
	}

	return persist(), nil
}

func (o *Orchestrator) persister(state saga.State) (StatePersister, error) {
	persister, ok := o.persisters[state]
	if !ok {
		return nil, fmt.Errorf("%w: no persister for state %q", ErrMissingStep, state)
	}

	return persister, nil
}

func (o *Orchestrator) logMismatch(ctx context.Context, logger log.Logger, signal, expected, got string) {
	if got == "" {
		got = "<timeout>"
	}

	logger.Log(ctx, log.LevelWarn, "expected signal was not confirmed",
		log.String("signal", signal),
		log.String("expected", expected),
		log.String("got", got),
	)
}
