package orchestration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LerianStudio/lib-saga/saga"
	"github.com/LerianStudio/lib-saga/saga/dispatch"
	"github.com/LerianStudio/lib-saga/saga/messaging"
	"github.com/LerianStudio/lib-saga/saga/participants/receipt"
	"github.com/LerianStudio/lib-saga/saga/participants/transfer"
	"github.com/LerianStudio/lib-saga/saga/participants/validator"
	"github.com/LerianStudio/lib-saga/saga/publisher"
	"github.com/LerianStudio/lib-saga/saga/repository"
)

// eventFeed hands participant events to the ingress dispatcher, the way a
// broker subscription would feed them back to the coordinator.
type eventFeed struct {
	dispatcher *dispatch.Dispatcher
}

func (f *eventFeed) Produce(ctx context.Context, event messaging.Event) error {
	envelope, err := messaging.NewEnvelopeFromMessage(event)
	if err != nil {
		return err
	}

	return f.dispatcher.Dispatch(ctx, envelope)
}

// dispatchTransport delivers published command envelopes straight to the
// participants' dispatcher.
type dispatchTransport struct {
	dispatcher *dispatch.Dispatcher
}

func (t *dispatchTransport) Publish(ctx context.Context, envelope *messaging.Envelope) error {
	return t.dispatcher.Dispatch(ctx, envelope)
}

type failingReceiptStore struct{}

func (failingReceiptStore) Add(context.Context, receipt.ExecutedTransfer) error {
	return errors.New("receipt store unavailable")
}

type fixture struct {
	local      *Local
	store      *repository.InMemoryTransactionStore
	ledger     *repository.InMemory[transfer.Line]
	receipts   repository.Appender[receipt.ExecutedTransfer]
	audit      *repository.InMemory[EventRecord]
	withCancel bool
}

// buildSaga wires real participants behind an in-memory transport and
// returns a ready-to-run orchestrator for the transaction.
func buildSaga(t *testing.T, transaction saga.Transaction, f *fixture) *Orchestrator {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, transaction))

	registry := NewRegistry()
	registry.Register(f.local)

	ingress, err := NewEventIngress(registry, WithAuditLog(f.audit))
	require.NoError(t, err)

	eventDispatcher, err := dispatch.New(ingress.Processors())
	require.NoError(t, err)

	producer := &eventFeed{dispatcher: eventDispatcher}

	validatorProcessor, err := validator.NewProcessor(repository.NewInMemory[validator.InitialTransfer](), producer)
	require.NoError(t, err)

	transferProcessor, err := transfer.NewProcessor(f.ledger, producer)
	require.NoError(t, err)

	receiptProcessor, err := receipt.NewProcessor(f.receipts, producer)
	require.NoError(t, err)

	processors := map[string]dispatch.Processor{
		string(messaging.CommandValidateTransfer): dispatch.ProcessorFunc(validatorProcessor.Process),
		string(messaging.CommandTransfer):         dispatch.ProcessorFunc(transferProcessor.Process),
		string(messaging.CommandIssueReceipt):     dispatch.ProcessorFunc(receiptProcessor.Process),
	}
	if f.withCancel {
		processors[string(messaging.CommandCancelTransfer)] = dispatch.ProcessorFunc(transferProcessor.ProcessCancel)
	}

	dispatcher, err := dispatch.New(processors)
	require.NoError(t, err)

	pub, err := publisher.New(&dispatchTransport{dispatcher: dispatcher}, publisher.WithRetryBackoff(0))
	require.NoError(t, err)

	policy := RetryPolicy{MaxAttempts: 2, FirstRetryInterval: time.Millisecond}

	for _, kind := range messaging.CommandKinds() {
		f.local.RegisterStep(string(kind), PublishCommandStep(kind, pub, nil))
	}

	for _, state := range PersistedStates() {
		f.local.RegisterStep(PersistStepName(state), PersistStateStep(f.store))
	}

	orchestrator, err := New(
		CommandProducers(f.local, policy, transaction),
		StatePersisters(f.local, policy, transaction.ID),
		WithTimeouts(Timeouts{
			Validation: 500 * time.Millisecond,
			Transfer:   100 * time.Millisecond,
			Receipt:    100 * time.Millisecond,
		}),
	)
	require.NoError(t, err)

	return orchestrator
}

func newFixture(id string) *fixture {
	return &fixture{
		local:      NewLocal(id),
		store:      repository.NewInMemoryTransactionStore(),
		ledger:     repository.NewInMemory[transfer.Line](),
		receipts:   repository.NewInMemory[receipt.ExecutedTransfer](),
		audit:      repository.NewInMemory[EventRecord](),
		withCancel: true,
	}
}

func TestSagaEndToEndSuccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	transaction, err := saga.NewTransaction("tx-e2e-1", "acc-1", "acc-2", decimal.NewFromInt(100))
	require.NoError(t, err)

	f := newFixture(transaction.ID)
	orchestrator := buildSaga(t, transaction, f)

	state, err := orchestrator.Run(ctx, f.local)
	require.NoError(t, err)
	assert.Equal(t, saga.StateSuccess, state)

	stored, err := f.store.FindByID(ctx, transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StateSuccess, stored.State)

	lines := f.ledger.Items()
	require.Len(t, lines, 2)
	assert.True(t, lines[0].Amount.Add(lines[1].Amount).IsZero())

	types := make([]string, 0, 3)
	for _, record := range f.audit.Items() {
		types = append(types, record.MessageType)
	}

	assert.Equal(t, []string{
		messaging.EventTransferValidated,
		messaging.EventTransferSucceeded,
		messaging.EventReceiptIssued,
	}, types)
}

func TestSagaEndToEndCompensated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	transaction, err := saga.NewTransaction("tx-e2e-2", "acc-1", "acc-2", decimal.NewFromInt(100))
	require.NoError(t, err)

	f := newFixture(transaction.ID)
	f.receipts = failingReceiptStore{}

	orchestrator := buildSaga(t, transaction, f)

	state, err := orchestrator.Run(ctx, f.local)
	require.NoError(t, err)
	assert.Equal(t, saga.StateCancelled, state)

	stored, err := f.store.FindByID(ctx, transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StateCancelled, stored.State)

	lines := f.ledger.Items()
	require.Len(t, lines, 4)

	balance := decimal.Zero
	for _, line := range lines {
		balance = balance.Add(line.Amount)
	}

	assert.True(t, balance.IsZero())
}

func TestSagaEndToEndCancellationLost(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	transaction, err := saga.NewTransaction("tx-e2e-3", "acc-1", "acc-2", decimal.NewFromInt(100))
	require.NoError(t, err)

	f := newFixture(transaction.ID)
	f.receipts = failingReceiptStore{}
	f.withCancel = false

	orchestrator := buildSaga(t, transaction, f)

	state, err := orchestrator.Run(ctx, f.local)
	require.NoError(t, err)
	assert.Equal(t, saga.StateFail, state)

	stored, err := f.store.FindByID(ctx, transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StateFail, stored.State)
}

func TestSagaEndToEndValidatorRejects(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	transaction := saga.Transaction{
		ID:            "tx-e2e-4",
		AccountFromID: "",
		AccountToID:   "acc-2",
		Amount:        decimal.NewFromInt(100),
		State:         saga.StatePending,
	}

	f := newFixture(transaction.ID)
	orchestrator := buildSaga(t, transaction, f)

	state, err := orchestrator.Run(ctx, f.local)
	require.NoError(t, err)
	assert.Equal(t, saga.StateFail, state)

	assert.Empty(t, f.ledger.Items(), "no transfer command may reach the ledger")

	stored, err := f.store.FindByID(ctx, transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StateFail, stored.State)
}
