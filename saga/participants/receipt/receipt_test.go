package receipt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LerianStudio/lib-saga/saga"
	"github.com/LerianStudio/lib-saga/saga/messaging"
	"github.com/LerianStudio/lib-saga/saga/repository"
)

type fakeProducer struct {
	events []messaging.Event
	err    error
}

func (f *fakeProducer) Produce(_ context.Context, event messaging.Event) error {
	if f.err != nil {
		return f.err
	}

	f.events = append(f.events, event)

	return nil
}

type failingStore struct{}

func (failingStore) Add(context.Context, ExecutedTransfer) error {
	return errors.New("store unavailable")
}

func commandEnvelope(t *testing.T, transactionID string) *messaging.Envelope {
	t.Helper()

	command := messaging.NewCommand(messaging.CommandIssueReceipt, transactionID, messaging.TransactionDetails{
		AccountFromID: "acc-1",
		AccountToID:   "acc-2",
		Amount:        decimal.NewFromInt(100),
	}, time.Now().UTC())

	envelope, err := messaging.NewEnvelopeFromMessage(command)
	require.NoError(t, err)

	return envelope
}

func TestIssueReceipt(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC)

	t.Run("issues a signed receipt", func(t *testing.T) {
		t.Parallel()

		executed, err := IssueReceipt("tx-1", at)
		require.NoError(t, err)

		assert.Equal(t, "tx-1", executed.TransactionID)
		assert.Equal(t, StateIssued, executed.State)
		assert.Equal(t, at, executed.TransferDate)
		assert.Len(t, executed.ReceiptSignature, 64)
	})

	t.Run("signature is deterministic", func(t *testing.T) {
		t.Parallel()

		first, err := IssueReceipt("tx-1", at)
		require.NoError(t, err)

		second, err := IssueReceipt("tx-1", at)
		require.NoError(t, err)

		assert.Equal(t, first.ReceiptSignature, second.ReceiptSignature)
	})

	t.Run("signature depends on transaction and date", func(t *testing.T) {
		t.Parallel()

		base, err := IssueReceipt("tx-1", at)
		require.NoError(t, err)

		otherTransaction, err := IssueReceipt("tx-2", at)
		require.NoError(t, err)
		assert.NotEqual(t, base.ReceiptSignature, otherTransaction.ReceiptSignature)

		otherDate, err := IssueReceipt("tx-1", at.Add(time.Nanosecond))
		require.NoError(t, err)
		assert.NotEqual(t, base.ReceiptSignature, otherDate.ReceiptSignature)
	})

	t.Run("empty transaction id is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := IssueReceipt("  ", at)
		assert.ErrorIs(t, err, saga.ErrEmptyTransactionID)
	})
}

func TestNewProcessor(t *testing.T) {
	t.Parallel()

	t.Run("nil store is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := NewProcessor(nil, &fakeProducer{})
		assert.ErrorIs(t, err, ErrNilStore)
	})

	t.Run("nil producer is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := NewProcessor(repository.NewInMemory[ExecutedTransfer](), nil)
		assert.ErrorIs(t, err, ErrNilProducer)
	})
}

func TestProcess(t *testing.T) {
	t.Parallel()

	t.Run("persists receipt and publishes signature", func(t *testing.T) {
		t.Parallel()

		store := repository.NewInMemory[ExecutedTransfer]()
		producer := &fakeProducer{}

		processor, err := NewProcessor(store, producer)
		require.NoError(t, err)

		require.NoError(t, processor.Process(context.Background(), commandEnvelope(t, "tx-1")))

		stored := store.Items()
		require.Len(t, stored, 1)
		assert.Equal(t, StateIssued, stored[0].State)

		require.Len(t, producer.events, 1)
		event := producer.events[0]
		assert.Equal(t, messaging.EventReceiptIssued, event.Header.MessageType)
		assert.Equal(t, messaging.SourceReceipt, event.Header.Source)
		require.NotNil(t, event.Content)
		assert.Equal(t, stored[0].ReceiptSignature, event.Content.ReceiptSignature)
	})

	t.Run("empty transaction id reports failure", func(t *testing.T) {
		t.Parallel()

		store := repository.NewInMemory[ExecutedTransfer]()
		producer := &fakeProducer{}

		processor, err := NewProcessor(store, producer)
		require.NoError(t, err)

		require.NoError(t, processor.Process(context.Background(), commandEnvelope(t, "")))

		assert.Empty(t, store.Items())
		require.Len(t, producer.events, 1)
		assert.Equal(t, messaging.EventOtherReasonReceiptFailed, producer.events[0].Header.MessageType)
	})

	t.Run("store failure reports failure", func(t *testing.T) {
		t.Parallel()

		producer := &fakeProducer{}

		processor, err := NewProcessor(failingStore{}, producer)
		require.NoError(t, err)

		require.NoError(t, processor.Process(context.Background(), commandEnvelope(t, "tx-1")))

		require.Len(t, producer.events, 1)
		assert.Equal(t, messaging.EventOtherReasonReceiptFailed, producer.events[0].Header.MessageType)
	})

	t.Run("failure event publish error escapes", func(t *testing.T) {
		t.Parallel()

		processor, err := NewProcessor(failingStore{}, &fakeProducer{err: errors.New("broker down")})
		require.NoError(t, err)

		assert.Error(t, processor.Process(context.Background(), commandEnvelope(t, "tx-1")))
	})
}

func TestProcessUndecodableBody(t *testing.T) {
	t.Parallel()

	store := repository.NewInMemory[ExecutedTransfer]()
	producer := &fakeProducer{}

	processor, err := NewProcessor(store, producer)
	require.NoError(t, err)

	envelope, err := messaging.NewEnvelope([]byte(`{"header":{"messageType":"IssueReceiptCommand"},"content":[]}`))
	require.NoError(t, err)

	assert.Error(t, processor.Process(context.Background(), envelope))
	assert.Empty(t, store.Items())
	assert.Empty(t, producer.events)
}
