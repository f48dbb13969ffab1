package validator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func (failingStore) Add(context.Context, InitialTransfer) error {
	return errors.New("store unavailable")
}

func details(from, to string, amount int64) messaging.TransactionDetails {
	return messaging.TransactionDetails{
		AccountFromID: from,
		AccountToID:   to,
		Amount:        decimal.NewFromInt(amount),
	}
}

func commandEnvelope(t *testing.T, kind messaging.CommandKind, d messaging.TransactionDetails) *messaging.Envelope {
	t.Helper()

	command := messaging.NewCommand(kind, "tx-1", d, time.Now().UTC())

	envelope, err := messaging.NewEnvelopeFromMessage(command)
	require.NoError(t, err)

	return envelope
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		details       messaging.TransactionDetails
		expectedState State
		expectedEvent string
		wantReason    bool
	}{
		{
			name:          "valid input",
			details:       details("acc-1", "acc-2", 100),
			expectedState: StateValid,
			expectedEvent: messaging.EventTransferValidated,
		},
		{
			name:          "empty source account",
			details:       details("", "acc-2", 100),
			expectedState: StateInvalid,
			expectedEvent: messaging.EventInvalidAccount,
			wantReason:    true,
		},
		{
			name:          "empty destination account",
			details:       details("acc-1", "", 100),
			expectedState: StateInvalid,
			expectedEvent: messaging.EventInvalidAccount,
			wantReason:    true,
		},
		{
			name:          "zero amount",
			details:       details("acc-1", "acc-2", 0),
			expectedState: StateInvalid,
			expectedEvent: messaging.EventInvalidAmount,
			wantReason:    true,
		},
		{
			name:          "negative amount",
			details:       details("acc-1", "acc-2", -10),
			expectedState: StateInvalid,
			expectedEvent: messaging.EventInvalidAmount,
			wantReason:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			transfer := NewInitialTransfer("tx-1", tt.details)
			assert.Equal(t, StateNone, transfer.State)

			eventType, reason := transfer.Validate()

			assert.Equal(t, tt.expectedState, transfer.State)
			assert.Equal(t, tt.expectedEvent, eventType)

			if tt.wantReason {
				assert.NotEmpty(t, reason)
			} else {
				assert.Empty(t, reason)
			}
		})
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()

	transfer := NewInitialTransfer("tx-1", details("", "", -1))

	eventType := transfer.Cancel()

	assert.Equal(t, StateCancelled, transfer.State)
	assert.Equal(t, messaging.EventTransferCanceled, eventType)
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

		_, err := NewProcessor(repository.NewInMemory[InitialTransfer](), nil)
		assert.ErrorIs(t, err, ErrNilProducer)
	})
}

func TestProcess(t *testing.T) {
	t.Parallel()

	t.Run("valid transfer persists aggregate and confirms", func(t *testing.T) {
		t.Parallel()

		store := repository.NewInMemory[InitialTransfer]()
		producer := &fakeProducer{}

		processor, err := NewProcessor(store, producer)
		require.NoError(t, err)

		envelope := commandEnvelope(t, messaging.CommandValidateTransfer, details("acc-1", "acc-2", 100))
		require.NoError(t, processor.Process(context.Background(), envelope))

		stored := store.Items()
		require.Len(t, stored, 1)
		assert.Equal(t, StateValid, stored[0].State)
		assert.Equal(t, "tx-1", stored[0].TransactionID)

		require.Len(t, producer.events, 1)
		assert.Equal(t, messaging.EventTransferValidated, producer.events[0].Header.MessageType)
		assert.Equal(t, messaging.SourceValidator, producer.events[0].Header.Source)
		assert.Equal(t, "tx-1", producer.events[0].Header.TransactionID)
	})

	t.Run("rejected transfer reports the reason", func(t *testing.T) {
		t.Parallel()

		store := repository.NewInMemory[InitialTransfer]()
		producer := &fakeProducer{}

		processor, err := NewProcessor(store, producer)
		require.NoError(t, err)

		envelope := commandEnvelope(t, messaging.CommandValidateTransfer, details("", "acc-2", 100))
		require.NoError(t, processor.Process(context.Background(), envelope))

		stored := store.Items()
		require.Len(t, stored, 1)
		assert.Equal(t, StateInvalid, stored[0].State)

		require.Len(t, producer.events, 1)
		event := producer.events[0]
		assert.Equal(t, messaging.EventInvalidAccount, event.Header.MessageType)
		require.NotNil(t, event.Content)
		require.NotNil(t, event.Content.Error)
		assert.NotEmpty(t, event.Content.Error.Message)
	})

	t.Run("store failure converts to failure event", func(t *testing.T) {
		t.Parallel()

		producer := &fakeProducer{}

		processor, err := NewProcessor(failingStore{}, producer)
		require.NoError(t, err)

		envelope := commandEnvelope(t, messaging.CommandValidateTransfer, details("acc-1", "acc-2", 100))
		require.NoError(t, processor.Process(context.Background(), envelope))

		require.Len(t, producer.events, 1)
		assert.Equal(t, messaging.EventOtherReasonValidationFailed, producer.events[0].Header.MessageType)
	})

	t.Run("failure event publish error escapes", func(t *testing.T) {
		t.Parallel()

		processor, err := NewProcessor(failingStore{}, &fakeProducer{err: errors.New("broker down")})
		require.NoError(t, err)

		envelope := commandEnvelope(t, messaging.CommandValidateTransfer, details("acc-1", "acc-2", 100))
		assert.Error(t, processor.Process(context.Background(), envelope))
	})
}

func TestProcessCancel(t *testing.T) {
	t.Parallel()

	store := repository.NewInMemory[InitialTransfer]()
	producer := &fakeProducer{}

	processor, err := NewProcessor(store, producer)
	require.NoError(t, err)

	envelope := commandEnvelope(t, messaging.CommandCancelTransfer, details("acc-1", "acc-2", 100))
	require.NoError(t, processor.ProcessCancel(context.Background(), envelope))

	stored := store.Items()
	require.Len(t, stored, 1)
	assert.Equal(t, StateCancelled, stored[0].State)

	require.Len(t, producer.events, 1)
	assert.Equal(t, messaging.EventTransferCanceled, producer.events[0].Header.MessageType)
}

func TestProcessUndecodableBody(t *testing.T) {
	t.Parallel()

	store := repository.NewInMemory[InitialTransfer]()
	producer := &fakeProducer{}

	processor, err := NewProcessor(store, producer)
	require.NoError(t, err)

	envelope, err := messaging.NewEnvelope([]byte(`{"header":{"messageType":"ValidateTransferCommand"},"content":[]}`))
	require.NoError(t, err)

	assert.Error(t, processor.Process(context.Background(), envelope))
	assert.Empty(t, store.Items())
	assert.Empty(t, producer.events)
}
