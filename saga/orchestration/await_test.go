package orchestration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwaitWithTimeout(t *testing.T) {
	t.Parallel()

	t.Run("nil context is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := AwaitWithTimeout(nil, SignalValidator, time.Second)
		assert.ErrorIs(t, err, ErrNilContext)
	})

	t.Run("negative timeout is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := AwaitWithTimeout(NewLocal("tx-1"), SignalValidator, -time.Second)
		assert.ErrorIs(t, err, ErrNegativeTimeout)
	})

	t.Run("signal wins over the timer", func(t *testing.T) {
		t.Parallel()

		local := NewLocal("tx-1")
		local.Signal(SignalValidator, "TransferValidatedEvent")

		payload, err := AwaitWithTimeout(local, SignalValidator, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "TransferValidatedEvent", payload)
	})

	t.Run("timer wins when no signal arrives", func(t *testing.T) {
		t.Parallel()

		local := NewLocal("tx-1")

		payload, err := AwaitWithTimeout(local, SignalValidator, 10*time.Millisecond)
		require.NoError(t, err)
		assert.Empty(t, payload)
	})

	t.Run("late signal stays queued for the next wait", func(t *testing.T) {
		t.Parallel()

		local := NewLocal("tx-1")

		payload, err := AwaitWithTimeout(local, SignalTransfer, 10*time.Millisecond)
		require.NoError(t, err)
		require.Empty(t, payload)

		local.Signal(SignalTransfer, "TransferSucceededEvent")

		payload, err = AwaitWithTimeout(local, SignalTransfer, time.Second)
		require.NoError(t, err)
		assert.Equal(t, "TransferSucceededEvent", payload)
	})

	t.Run("signals on other names do not resolve the wait", func(t *testing.T) {
		t.Parallel()

		local := NewLocal("tx-1")
		local.Signal(SignalReceipt, "ReceiptIssuedEvent")

		payload, err := AwaitWithTimeout(local, SignalValidator, 10*time.Millisecond)
		require.NoError(t, err)
		assert.Empty(t, payload)
	})
}
