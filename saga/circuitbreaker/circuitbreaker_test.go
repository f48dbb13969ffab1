package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MaxRequests:         1,
		Interval:            time.Minute,
		OpenTimeout:         time.Minute,
		ConsecutiveFailures: 2,
		FailureRatio:        0.9,
		MinRequests:         100,
	}
}

func TestExecuteSuccess(t *testing.T) {
	t.Parallel()

	breaker := New("test", testConfig(), nil)

	result, err := breaker.Execute(func() (any, error) {
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestExecutePropagatesError(t *testing.T) {
	t.Parallel()

	breaker := New("test", testConfig(), nil)
	downstreamErr := errors.New("downstream unavailable")

	_, err := breaker.Execute(func() (any, error) {
		return nil, downstreamErr
	})

	require.ErrorIs(t, err, downstreamErr)
	assert.False(t, IsOpen(err))
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerOpensOnConsecutiveFailures(t *testing.T) {
	t.Parallel()

	breaker := New("test", testConfig(), nil)
	downstreamErr := errors.New("downstream unavailable")

	for i := 0; i < 2; i++ {
		_, err := breaker.Execute(func() (any, error) {
			return nil, downstreamErr
		})
		require.Error(t, err)
	}

	assert.Equal(t, StateOpen, breaker.State())

	calls := 0

	_, err := breaker.Execute(func() (any, error) {
		calls++

		return nil, nil
	})

	require.Error(t, err)
	assert.True(t, IsOpen(err))
	assert.Zero(t, calls)
}

func TestSuccessResetsConsecutiveFailures(t *testing.T) {
	t.Parallel()

	breaker := New("test", testConfig(), nil)
	downstreamErr := errors.New("downstream unavailable")

	_, err := breaker.Execute(func() (any, error) { return nil, downstreamErr })
	require.Error(t, err)

	_, err = breaker.Execute(func() (any, error) { return nil, nil })
	require.NoError(t, err)

	_, err = breaker.Execute(func() (any, error) { return nil, downstreamErr })
	require.Error(t, err)

	assert.Equal(t, StateClosed, breaker.State())

	counts := breaker.Counts()
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
}

func TestIsOpen(t *testing.T) {
	t.Parallel()

	assert.False(t, IsOpen(nil))
	assert.False(t, IsOpen(errors.New("plain error")))
}
