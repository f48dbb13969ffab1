package orchestration

import (
	"time"
)

// AwaitWithTimeout waits for the named external signal, bounded by the
// given timeout. The deadline is derived from the context's replay-safe
// clock, never the ambient one.
//
// Both waits race concurrently. If the signal resolves first its payload
// is returned and the timer is cancelled. If the timer fires first the
// empty string is returned, which callers read as "no signal received".
func AwaitWithTimeout(octx Context, signal string, timeout time.Duration) (string, error) {
	if octx == nil {
		return "", ErrNilContext
	}

	if timeout < 0 {
		return "", ErrNegativeTimeout
	}

	timer, cancel := octx.CreateTimer(octx.CurrentTime().Add(timeout))

	select {
	case payload := <-octx.WaitForSignal(signal):
		cancel()

		return payload, nil
	case <-timer:
		return "", nil
	}
}
