package fixtures

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tilinna/clock"
)

// NewMockClockContext attaches a mock clock starting at unix time 1 to a context.
func NewMockClockContext(ctx context.Context) (context.Context, *clock.Mock) {
	clck := clock.NewMock(time.Unix(1, 0))
	return clock.Context(ctx, clck), clck
}

// EnsureAttachedTimers waits in wall time until the mock clock has at least
// count active timers, failing the test after timeout.  Starting a ticker is
// how a goroutine signals it is ready to consume mock time.
func EnsureAttachedTimers(tb testing.TB, clck *clock.Mock, count int, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for clck.Len() < count {
		if time.Now().After(deadline) {
			require.Fail(tb, "timers not attached", "wanted %d, have %d", count, clck.Len())
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// NextStep will advance the supplied clock.Mock until it moves, or the context.Context is canceled (which typically
// means it timed out in wall-time).  This is useful when testing things that exist inside goroutines, when it's not
// possible to tell when the goroutine is ready to consume mock time.
func NextStep(ctx context.Context, clck *clock.Mock) {
	for _, d := clck.AddNext(); d == 0 && ctx.Err() == nil; _, d = clck.AddNext() {
		time.Sleep(1) // Allows the system to actually idle, runtime.Gosched() does not.
	}
}
