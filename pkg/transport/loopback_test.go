package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlassian/gossipmember"
	"github.com/atlassian/gossipmember/pkg/clocks"
)

var (
	a = gossipmember.Address{ID: 1}
	b = gossipmember.Address{ID: 2}
)

func TestLoopbackDelivers(t *testing.T) {
	t.Parallel()
	l := NewLoopback(4)
	ctx := context.Background()

	payload := []byte("hello")
	require.NoError(t, l.Send(ctx, a, b, payload))
	payload[0] = 'j' // The receiver must not see later mutation.

	select {
	case got := <-l.Inbound(b):
		require.Equal(t, []byte("hello"), got)
	default:
		require.Fail(t, "nothing delivered")
	}
	require.EqualValues(t, 1, l.Sent())
}

func TestLoopbackQueueFull(t *testing.T) {
	t.Parallel()
	l := NewLoopback(1)
	ctx := context.Background()

	require.NoError(t, l.Send(ctx, a, b, []byte("1")))
	require.ErrorIs(t, l.Send(ctx, a, b, []byte("2")), ErrQueueFull)
	require.EqualValues(t, 1, l.Dropped())
}

func TestLoopbackDropRate(t *testing.T) {
	t.Parallel()
	l := NewLoopback(1000, WithDropRate(1, 1))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, l.Send(ctx, a, b, []byte("x")))
	}
	require.Len(t, l.Inbound(b), 0)
	require.EqualValues(t, 10, l.Dropped())
}

func TestLoopbackSendLimitPerTick(t *testing.T) {
	t.Parallel()
	clck := clocks.NewManual(0)
	l := NewLoopback(100, WithSendLimit(clck, 2, 2))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Send(ctx, a, b, []byte("x")))
	}
	assert.Len(t, l.Inbound(b), 2)

	// Other senders have their own budget.
	require.NoError(t, l.Send(ctx, b, a, []byte("y")))
	assert.Len(t, l.Inbound(a), 1)

	clck.Advance(1)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Send(ctx, a, b, []byte("x")))
	}
	assert.Len(t, l.Inbound(b), 4)
	assert.EqualValues(t, 6, l.Dropped())
}

func TestLoopbackClose(t *testing.T) {
	t.Parallel()
	l := NewLoopback(2)
	ctx := context.Background()
	require.NoError(t, l.Send(ctx, a, b, []byte("last")))

	require.NoError(t, l.Close())
	require.ErrorIs(t, l.Send(ctx, a, b, []byte("x")), ErrClosed)

	q := l.Inbound(b)
	p, ok := <-q
	require.True(t, ok)
	require.Equal(t, []byte("last"), p)
	_, ok = <-q
	require.False(t, ok)
}
