package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlassian/gossipmember"
	"github.com/atlassian/gossipmember/internal/fixtures"
	"github.com/atlassian/gossipmember/pkg/engine"
	"github.com/atlassian/gossipmember/pkg/sinks"
)

func TestRunConverges(t *testing.T) {
	t.Parallel()
	r, err := Run(context.Background(), fixtures.NewTestLogger(t), Options{
		Nodes:           5,
		Ticks:           15,
		JoinInterval:    1,
		RemoveThreshold: 5,
	})
	require.NoError(t, err)
	require.Len(t, r.Nodes, 5)

	for i, n := range r.Nodes {
		assert.Equal(t, Address(i), n.Self)
		assert.Equal(t, engine.Active, n.State, "node %d", i)
		assert.Len(t, n.Members, 4, "node %d", i)
		assert.Positive(t, n.Heartbeat)
	}
	assert.True(t, r.Converged())
	assert.Positive(t, r.Sent)
	assert.Zero(t, r.Dropped)

	for _, e := range r.Events {
		assert.True(t, e.Added, "unexpected removal %+v", e)
	}
}

func TestRunSelfNeverInTable(t *testing.T) {
	t.Parallel()
	r, err := Run(context.Background(), fixtures.NewTestLogger(t), Options{
		Nodes:        6,
		Ticks:        30,
		JoinInterval: 2,
		GossipFanout: 2,
	})
	require.NoError(t, err)

	for _, n := range r.Nodes {
		seen := map[gossipmember.Address]bool{}
		for _, m := range n.Members {
			require.NotEqual(t, n.Self, m.Address)
			require.False(t, seen[m.Address], "duplicate %v", m.Address)
			seen[m.Address] = true
		}
	}
	for _, e := range r.Events {
		require.NotEqual(t, e.Observer, e.Member)
	}
}

func TestRunCrashIsDetected(t *testing.T) {
	t.Parallel()
	crashed := 2
	r, err := Run(context.Background(), fixtures.NewTestLogger(t), Options{
		Nodes:           4,
		Ticks:           40,
		JoinInterval:    1,
		RemoveThreshold: 5,
		Crashes:         []Crash{{Node: crashed, At: 10}},
	})
	require.NoError(t, err)

	require.Equal(t, engine.Stopped, r.Nodes[crashed].State)
	require.True(t, r.Converged())

	for i, n := range r.Nodes {
		if i == crashed {
			continue
		}
		require.Len(t, n.Members, 2, "node %d", i)
		removals := 0
		for _, e := range r.Events {
			if !e.Added && e.Observer == n.Self && e.Member == Address(crashed) {
				removals++
				assert.Greater(t, e.Tick, gossipmember.Tick(10))
			}
		}
		assert.Positive(t, removals, "node %d never removed the crashed node", i)
	}
}

func TestRunWithLoss(t *testing.T) {
	t.Parallel()
	r, err := Run(context.Background(), fixtures.NewTestLogger(t), Options{
		Nodes:        4,
		Ticks:        100,
		JoinInterval: 1,
		DropRate:     0.05,
		Seed:         42,
	})
	require.NoError(t, err)
	assert.Positive(t, r.Dropped)
	assert.True(t, r.Converged())
}

func TestRunWithSendLimit(t *testing.T) {
	t.Parallel()
	r, err := Run(context.Background(), fixtures.NewTestLogger(t), Options{
		Nodes:        5,
		Ticks:        10,
		JoinInterval: 0,
		SendLimit:    1,
	})
	require.NoError(t, err)
	assert.Positive(t, r.Dropped)
}

func TestRunExtraSink(t *testing.T) {
	t.Parallel()
	extra := sinks.NewRecorder(&fixedClock{})
	r, err := Run(context.Background(), fixtures.NewTestLogger(t), Options{
		Nodes:        2,
		Ticks:        3,
		JoinInterval: 1,
		Sink:         extra,
	})
	require.NoError(t, err)
	require.Len(t, extra.Events(), len(r.Events))
	require.NotEmpty(t, r.Events)
}

func TestRunInvalidOptions(t *testing.T) {
	t.Parallel()
	_, err := Run(context.Background(), fixtures.NewTestLogger(t), Options{
		Nodes:    0,
		Ticks:    -1,
		DropRate: 2,
		Crashes:  []Crash{{Node: 3}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nodes must be positive")
	assert.Contains(t, err.Error(), "ticks must not be negative")
	assert.Contains(t, err.Error(), "drop rate")
	assert.Contains(t, err.Error(), "crash of unknown node 3")
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, fixtures.NewTestLogger(t), Options{Nodes: 2, Ticks: 5})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunAll(t *testing.T) {
	t.Parallel()
	opts := []Options{
		{Nodes: 2, Ticks: 5, JoinInterval: 1},
		{Nodes: 3, Ticks: 8, JoinInterval: 1},
		{Nodes: 0},
	}
	results, errs := RunAll(context.Background(), fixtures.NewTestLogger(t), opts, 2)
	require.Len(t, results, 3)
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Error(t, errs[2])
	require.Len(t, results[0].Nodes, 2)
	require.Len(t, results[1].Nodes, 3)
	require.Nil(t, results[2])
}

func TestConverged(t *testing.T) {
	t.Parallel()
	a, b, c := Address(0), Address(1), Address(2)
	r := &Result{Nodes: []NodeResult{
		{Self: a, State: engine.Active, Members: []gossipmember.Entry{{Address: b}}},
		{Self: b, State: engine.Active, Members: []gossipmember.Entry{{Address: a}}},
		{Self: c, State: engine.Stopped, Members: []gossipmember.Entry{{Address: a}, {Address: b}}},
	}}
	require.True(t, r.Converged())

	r.Nodes[0].Members = append(r.Nodes[0].Members, gossipmember.Entry{Address: c})
	require.False(t, r.Converged())
}

type fixedClock struct{}

func (fixedClock) CurrentTick() gossipmember.Tick { return 0 }
