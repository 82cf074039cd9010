package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlassian/gossipmember"
	"github.com/atlassian/gossipmember/internal/fixtures"
	"github.com/atlassian/gossipmember/pkg/clocks"
	"github.com/atlassian/gossipmember/pkg/sinks"
	"github.com/atlassian/gossipmember/pkg/transport"
	"github.com/atlassian/gossipmember/pkg/wire"
)

const testThreshold = gossipmember.Tick(5)

var (
	addrA = gossipmember.Address{ID: 1, Port: 0}
	addrB = gossipmember.Address{ID: 2, Port: 0}
	addrC = gossipmember.Address{ID: 3, Port: 0}
)

// cluster is a set of engines sharing a loopback transport, a manual clock
// and a recording sink.
type cluster struct {
	t         *testing.T
	clock     *clocks.Manual
	transport *transport.Loopback
	sink      *sinks.Recorder
	nodes     []*Engine
}

func newCluster(t *testing.T) *cluster {
	clck := clocks.NewManual(0)
	return &cluster{
		t:         t,
		clock:     clck,
		transport: transport.NewLoopback(256),
		sink:      sinks.NewRecorder(clck),
	}
}

func testConfig(self gossipmember.Address) Config {
	cfg := DefaultConfig(self)
	cfg.RemoveThreshold = testThreshold
	return cfg
}

func (c *cluster) add(self gossipmember.Address, opts ...func(*Config)) *Engine {
	cfg := testConfig(self)
	for _, opt := range opts {
		opt(&cfg)
	}
	e, err := New(fixtures.NewTestLogger(c.t), cfg, c.clock, c.transport, c.sink)
	require.NoError(c.t, err)
	c.nodes = append(c.nodes, e)
	return e
}

// round advances the clock by one tick, then ticks every node in order.
func (c *cluster) round() {
	c.clock.Advance(1)
	for _, n := range c.nodes {
		n.Tick(context.Background())
	}
}

// deliver queues m for to, as if sent over the network.
func (c *cluster) deliver(to gossipmember.Address, m wire.Message) {
	b, err := wire.Encode(m)
	require.NoError(c.t, err)
	require.NoError(c.t, c.transport.Send(context.Background(), m.Sender(), to, b))
}

func addresses(entries []gossipmember.Entry) []gossipmember.Address {
	addrs := make([]gossipmember.Address, 0, len(entries))
	for _, e := range entries {
		addrs = append(addrs, e.Address)
	}
	return addrs
}

func entryFor(entries []gossipmember.Entry, addr gossipmember.Address) (gossipmember.Entry, bool) {
	for _, e := range entries {
		if e.Address == addr {
			return e, true
		}
	}
	return gossipmember.Entry{}, false
}

// drainMessages decodes every message queued for addr.
func drainMessages(t *testing.T, q <-chan []byte) []wire.Message {
	var msgs []wire.Message
	for {
		select {
		case b := <-q:
			m, err := wire.Decode(b)
			require.NoError(t, err)
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func withFanout(n int) func(*Config) {
	return func(c *Config) { c.GossipFanout = n }
}

func withMaxNodes(n int) func(*Config) {
	return func(c *Config) { c.MaxNodes = n }
}
