// Package sim runs a whole group of membership engines in one process, over
// an in-memory network and a shared manual clock.  Nodes join one after the
// other, may crash on a schedule, and the resulting tables and membership
// events are returned for inspection.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/atlassian/gossipmember"
	"github.com/atlassian/gossipmember/pkg/clocks"
	"github.com/atlassian/gossipmember/pkg/engine"
	"github.com/atlassian/gossipmember/pkg/sinks"
	"github.com/atlassian/gossipmember/pkg/transport"
	"github.com/atlassian/gossipmember/pkg/util"
)

// Crash makes Node, an index into the group, fail at the start of tick At.
type Crash struct {
	Node int
	At   gossipmember.Tick
}

// Options configures a simulation.
type Options struct {
	// Nodes is the size of the group.  Node i has address i+1:0, node 0 is the introducer.
	Nodes int
	// Ticks is the number of rounds to run.
	Ticks int
	// JoinInterval is the number of ticks between two consecutive nodes starting.
	JoinInterval gossipmember.Tick
	// MaxNodes bounds the node ids, defaults to Nodes+1.
	MaxNodes int
	// RemoveThreshold defaults to gossipmember.DefaultRemoveThreshold.
	RemoveThreshold gossipmember.Tick
	// GossipFanout is passed to every engine.
	GossipFanout int
	// QueueSize is the inbound queue size of every node, defaults to gossipmember.DefaultInboundBuffer.
	QueueSize int
	// DropRate is the fraction of sends which are lost.
	DropRate float64
	// SendLimit, if positive, is the number of sends per tick each node may make.
	SendLimit float64
	// Seed makes message loss reproducible.
	Seed int64
	// Crashes is the failure schedule.
	Crashes []Crash
	// Sink also receives every membership event, if not nil.
	Sink gossipmember.Sink
}

// NodeResult is the final state of a single node.
type NodeResult struct {
	Self      gossipmember.Address
	State     engine.State
	Heartbeat int64
	Members   []gossipmember.Entry
}

// Result is the outcome of a simulation.
type Result struct {
	Nodes   []NodeResult
	Events  []sinks.Event
	Sent    uint64
	Dropped uint64
}

// Address returns the address of node i.
func Address(i int) gossipmember.Address {
	return gossipmember.Address{ID: int32(i + 1), Port: 0}
}

func (o *Options) setDefaults() {
	if o.MaxNodes == 0 {
		o.MaxNodes = o.Nodes + 1
	}
	if o.RemoveThreshold == 0 {
		o.RemoveThreshold = gossipmember.DefaultRemoveThreshold
	}
	if o.QueueSize == 0 {
		o.QueueSize = gossipmember.DefaultInboundBuffer
	}
}

// Validate reports every problem with the options.
func (o Options) Validate() error {
	var err error
	if o.Nodes <= 0 {
		err = multierr.Append(err, errors.New("nodes must be positive"))
	}
	if o.Ticks < 0 {
		err = multierr.Append(err, errors.New("ticks must not be negative"))
	}
	if o.JoinInterval < 0 {
		err = multierr.Append(err, errors.New("join interval must not be negative"))
	}
	if o.DropRate < 0 || o.DropRate > 1 {
		err = multierr.Append(err, fmt.Errorf("drop rate %v outside [0, 1]", o.DropRate))
	}
	for _, c := range o.Crashes {
		if c.Node < 0 || c.Node >= o.Nodes {
			err = multierr.Append(err, fmt.Errorf("crash of unknown node %d", c.Node))
		}
	}
	return err
}

// Run runs a single simulation.  It stops early, returning the context
// error, if ctx is done.
func Run(ctx context.Context, logger logrus.FieldLogger, opts Options) (*Result, error) {
	opts.setDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	clck := clocks.NewManual(0)
	var loopbackOpts []transport.LoopbackOption
	if opts.DropRate > 0 {
		loopbackOpts = append(loopbackOpts, transport.WithDropRate(opts.DropRate, opts.Seed))
	}
	if opts.SendLimit > 0 {
		loopbackOpts = append(loopbackOpts, transport.WithSendLimit(clck, opts.SendLimit, int(opts.SendLimit)+1))
	}
	network := transport.NewLoopback(opts.QueueSize, loopbackOpts...)
	defer network.Close()

	recorder := sinks.NewRecorder(clck)
	var sink gossipmember.Sink = recorder
	if opts.Sink != nil {
		sink = sinks.Multi{recorder, opts.Sink}
	}

	introducer := Address(0)
	nodes := make([]*engine.Engine, 0, opts.Nodes)
	for i := 0; i < opts.Nodes; i++ {
		cfg := engine.DefaultConfig(Address(i))
		cfg.Bootstrap = &introducer
		cfg.MaxNodes = opts.MaxNodes
		cfg.RemoveThreshold = opts.RemoveThreshold
		cfg.GossipFanout = opts.GossipFanout
		e, err := engine.New(logger, cfg, clck, network, sink)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		nodes = append(nodes, e)
	}

	crashes := map[gossipmember.Tick][]int{}
	for _, c := range opts.Crashes {
		crashes[c.At] = append(crashes[c.At], c.Node)
	}

	for round := 0; round < opts.Ticks; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		now := clck.CurrentTick()
		for i, n := range nodes {
			startAt := gossipmember.Tick(i) * opts.JoinInterval
			switch n.State() {
			case engine.Created:
				if startAt <= now {
					if err := n.Start(ctx); err != nil {
						logger.WithError(err).WithField("node", i).Warn("Failed to start node")
					}
				}
			case engine.Joining:
				// A lost join request or response would leave the node waiting forever.
				if (now-startAt)%opts.RemoveThreshold == 0 {
					if err := n.Rejoin(ctx); err != nil {
						logger.WithError(err).WithField("node", i).Warn("Failed to rejoin")
					}
				}
			}
		}
		for _, i := range crashes[now] {
			nodes[i].Crash()
		}

		clck.Advance(1)
		for _, n := range nodes {
			n.Tick(ctx)
		}
	}

	result := &Result{
		Nodes:   make([]NodeResult, 0, len(nodes)),
		Events:  recorder.Events(),
		Sent:    network.Sent(),
		Dropped: network.Dropped(),
	}
	for _, n := range nodes {
		members := n.Members()
		sort.Slice(members, func(i, j int) bool {
			return members[i].Address.ID < members[j].Address.ID
		})
		result.Nodes = append(result.Nodes, NodeResult{
			Self:      n.Self(),
			State:     n.State(),
			Heartbeat: n.Heartbeat(),
			Members:   members,
		})
	}
	return result, nil
}

// RunAll runs independent simulations, at most parallelism at once, zero
// meaning all of them.  results[i] and errs[i] belong to opts[i].
func RunAll(ctx context.Context, logger logrus.FieldLogger, opts []Options, parallelism int) ([]*Result, []error) {
	results := make([]*Result, len(opts))
	errs := make([]error, len(opts))
	for i := range errs {
		errs[i] = context.Canceled
	}
	util.ForEachLimited(ctx, len(opts), parallelism, func(ctx context.Context, i int) {
		results[i], errs[i] = Run(ctx, logger.WithField("sim", i), opts[i])
	})
	return results, errs
}

// Converged reports if every running node knows exactly every other running node.
func (r *Result) Converged() bool {
	running := map[gossipmember.Address]bool{}
	for _, n := range r.Nodes {
		if n.State == engine.Active {
			running[n.Self] = true
		}
	}
	for _, n := range r.Nodes {
		if !running[n.Self] {
			continue
		}
		if len(n.Members) != len(running)-1 {
			return false
		}
		for _, m := range n.Members {
			if !running[m.Address] {
				return false
			}
		}
	}
	return true
}
