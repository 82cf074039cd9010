package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/atlassian/gossipmember"
	"github.com/atlassian/gossipmember/pkg/clocks"
	"github.com/atlassian/gossipmember/pkg/table"
	"github.com/atlassian/gossipmember/pkg/wire"
)

var (
	// ErrAlreadyStarted is returned by Start if the engine is not in the Created state.
	ErrAlreadyStarted = errors.New("engine already started")
	// ErrJoinTimeout is returned by AwaitJoin if no join response arrived in time.
	ErrJoinTimeout = errors.New("timed out joining group")
	// ErrStopped is returned by AwaitJoin if the engine stopped before joining.
	ErrStopped = errors.New("engine stopped")
)

// Engine runs the membership protocol for one node.
//
// All exported methods are safe to call from multiple goroutines, they are
// serialized so the protocol itself never runs concurrently with itself.
type Engine struct {
	logger    logrus.FieldLogger
	cfg       Config
	clock     gossipmember.Clock
	transport gossipmember.Transport
	sink      gossipmember.Sink
	inbound   <-chan []byte
	rnd       *rand.Rand

	mu        sync.Mutex
	state     State
	heartbeat int64
	table     *table.Table

	joined    chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// New creates an Engine in the Created state.
func New(
	logger logrus.FieldLogger,
	cfg Config,
	clck gossipmember.Clock,
	transport gossipmember.Transport,
	sink gossipmember.Sink,
) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = gossipmember.NoopSink{}
	}
	return &Engine{
		logger:    logger.WithField("self", cfg.Self.String()),
		cfg:       cfg,
		clock:     clck,
		transport: transport,
		sink:      sink,
		inbound:   transport.Inbound(cfg.Self),
		rnd:       rand.New(rand.NewSource(int64(cfg.Self.ID)<<16 | int64(uint16(cfg.Self.Port)))),
		state:     Created,
		table:     table.New(cfg.Self, cfg.MaxNodes),
		joined:    make(chan struct{}),
		stopped:   make(chan struct{}),
	}, nil
}

// Self returns the address of this node.
func (e *Engine) Self() gossipmember.Address {
	return e.cfg.Self
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Heartbeat returns this node's own heartbeat.
func (e *Engine) Heartbeat() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.heartbeat
}

// Members returns a copy of the membership table.
func (e *Engine) Members() []gossipmember.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table.Snapshot()
}

// Start moves the engine out of the Created state.  The introducer becomes
// Active immediately with an empty table, every other node sends a join
// request and becomes Joining.  An error sending the join request is
// returned, but the engine stays Joining so the caller may Rejoin.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Created {
		return ErrAlreadyStarted
	}

	if e.cfg.IsBootstrap() {
		e.logger.Info("Starting up group")
		e.setState(Active)
		return nil
	}

	e.setState(Joining)
	e.logger.WithField("bootstrap", e.cfg.Bootstrap.String()).Info("Trying to join")
	return e.sendJoinRequest(ctx)
}

// Rejoin resends the join request if the engine is still Joining.  It is
// intended for callers implementing their own retry policy.
func (e *Engine) Rejoin(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Joining {
		return nil
	}
	return e.sendJoinRequest(ctx)
}

func (e *Engine) sendJoinRequest(ctx context.Context) error {
	if err := e.send(ctx, wire.KindJoinRequest, *e.cfg.Bootstrap, e.table.Snapshot()); err != nil {
		return fmt.Errorf("failed to send join request: %w", err)
	}
	return nil
}

// AwaitJoin blocks until the engine is Active.  If ctx is done first,
// ErrJoinTimeout is returned, and if the engine stops first, ErrStopped.
func (e *Engine) AwaitJoin(ctx context.Context) error {
	select {
	case <-e.joined:
		return nil
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrJoinTimeout, ctx.Err())
	}
}

// Stop leaves the group.  The table is cleared, the heartbeat is zeroed, and
// the engine ignores every subsequent tick.  There is no way back.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Stopped {
		return
	}
	e.table.Clear()
	e.heartbeat = 0
	e.setState(Stopped)
	e.notifyStopped()
	e.logger.Info("Stopped")
}

// Crash stops the engine abruptly, as if the process had died.  Unlike Stop
// the table is left in place.  Peers only find out through silence.
func (e *Engine) Crash() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Stopped {
		return
	}
	e.setState(Stopped)
	e.notifyStopped()
	e.logger.Warn("Crashed")
}

// notifyStopped tells the sink no more events follow for this node.
func (e *Engine) notifyStopped() {
	if so, ok := e.sink.(gossipmember.StopObserver); ok {
		so.ObserverStopped(e.cfg.Self)
	}
}

// setState must be called with mu held.
func (e *Engine) setState(s State) {
	e.logger.WithFields(logrus.Fields{
		"from": e.state.String(),
		"to":   s.String(),
	}).Debug("State change")
	e.state = s
	switch s {
	case Active:
		close(e.joined)
	case Stopped:
		e.closeOnce.Do(func() { close(e.stopped) })
	}
}

// Tick performs one round of the protocol: every queued message is handled,
// then, if the node is Active, stale peers are evicted and the table is
// gossiped.  Ticks are no-ops outside the Joining and Active states.
func (e *Engine) Tick(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.handlesMessages() {
		return
	}

	now := e.clock.CurrentTick()
	e.drain(ctx, now)

	if e.state != Active {
		return
	}
	e.detectFailures(now)
	e.disseminate(ctx)
}

// Run ticks the engine every TickPeriod until the context is closed, then
// stops it.  Ticks are aligned to the middle of each period since
// clocks.Epoch, so every tick of a clocks.Wall sharing that epoch is seen
// exactly once.  The clock is taken from the context, so tests can drive it
// with a mock.
func (e *Engine) Run(ctx context.Context) {
	ticker := clocks.NewAlignedTicker(ctx, clocks.Epoch, e.cfg.TickPeriod, e.cfg.TickPeriod/2)
	defer ticker.Stop()
	defer e.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// drain handles inbound payloads until the queue is empty.
func (e *Engine) drain(ctx context.Context, now gossipmember.Tick) {
	for {
		select {
		case payload, ok := <-e.inbound:
			if !ok {
				return
			}
			e.handlePayload(ctx, payload, now)
		default:
			return
		}
	}
}

func (e *Engine) handlePayload(ctx context.Context, payload []byte, now gossipmember.Tick) {
	m, err := wire.Decode(payload)
	if err != nil {
		// Routine at the transport boundary, not a failure.
		e.logger.WithError(err).Debug("Dropped undecodable message")
		return
	}
	e.handle(ctx, m, now)
}

func (e *Engine) handle(ctx context.Context, m wire.Message, now gossipmember.Tick) {
	from := m.Sender()
	switch m := m.(type) {
	case *wire.JoinRequest:
		e.refresh(from, now)
		if err := e.send(ctx, wire.KindJoinResponse, from, e.table.Snapshot()); err != nil {
			e.logger.WithError(err).WithField("peer", from.String()).Warn("Failed to send join response")
		}
	case *wire.JoinResponse:
		if e.state != Joining {
			e.logger.WithField("peer", from.String()).Debug("Dropped join response, already joined")
			return
		}
		e.refresh(from, now)
		e.merge(m.Table, now)
		e.setState(Active)
		e.logger.WithField("peer", from.String()).Info("Joined group")
	case *wire.Gossip:
		if e.state != Active {
			e.logger.WithField("peer", from.String()).Debug("Dropped gossip while joining")
			return
		}
		e.refresh(from, now)
		e.merge(m.Table, now)
	}
}

// refresh applies the direct-refresh rule for a peer a message came from.
func (e *Engine) refresh(from gossipmember.Address, now gossipmember.Tick) {
	if e.table.Refresh(from, now) {
		e.sink.MemberAdded(e.cfg.Self, from)
	}
}

// merge applies the gossip-merge rule to every row of a received table.
func (e *Engine) merge(entries []gossipmember.Entry, now gossipmember.Tick) {
	for _, entry := range entries {
		if e.table.Merge(entry, now, e.cfg.RemoveThreshold) {
			e.sink.MemberAdded(e.cfg.Self, entry.Address)
		}
	}
}

// detectFailures evicts every peer which has been silent for RemoveThreshold ticks.
func (e *Engine) detectFailures(now gossipmember.Tick) {
	for _, addr := range e.table.Expire(now, e.cfg.RemoveThreshold) {
		e.sink.MemberRemoved(e.cfg.Self, addr)
	}
}

// disseminate bumps the heartbeat and pushes the table to gossip targets.
func (e *Engine) disseminate(ctx context.Context) {
	e.heartbeat++

	m := &wire.Gossip{From: e.cfg.Self, Table: e.table.Snapshot()}
	payload, err := wire.Encode(m)
	if err != nil {
		e.logger.WithError(err).Error("Failed to encode gossip")
		return
	}

	for _, target := range e.gossipTargets() {
		if err := e.transport.Send(ctx, e.cfg.Self, target, payload); err != nil {
			e.logger.WithError(err).WithField("peer", target.String()).Debug("Failed to send gossip")
		}
	}
}

// gossipTargets returns every peer, or GossipFanout random peers if set.
func (e *Engine) gossipTargets() []gossipmember.Address {
	peers := e.table.Addresses()
	n := e.cfg.GossipFanout
	if n <= 0 || n >= len(peers) {
		return peers
	}
	e.rnd.Shuffle(len(peers), func(i, j int) {
		peers[i], peers[j] = peers[j], peers[i]
	})
	return peers[:n]
}

func (e *Engine) send(ctx context.Context, kind wire.Kind, to gossipmember.Address, entries []gossipmember.Entry) error {
	m, err := wire.New(kind, e.cfg.Self, entries)
	if err != nil {
		return err
	}
	payload, err := wire.Encode(m)
	if err != nil {
		return err
	}
	return e.transport.Send(ctx, e.cfg.Self, to, payload)
}
