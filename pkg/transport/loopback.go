package transport

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/atlassian/gossipmember"
)

var (
	// ErrQueueFull is returned when the receiver's inbound queue has no room.
	ErrQueueFull = errors.New("inbound queue full")
	// ErrClosed is returned when sending on a closed transport.
	ErrClosed = errors.New("transport closed")
)

// Loopback is an in-process Transport.  Every address gets a bounded queue,
// created on first use.  It can drop messages at random and cap how many
// messages each sender may send per tick, to exercise the protocol under
// loss.
type Loopback struct {
	queueSize int

	mu       sync.Mutex
	closed   bool
	queues   map[gossipmember.Address]chan []byte
	limiters map[gossipmember.Address]*rate.Limiter
	rnd      *rand.Rand

	dropRate  float64
	sendLimit rate.Limit
	sendBurst int
	clock     gossipmember.Clock

	sent    uint64 // atomic
	dropped uint64 // atomic
}

var _ gossipmember.Transport = (*Loopback)(nil)

// LoopbackOption configures a Loopback.
type LoopbackOption func(*Loopback)

// WithDropRate makes the transport silently drop a fraction of messages,
// chosen by a random source seeded with seed.
func WithDropRate(rate float64, seed int64) LoopbackOption {
	return func(l *Loopback) {
		l.dropRate = rate
		l.rnd = rand.New(rand.NewSource(seed))
	}
}

// WithSendLimit caps every sender to perTick messages per tick of clck,
// with the given burst.  Messages over the cap are dropped.
func WithSendLimit(clck gossipmember.Clock, perTick float64, burst int) LoopbackOption {
	return func(l *Loopback) {
		l.clock = clck
		l.sendLimit = rate.Limit(perTick)
		l.sendBurst = burst
	}
}

// NewLoopback creates a Loopback with queueSize slots per address.
func NewLoopback(queueSize int, opts ...LoopbackOption) *Loopback {
	l := &Loopback{
		queueSize: queueSize,
		queues:    make(map[gossipmember.Address]chan []byte),
		limiters:  make(map[gossipmember.Address]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// queue must be called with mu held.
func (l *Loopback) queue(addr gossipmember.Address) chan []byte {
	q, ok := l.queues[addr]
	if !ok {
		q = make(chan []byte, l.queueSize)
		l.queues[addr] = q
	}
	return q
}

// allowed must be called with mu held.
func (l *Loopback) allowed(from gossipmember.Address) bool {
	if l.rnd != nil && l.rnd.Float64() < l.dropRate {
		return false
	}
	if l.clock == nil {
		return true
	}
	lim, ok := l.limiters[from]
	if !ok {
		lim = rate.NewLimiter(l.sendLimit, l.sendBurst)
		l.limiters[from] = lim
	}
	// Ticks are mapped onto seconds, which keeps the limiter deterministic.
	return lim.AllowN(time.Unix(int64(l.clock.CurrentTick()), 0), 1)
}

func (l *Loopback) Send(ctx context.Context, from, to gossipmember.Address, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if !l.allowed(from) {
		atomic.AddUint64(&l.dropped, 1)
		return nil
	}

	// The receiver owns its copy.
	p := make([]byte, len(payload))
	copy(p, payload)

	select {
	case l.queue(to) <- p:
		atomic.AddUint64(&l.sent, 1)
		return nil
	default:
		atomic.AddUint64(&l.dropped, 1)
		return ErrQueueFull
	}
}

func (l *Loopback) Inbound(addr gossipmember.Address) <-chan []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue(addr)
}

// Sent returns the number of messages delivered to a queue.
func (l *Loopback) Sent() uint64 {
	return atomic.LoadUint64(&l.sent)
}

// Dropped returns the number of messages lost to drop rate, send limits, or full queues.
func (l *Loopback) Dropped() uint64 {
	return atomic.LoadUint64(&l.dropped)
}

// Close closes every queue.  Receivers see the queue closed once drained.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	for _, q := range l.queues {
		close(q)
	}
	return nil
}
