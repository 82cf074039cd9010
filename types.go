package gossipmember

import (
	"context"
)

// Runnable is a long running function intended to be launched in a goroutine.
type Runnable func(context.Context)

// Runner exposes a Runnable through an interface
type Runner interface {
	Run(context.Context)
}

func MaybeAppendRunnable(runnables []Runnable, maybeRunner interface{}) []Runnable {
	if r, ok := maybeRunner.(Runner); ok {
		runnables = append(runnables, r.Run)
	}
	return runnables
}

// Clock supplies the current logical tick.  Readings are monotonically
// non-decreasing, and loosely synchronized across all nodes.
type Clock interface {
	CurrentTick() Tick
}

// Transport moves raw payloads between node addresses.  Delivery is best
// effort: payloads may be lost, duplicated, or reordered.
type Transport interface {
	// Send queues payload for delivery to the node at to.  It does not wait
	// for delivery.  An error only reports that the payload could not be
	// handed to the underlying medium.
	Send(ctx context.Context, from, to Address, payload []byte) error

	// Inbound returns the queue of payloads delivered to addr.  The engine
	// drains it without blocking.
	Inbound(addr Address) <-chan []byte
}

// Sink records membership table changes.  Calls are fire-and-forget.
type Sink interface {
	MemberAdded(observer, added Address)
	MemberRemoved(observer, removed Address)
}

// StopObserver is implemented by sinks which keep state built from the
// events of an observer.  ObserverStopped is called once the observer's
// engine has stopped or crashed, and no event for it follows.
type StopObserver interface {
	ObserverStopped(observer Address)
}

// NoopSink is a Sink which discards all events.
type NoopSink struct{}

func (NoopSink) MemberAdded(observer, added Address)     {}
func (NoopSink) MemberRemoved(observer, removed Address) {}
