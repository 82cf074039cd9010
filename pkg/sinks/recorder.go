package sinks

import (
	"sync"

	"github.com/atlassian/gossipmember"
)

// Event is a single membership change.
type Event struct {
	Tick     gossipmember.Tick
	Added    bool
	Observer gossipmember.Address
	Member   gossipmember.Address
}

// Recorder is a Sink which keeps every event, stamped with the tick it
// happened on.  Thread safe.
type Recorder struct {
	clock gossipmember.Clock

	mu     sync.Mutex
	events []Event
}

// NewRecorder returns a Recorder stamping events with ticks from clck.
func NewRecorder(clck gossipmember.Clock) *Recorder {
	return &Recorder{
		clock: clck,
	}
}

func (r *Recorder) MemberAdded(observer, added gossipmember.Address) {
	r.record(true, observer, added)
}

func (r *Recorder) MemberRemoved(observer, removed gossipmember.Address) {
	r.record(false, observer, removed)
}

func (r *Recorder) record(added bool, observer, member gossipmember.Address) {
	e := Event{
		Tick:     r.clock.CurrentTick(),
		Added:    added,
		Observer: observer,
		Member:   member,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]Event, len(r.events))
	copy(events, r.events)
	return events
}

// Removals returns the ticks on which member was removed from the table of observer.
func (r *Recorder) Removals(observer, member gossipmember.Address) []gossipmember.Tick {
	var ticks []gossipmember.Tick
	for _, e := range r.Events() {
		if !e.Added && e.Observer == observer && e.Member == member {
			ticks = append(ticks, e.Tick)
		}
	}
	return ticks
}
