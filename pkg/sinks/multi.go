package sinks

import (
	"github.com/atlassian/gossipmember"
)

// Multi is a Sink which passes every event to each of its sinks in order.
type Multi []gossipmember.Sink

func (m Multi) MemberAdded(observer, added gossipmember.Address) {
	for _, s := range m {
		s.MemberAdded(observer, added)
	}
}

func (m Multi) MemberRemoved(observer, removed gossipmember.Address) {
	for _, s := range m {
		s.MemberRemoved(observer, removed)
	}
}

// ObserverStopped is passed on to every sink which implements gossipmember.StopObserver.
func (m Multi) ObserverStopped(observer gossipmember.Address) {
	for _, s := range m {
		if so, ok := s.(gossipmember.StopObserver); ok {
			so.ObserverStopped(observer)
		}
	}
}
