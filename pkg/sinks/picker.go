package sinks

import (
	"github.com/atlassian/gossipmember"
	"github.com/atlassian/gossipmember/pkg/cluster/nodes"
)

// Picker is a Sink which keeps a NodePicker in line with the membership
// table of one node.  Events observed by other nodes are ignored, which
// only matters when several engines share a sink.
type Picker struct {
	self   gossipmember.Address
	picker nodes.NodePicker
}

// NewPicker returns a Picker for the table of self.
func NewPicker(self gossipmember.Address, picker nodes.NodePicker) *Picker {
	return &Picker{
		self:   self,
		picker: picker,
	}
}

func (p *Picker) MemberAdded(observer, added gossipmember.Address) {
	if observer == p.self {
		p.picker.Add(added.String())
	}
}

func (p *Picker) MemberRemoved(observer, removed gossipmember.Address) {
	if observer == p.self {
		p.picker.Remove(removed.String())
	}
}

// ObserverStopped removes every peer from the picker, leaving self as the
// only node.
func (p *Picker) ObserverStopped(observer gossipmember.Address) {
	if observer != p.self {
		return
	}
	self := p.self.String()
	for _, node := range p.picker.List() {
		if node != self {
			p.picker.Remove(node)
		}
	}
}
