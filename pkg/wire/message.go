// Package wire defines the messages exchanged between membership nodes and
// their binary encoding.
package wire

import (
	"fmt"

	"github.com/atlassian/gossipmember"
)

// Kind is the tag of a message.
type Kind int

const (
	KindJoinRequest Kind = iota + 1
	KindJoinResponse
	KindGossip
)

func (k Kind) String() string {
	switch k {
	case KindJoinRequest:
		return "JOINREQ"
	case KindJoinResponse:
		return "JOINREP"
	case KindGossip:
		return "GOSSIP"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(k))
	}
}

// Message is one of JoinRequest, JoinResponse or Gossip.  Every message
// carries its sender and a snapshot of the sender's table, which never
// includes the sender itself.
type Message interface {
	Kind() Kind
	Sender() gossipmember.Address
	Entries() []gossipmember.Entry

	isMessage()
}

// JoinRequest asks the receiver to admit the sender into the group.
type JoinRequest struct {
	From  gossipmember.Address
	Table []gossipmember.Entry
}

// JoinResponse answers a JoinRequest with the introducer's view.
type JoinResponse struct {
	From  gossipmember.Address
	Table []gossipmember.Entry
}

// Gossip is the periodic push of a node's view to its peers.
type Gossip struct {
	From  gossipmember.Address
	Table []gossipmember.Entry
}

func (*JoinRequest) Kind() Kind                      { return KindJoinRequest }
func (m *JoinRequest) Sender() gossipmember.Address  { return m.From }
func (m *JoinRequest) Entries() []gossipmember.Entry { return m.Table }
func (*JoinRequest) isMessage()                      {}

func (*JoinResponse) Kind() Kind                      { return KindJoinResponse }
func (m *JoinResponse) Sender() gossipmember.Address  { return m.From }
func (m *JoinResponse) Entries() []gossipmember.Entry { return m.Table }
func (*JoinResponse) isMessage()                      {}

func (*Gossip) Kind() Kind                      { return KindGossip }
func (m *Gossip) Sender() gossipmember.Address  { return m.From }
func (m *Gossip) Entries() []gossipmember.Entry { return m.Table }
func (*Gossip) isMessage()                      {}

// Ensure message types satisfy the interface.
var (
	_ Message = &JoinRequest{}
	_ Message = &JoinResponse{}
	_ Message = &Gossip{}
)

// New builds a message of the given kind.
func New(kind Kind, from gossipmember.Address, entries []gossipmember.Entry) (Message, error) {
	switch kind {
	case KindJoinRequest:
		return &JoinRequest{From: from, Table: entries}, nil
	case KindJoinResponse:
		return &JoinResponse{From: from, Table: entries}, nil
	case KindGossip:
		return &Gossip{From: from, Table: entries}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
}
