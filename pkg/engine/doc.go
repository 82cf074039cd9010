/*
Package engine implements the membership protocol run by a single node.

An Engine is a state machine over Created, Joining, Active and Stopped.  It is
driven by Tick, which an external scheduler calls at a fixed cadence.  Each
tick first drains every queued inbound message, then, once the node is Active,
evicts peers which have been silent for too long and pushes the local table to
peers.

Three messages are exchanged:

- JoinRequest, sent by a new node to the introducer.  The introducer answers
  with a JoinResponse carrying its table.  Joining nodes answer join requests
  too, so any node can act as an introducer.
- JoinResponse, which moves a Joining node to Active.
- Gossip, the periodic push of a node's table.

Receiving any message from a peer refreshes that peer.  The attached table is
merged row by row.  A node's own heartbeat is never put in a table, peers
learn a node is alive only by hearing from it directly.

Message loss, duplication and reordering are left to the Transport.  The engine
never blocks on delivery and never retries; a join which never completes is
reported by AwaitJoin and retry is left to the caller.
*/
package engine
