/*
Package table holds a node's local view of peer liveness.

The table enforces the membership invariants itself rather than trusting its
callers: it never holds a row for its owner's id, never holds two rows for the
same id (a second port for a stored id is ignored until the stored row
expires), and never admits an id outside the configured cluster bound.  The
table therefore never grows past the bound.  Liveness is updated through two paths:

- Refresh, used when a message is received directly from a peer.  Receipt is
  the proof of life, so the stored heartbeat is bumped by one.
- Merge, used for each row of a gossiped snapshot.  A higher remote heartbeat
  is adopted and stamped with the local tick; an unknown row is only admitted
  if the sender still considered it fresh.

Rows are evicted by Expire once they have been silent for the remove threshold.
*/
package table
