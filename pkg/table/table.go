package table

import (
	"github.com/atlassian/gossipmember"
)

// Table is a membership table.  It is not safe for concurrent use, it is
// owned by a single engine which is never re-entered.
//
// Rows are unique per node id: an id is held by the first port seen for it
// until that row expires, and the id of self is never stored.  With ids
// limited to [0, maxNodes) the table never holds more than maxNodes rows.
type Table struct {
	self     gossipmember.Address
	maxNodes int32

	entries []gossipmember.Entry
	index   map[int32]int
}

// New creates an empty table owned by self, admitting node ids in [0, maxNodes).
func New(self gossipmember.Address, maxNodes int) *Table {
	return &Table{
		self:     self,
		maxNodes: int32(maxNodes),
		index:    make(map[int32]int),
	}
}

// InRange reports if the id is inside the cluster's valid id range.
func (t *Table) InRange(addr gossipmember.Address) bool {
	return addr.ID >= 0 && addr.ID < t.maxNodes
}

// admissible reports if addr may ever hold a row in this table.
func (t *Table) admissible(addr gossipmember.Address) bool {
	return addr.ID != t.self.ID && t.InRange(addr)
}

func (t *Table) Len() int {
	return len(t.entries)
}

// find returns the position of the row for addr.  taken is set when the id
// of addr is held by a row with a different port.
func (t *Table) find(addr gossipmember.Address) (i int, ok, taken bool) {
	i, ok = t.index[addr.ID]
	if ok && t.entries[i].Address != addr {
		return 0, false, true
	}
	return i, ok, false
}

func (t *Table) insert(e gossipmember.Entry) {
	t.index[e.Address.ID] = len(t.entries)
	t.entries = append(t.entries, e)
}

// Refresh applies the direct-refresh rule for a peer which a message was
// just received from.  Returns true if the peer was added to the table.
func (t *Table) Refresh(addr gossipmember.Address, now gossipmember.Tick) bool {
	if !t.admissible(addr) {
		return false
	}
	i, ok, taken := t.find(addr)
	if taken {
		return false
	}
	if ok {
		t.entries[i].Heartbeat++
		t.entries[i].LastRefreshed = now
		return false
	}
	t.insert(gossipmember.Entry{
		Address:       addr,
		Heartbeat:     1,
		LastRefreshed: now,
	})
	return true
}

// Merge applies the gossip-merge rule for a single row of a received
// snapshot.  Returns true if the row was added to the table.
//
// A known row only moves forward: a higher heartbeat is adopted and stamped
// with now, the remote timestamp is discarded.  An unknown row is admitted
// verbatim, remote timestamp included, but only if the sender's own
// bookkeeping still had it fresh.
func (t *Table) Merge(e gossipmember.Entry, now, removeThreshold gossipmember.Tick) bool {
	if !t.admissible(e.Address) {
		return false
	}
	i, ok, taken := t.find(e.Address)
	if taken {
		return false
	}
	if ok {
		if e.Heartbeat > t.entries[i].Heartbeat {
			t.entries[i].Heartbeat = e.Heartbeat
			t.entries[i].LastRefreshed = now
		}
		return false
	}
	if e.Age(now) >= removeThreshold {
		return false
	}
	t.insert(e)
	return true
}

// Expire removes every row which has been silent for at least
// removeThreshold ticks, and returns their addresses in table order.
func (t *Table) Expire(now, removeThreshold gossipmember.Tick) []gossipmember.Address {
	var removed []gossipmember.Address
	kept := t.entries[:0]
	for _, e := range t.entries {
		if e.Age(now) >= removeThreshold {
			removed = append(removed, e.Address)
			delete(t.index, e.Address.ID)
			continue
		}
		t.index[e.Address.ID] = len(kept)
		kept = append(kept, e)
	}
	// Don't keep stale copies alive in the backing array.
	for i := len(kept); i < len(t.entries); i++ {
		t.entries[i] = gossipmember.Entry{}
	}
	t.entries = kept
	return removed
}

// Snapshot returns a copy of all rows, in insertion order.
func (t *Table) Snapshot() []gossipmember.Entry {
	s := make([]gossipmember.Entry, len(t.entries))
	copy(s, t.entries)
	return s
}

// Addresses returns the address of every row, in insertion order.
func (t *Table) Addresses() []gossipmember.Address {
	addrs := make([]gossipmember.Address, 0, len(t.entries))
	for _, e := range t.entries {
		addrs = append(addrs, e.Address)
	}
	return addrs
}

// Clear removes every row.
func (t *Table) Clear() {
	t.entries = nil
	t.index = make(map[int32]int)
}
