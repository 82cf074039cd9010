package nodes

import (
	"errors"
	"sort"

	"stathat.com/c/consistent"
)

// DefaultReplicas is the number of points each node gets on the hash ring.
const DefaultReplicas = 20

type consistentNodePicker struct {
	self   string
	hasher *consistent.Consistent
}

// NewConsistentNodePicker returns a NodePicker which maps keys to nodes with
// consistent hashing, so a membership change only moves the keys of the node
// which joined or left.  self is added straight away.
func NewConsistentNodePicker(self string, numReplicas int) NodePicker {
	c := consistent.New()
	c.NumberOfReplicas = numReplicas
	if self != "" {
		c.Add(self)
	}
	return &consistentNodePicker{
		self:   self,
		hasher: c,
	}
}

func (cnp *consistentNodePicker) List() []string {
	members := cnp.hasher.Members()
	sort.Strings(members)
	return members
}

func (cnp *consistentNodePicker) Select(key string) (string, bool, error) {
	host, err := cnp.hasher.Get(key)
	if err != nil {
		if errors.Is(err, consistent.ErrEmptyCircle) {
			return "", false, ErrNoNodes
		}
		return "", false, err
	}
	return host, host == cnp.self, nil
}

func (cnp *consistentNodePicker) Add(node string) {
	cnp.hasher.Add(node)
}

func (cnp *consistentNodePicker) Remove(node string) {
	cnp.hasher.Remove(node)
}
