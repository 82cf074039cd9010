package nodes

import (
	"errors"
)

// ErrNoNodes is returned by Select when no nodes are tracked.
var ErrNoNodes = errors.New("no nodes available")

// NodePicker is an interface for tracking and selecting nodes in a cluster.
// It does not manage expiry.
type NodePicker interface {
	// List returns a list of all nodes being tracked.  The list returned will be
	// a copy of the underlying list of nodes.  Intended for admin interfaces,
	// not performance critical code.  Thread safe.
	List() []string

	// Select will use the provided key to pick a node from the list of tracked
	// nodes and return it.
	//
	// self indicates if the returned node is the local node
	//
	// Returns ErrNoNodes if there are no nodes available.
	//
	// Thread safe.
	Select(key string) (node string, self bool, err error)

	// Add will add the node to the list of nodes tracked.  Thread safe.
	Add(node string)

	// Remove will remove the node from the list of nodes tracked. Thread safe.
	Remove(node string)
}
