package nodestore

import (
	"maps"
	"slices"
	"time"

	"github.com/starford/nodeql/internal/node"
)

// Snapshot is a frozen, read-only view of a Store. It holds no locks and may
// be shared by any number of concurrent query workers.
type Snapshot struct {
	byID     map[string]*node.Node
	byType   map[string][]*node.Node
	frozenAt time.Time
}

// Get returns the node with the given id.
func (s *Snapshot) Get(id string) (*node.Node, bool) {
	n, ok := s.byID[id]
	return n, ok
}

// All returns the nodes of a type in insertion order. The returned slice
// must not be modified; pipeline stages copy before reordering.
func (s *Snapshot) All(typ string) []*node.Node {
	return s.byType[typ]
}

// Types returns the sorted names of types that have at least one node.
func (s *Snapshot) Types() []string {
	return slices.Sorted(maps.Keys(s.byType))
}

// Count returns the number of nodes of a type.
func (s *Snapshot) Count(typ string) int {
	return len(s.byType[typ])
}

// Len returns the total number of nodes.
func (s *Snapshot) Len() int {
	return len(s.byID)
}

// Parent resolves the parent of n.
func (s *Snapshot) Parent(n *node.Node) (*node.Node, bool) {
	if n.Parent == "" {
		return nil, false
	}
	return s.Get(n.Parent)
}

// Children resolves the children of n in their stored order, skipping ids
// that no longer resolve.
func (s *Snapshot) Children(n *node.Node) []*node.Node {
	out := make([]*node.Node, 0, len(n.Children))
	for _, id := range n.Children {
		if c, ok := s.byID[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// FrozenAt returns the time the snapshot was taken.
func (s *Snapshot) FrozenAt() time.Time {
	return s.frozenAt
}
