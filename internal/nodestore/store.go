// Package nodestore owns content nodes during ingestion and freezes them into
// immutable snapshots for querying.
package nodestore

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/starford/nodeql/internal/apperr"
	"github.com/starford/nodeql/internal/node"
)

// Store is the mutable ingestion-phase node store. It is safe for concurrent
// use by several crawlers until Freeze is called.
type Store struct {
	mu      sync.Mutex
	nodes   map[string]*node.Node
	counter int
	frozen  bool
}

// New creates an empty store.
func New() *Store {
	return &Store{nodes: make(map[string]*node.Node)}
}

// Insert adds a node. It fails with ErrDuplicateID when the id is taken.
func (s *Store) Insert(n *node.Node) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("nodestore: insert: %w: node id is required", apperr.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return fmt.Errorf("nodestore: insert %s: %w", n.ID, apperr.ErrStoreFrozen)
	}
	if _, ok := s.nodes[n.ID]; ok {
		return fmt.Errorf("nodestore: insert %s: %w", n.ID, apperr.ErrDuplicateID)
	}
	s.counter++
	n.Internal.Counter = s.counter
	s.nodes[n.ID] = n
	return nil
}

// Upsert inserts n or replaces the node with the same id. A replaced node
// keeps its insertion position.
func (s *Store) Upsert(n *node.Node) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("nodestore: upsert: %w: node id is required", apperr.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return fmt.Errorf("nodestore: upsert %s: %w", n.ID, apperr.ErrStoreFrozen)
	}
	if old, ok := s.nodes[n.ID]; ok {
		n.Internal.Counter = old.Internal.Counter
	} else {
		s.counter++
		n.Internal.Counter = s.counter
	}
	s.nodes[n.ID] = n
	return nil
}

// Remove deletes a node and detaches it from its parent's children. Children
// of the removed node keep their parent id, which then resolves to nothing.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return fmt.Errorf("nodestore: remove %s: %w", id, apperr.ErrStoreFrozen)
	}
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("nodestore: remove %s: %w", id, apperr.ErrNotFound)
	}
	if p, ok := s.nodes[n.Parent]; ok {
		p.Children = slices.DeleteFunc(p.Children, func(c string) bool { return c == id })
	}
	delete(s.nodes, id)
	return nil
}

// AddChild links child under parent on both sides of the relation.
func (s *Store) AddChild(parentID, childID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return fmt.Errorf("nodestore: add child %s: %w", childID, apperr.ErrStoreFrozen)
	}
	parent, ok := s.nodes[parentID]
	if !ok {
		return fmt.Errorf("nodestore: parent %s: %w", parentID, apperr.ErrNotFound)
	}
	child, ok := s.nodes[childID]
	if !ok {
		return fmt.Errorf("nodestore: child %s: %w", childID, apperr.ErrNotFound)
	}
	if child.Parent != "" && child.Parent != parentID {
		if old, ok := s.nodes[child.Parent]; ok {
			old.Children = slices.DeleteFunc(old.Children, func(c string) bool { return c == childID })
		}
	}
	child.Parent = parentID
	if !slices.Contains(parent.Children, childID) {
		parent.Children = append(parent.Children, childID)
	}
	return nil
}

// Get returns the node with the given id.
func (s *Store) Get(id string) (*node.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	return n, ok
}

// All returns the nodes of a type in insertion order.
func (s *Store) All(typ string) []*node.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*node.Node
	for _, n := range s.nodes {
		if n.Internal.Type == typ {
			out = append(out, n)
		}
	}
	sortByCounter(out)
	return out
}

// Len returns the number of nodes in the store.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

// Frozen reports whether Freeze has been called.
func (s *Store) Frozen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frozen
}

// Freeze stops all further mutation and returns an immutable snapshot.
// Nodes are deep-copied so callers still holding inserted pointers cannot
// change the snapshot. Calling Freeze again returns an equivalent snapshot.
func (s *Store) Freeze() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frozen = true

	snap := &Snapshot{
		byID:     make(map[string]*node.Node, len(s.nodes)),
		byType:   make(map[string][]*node.Node),
		frozenAt: time.Now(),
	}
	all := make([]*node.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		c := n.Clone()
		snap.byID[c.ID] = c
		all = append(all, c)
	}
	sortByCounter(all)
	for _, n := range all {
		snap.byType[n.Internal.Type] = append(snap.byType[n.Internal.Type], n)
	}
	return snap
}

func sortByCounter(nodes []*node.Node) {
	slices.SortFunc(nodes, func(a, b *node.Node) int {
		return cmp.Compare(a.Internal.Counter, b.Internal.Counter)
	})
}
