// Package nodeservice serves queries against the current snapshot. The HTTP
// API and the MCP server both go through it.
package nodeservice

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/starford/nodeql/internal/apperr"
	"github.com/starford/nodeql/internal/connection"
	"github.com/starford/nodeql/internal/filter"
	"github.com/starford/nodeql/internal/node"
	"github.com/starford/nodeql/internal/nodestore"
	"github.com/starford/nodeql/internal/query"
	"github.com/starford/nodeql/internal/sorter"
)

// TypeInfo describes one registered node type.
type TypeInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Status describes the snapshot being served.
type Status struct {
	Ready    bool      `json:"ready"`
	Nodes    int       `json:"nodes"`
	FrozenAt time.Time `json:"frozenAt,omitzero"`
}

// Service holds the current snapshot and runs queries against it. Swapping
// the snapshot never disturbs queries already running on the old one.
type Service struct {
	exec    *query.Executor
	current atomic.Pointer[nodestore.Snapshot]
}

// NewService creates a service with no snapshot; queries fail with
// apperr.ErrNotReady until Swap is called.
func NewService(exec *query.Executor) *Service {
	return &Service{exec: exec}
}

// Swap installs snap as the current snapshot and returns the previous one.
func (s *Service) Swap(snap *nodestore.Snapshot) *nodestore.Snapshot {
	return s.current.Swap(snap)
}

// Snapshot returns the current snapshot.
func (s *Service) Snapshot() (*nodestore.Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, apperr.ErrNotReady
	}
	return snap, nil
}

// Status reports whether a snapshot is installed and its size.
func (s *Service) Status() Status {
	snap := s.current.Load()
	if snap == nil {
		return Status{}
	}
	return Status{Ready: true, Nodes: snap.Len(), FrozenAt: snap.FrozenAt()}
}

// Query runs req against the current snapshot.
func (s *Service) Query(ctx context.Context, req query.Request) (*connection.Connection, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.exec.Query(ctx, snap, req)
}

// QueryBatch runs reqs against one snapshot, so every result sees the same
// content.
func (s *Service) QueryBatch(ctx context.Context, reqs []query.Request) ([]query.Result, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.exec.QueryBatch(ctx, snap, reqs, 0), nil
}

// FindOne returns the first node of typeName matching expr in sort order.
func (s *Service) FindOne(ctx context.Context, typeName string, expr filter.Expr, sort *sorter.Spec) (*node.Node, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.exec.FindOne(ctx, snap, typeName, expr, sort)
}

// Types lists the registered node types with their node counts in the
// current snapshot. Types without nodes are listed with a zero count.
func (s *Service) Types(_ context.Context) ([]TypeInfo, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	names := s.exec.Registry().Types()
	out := make([]TypeInfo, len(names))
	for i, name := range names {
		out[i] = TypeInfo{Name: name, Count: snap.Count(name)}
	}
	return out, nil
}

// Fields returns the queryable field paths of a node type.
func (s *Service) Fields(_ context.Context, typeName string) ([]string, error) {
	if _, err := s.exec.Registry().NodeType(typeName); err != nil {
		return nil, err
	}
	return s.exec.Registry().FieldPaths(typeName)
}

// Node returns a node by id.
func (s *Service) Node(_ context.Context, id string) (*node.Node, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	n, ok := snap.Get(id)
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, apperr.ErrNotFound)
	}
	return n, nil
}
