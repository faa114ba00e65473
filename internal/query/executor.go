// Package query runs connection queries against frozen node snapshots:
// filter, then sort, then one of paginate, group or distinct.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/nodeql/internal/aggregate"
	"github.com/starford/nodeql/internal/apperr"
	"github.com/starford/nodeql/internal/connection"
	"github.com/starford/nodeql/internal/filter"
	"github.com/starford/nodeql/internal/node"
	"github.com/starford/nodeql/internal/nodestore"
	"github.com/starford/nodeql/internal/schema"
	"github.com/starford/nodeql/internal/sorter"
)

const defaultWorkers = 4

// Executor compiles and runs queries. It holds no per-query state and is safe
// for concurrent use.
type Executor struct {
	reg      *schema.Registry
	logger   *slog.Logger
	metrics  *Metrics
	timeout  time.Duration
	maxLimit int
	workers  int
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithMetrics records query metrics.
func WithMetrics(m *Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithTimeout bounds every query that does not already carry an earlier
// deadline.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// WithMaxLimit rejects requests whose limit exceeds n.
func WithMaxLimit(n int) ExecutorOption {
	return func(e *Executor) { e.maxLimit = n }
}

// WithWorkers sets the default number of parallel workers for QueryBatch.
func WithWorkers(n int) ExecutorOption {
	return func(e *Executor) { e.workers = n }
}

// NewExecutor creates an executor over a sealed registry.
func NewExecutor(reg *schema.Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{reg: reg, logger: slog.Default(), workers: defaultWorkers}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry queries are compiled against.
func (e *Executor) Registry() *schema.Registry {
	return e.reg
}

// plan is a fully compiled request. Building one touches no node.
type plan struct {
	req      Request
	pred     filter.Predicate
	sort     *sorter.Sorter
	distinct *schema.Path
	group    *schema.Path
	max      *schema.Path
	min      *schema.Path
	sum      *schema.Path
}

func (e *Executor) compile(req Request) (*plan, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidRequest(req.Type, err)
	}
	if _, err := e.reg.NodeType(req.Type); err != nil {
		return nil, err
	}
	if e.maxLimit > 0 && req.Limit != nil && *req.Limit > e.maxLimit {
		return nil, &apperr.QueryError{Op: "query", Type: req.Type, Err: apperr.ErrValidation,
			Msg: fmt.Sprintf("limit %d exceeds the maximum of %d", *req.Limit, e.maxLimit)}
	}

	p := &plan{req: req}
	var err error
	if p.pred, err = filter.Compile(e.reg, req.Type, req.Filter); err != nil {
		return nil, err
	}
	if req.Sort != nil && !req.Sort.Empty() {
		if p.sort, err = sorter.Compile(e.reg, req.Type, *req.Sort); err != nil {
			return nil, err
		}
	}
	if req.Distinct != nil {
		if p.distinct, err = aggregate.Field(e.reg, req.Type, "distinct", req.Distinct.Field); err != nil {
			return nil, err
		}
	}
	if req.Group != nil {
		if p.group, err = aggregate.Field(e.reg, req.Type, "group", req.Group.Field); err != nil {
			return nil, err
		}
	}
	for _, agg := range []struct {
		op  string
		ref *FieldRef
		dst **schema.Path
	}{
		{"max", req.Max, &p.max},
		{"min", req.Min, &p.min},
		{"sum", req.Sum, &p.sum},
	} {
		if agg.ref == nil {
			continue
		}
		if *agg.dst, err = aggregate.Numeric(e.reg, req.Type, agg.op, agg.ref.Field); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Query runs req against snap. Every compile error is returned before any
// node is evaluated; afterwards only cancellation can fail the query.
func (e *Executor) Query(ctx context.Context, snap *nodestore.Snapshot, req Request) (*connection.Connection, error) {
	start := time.Now()
	conn, matched, err := e.query(ctx, snap, req)
	elapsed := time.Since(start)
	e.metrics.observe(req.Type, err, elapsed, matched)

	if err != nil {
		e.logger.Debug("query failed",
			slog.String("type", req.Type),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	e.logger.Debug("query executed",
		slog.String("type", req.Type),
		slog.Int("matched", matched),
		slog.Int("returned", len(conn.Nodes)),
		slog.Duration("elapsed", elapsed),
	)
	return conn, nil
}

func (e *Executor) query(ctx context.Context, snap *nodestore.Snapshot, req Request) (*connection.Connection, int, error) {
	p, err := e.compile(req)
	if err != nil {
		return nil, 0, err
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	nodes, err := filter.Apply(ctx, snap, snap.All(req.Type), p.pred)
	if err != nil {
		return nil, 0, err
	}
	if p.sort != nil {
		if nodes, err = p.sort.Sort(ctx, snap, nodes); err != nil {
			return nil, 0, err
		}
	}

	var conn *connection.Connection
	switch {
	case p.distinct != nil:
		conn, err = e.distinct(ctx, snap, p, nodes)
	case p.group != nil:
		conn, err = e.group(ctx, snap, p, nodes)
	default:
		conn, err = connection.Build(nodes, req.Page())
	}
	if err != nil {
		return nil, 0, err
	}
	if err := e.numeric(ctx, snap, p, nodes, conn); err != nil {
		return nil, 0, err
	}
	return conn, len(nodes), nil
}

// distinct keeps the full filtered and sorted set as the connection's nodes.
func (e *Executor) distinct(ctx context.Context, snap *nodestore.Snapshot, p *plan, nodes []*node.Node) (*connection.Connection, error) {
	values, err := aggregate.Distinct(ctx, snap, nodes, p.distinct)
	if err != nil {
		return nil, err
	}
	conn, err := connection.Build(nodes, connection.Page{})
	if err != nil {
		return nil, err
	}
	conn.Distinct = values
	return conn, nil
}

// group pages the list of groups with skip/limit. Each group's connection
// holds all of its members.
func (e *Executor) group(ctx context.Context, snap *nodestore.Snapshot, p *plan, nodes []*node.Node) (*connection.Connection, error) {
	buckets, err := aggregate.Group(ctx, snap, nodes, p.group, p.req.Group.Field)
	if err != nil {
		return nil, err
	}
	buckets, err = connection.Window(buckets, p.req.Page())
	if err != nil {
		return nil, err
	}
	conn, err := connection.Build(nodes, connection.Page{})
	if err != nil {
		return nil, err
	}
	conn.Group = make([]connection.GroupConnection, 0, len(buckets))
	for _, b := range buckets {
		inner, err := connection.Build(b.Nodes, connection.Page{})
		if err != nil {
			return nil, err
		}
		conn.Group = append(conn.Group, connection.GroupConnection{
			Field:      b.Field,
			FieldValue: b.FieldValue,
			Connection: *inner,
		})
	}
	return conn, nil
}

func (e *Executor) numeric(ctx context.Context, snap *nodestore.Snapshot, p *plan, nodes []*node.Node, conn *connection.Connection) error {
	var err error
	if p.max != nil {
		if conn.Max, err = aggregate.Max(ctx, snap, nodes, p.max); err != nil {
			return err
		}
	}
	if p.min != nil {
		if conn.Min, err = aggregate.Min(ctx, snap, nodes, p.min); err != nil {
			return err
		}
	}
	if p.sum != nil {
		if conn.Sum, err = aggregate.Sum(ctx, snap, nodes, p.sum); err != nil {
			return err
		}
	}
	return nil
}

// FindOne returns the first node of typeName matching expr in sort order.
func (e *Executor) FindOne(ctx context.Context, snap *nodestore.Snapshot, typeName string, expr filter.Expr, sort *sorter.Spec) (*node.Node, error) {
	limit := 1
	conn, err := e.Query(ctx, snap, Request{Type: typeName, Filter: expr, Sort: sort, Limit: &limit})
	if err != nil {
		return nil, err
	}
	if len(conn.Nodes) == 0 {
		return nil, &apperr.QueryError{Op: "find", Type: typeName, Err: apperr.ErrNotFound}
	}
	return conn.Nodes[0], nil
}

// Result is the outcome of one query of a batch.
type Result struct {
	Connection *connection.Connection
	Err        error
}

// QueryBatch runs reqs on up to workers goroutines (the executor default when
// workers <= 0). Results line up with reqs. A failing query only fails its
// own slot.
func (e *Executor) QueryBatch(ctx context.Context, snap *nodestore.Snapshot, reqs []Request, workers int) []Result {
	if workers <= 0 {
		workers = e.workers
	}
	e.metrics.batch()

	results := make([]Result, len(reqs))
	var g errgroup.Group
	g.SetLimit(max(workers, 1))
	for i, req := range reqs {
		g.Go(func() error {
			conn, err := e.Query(ctx, snap, req)
			results[i] = Result{Connection: conn, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		e.logger.Warn("query batch had failures",
			slog.Int("queries", len(reqs)),
			slog.Int("failed", failed),
		)
	}
	return results
}
