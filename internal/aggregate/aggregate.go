// Package aggregate derives distinct values, groups and numeric summaries from
// a node sequence.
package aggregate

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/starford/nodeql/internal/apperr"
	"github.com/starford/nodeql/internal/node"
	"github.com/starford/nodeql/internal/schema"
	"github.com/starford/nodeql/internal/value"
)

// Field resolves an aggregation field path against typeName. Only scalar
// leaves and scalar lists can be aggregated.
func Field(reg *schema.Registry, typeName, op, path string) (*schema.Path, error) {
	p, err := reg.Resolve(typeName, path)
	if err != nil {
		return nil, err
	}
	if p.Type != "" {
		return nil, &apperr.QueryError{Op: op, Type: typeName, Path: path, Err: apperr.ErrTypeMismatch,
			Msg: "cannot aggregate an object"}
	}
	return p, nil
}

// Numeric resolves a path for Max, Min and Sum: Int, Float or Date.
func Numeric(reg *schema.Registry, typeName, op, path string) (*schema.Path, error) {
	p, err := Field(reg, typeName, op, path)
	if err != nil {
		return nil, err
	}
	if !p.ValueKind().Ordered() {
		return nil, &apperr.QueryError{Op: op, Type: typeName, Path: path, Err: apperr.ErrTypeMismatch,
			Msg: fmt.Sprintf("%s is not numeric", p.ValueKind())}
	}
	return p, nil
}

// key renders the value a node is grouped or deduplicated by.
func key(p *schema.Path, v any) string {
	if l, ok := v.([]any); ok && p.Kind == value.List {
		parts := make([]string, 0, len(l))
		for _, e := range l {
			parts = append(parts, value.StringifyAs(p.Elem, e))
		}
		return strings.Join(parts, ",")
	}
	return value.StringifyAs(p.Kind, v)
}

// Distinct returns the unique stringified values of p across nodes, sorted
// ascending. List values contribute each element. Nodes without a value
// contribute nothing. The result is never nil.
func Distinct(ctx context.Context, r schema.Resolver, nodes []*node.Node, p *schema.Path) ([]string, error) {
	seen := map[string]struct{}{}
	out := []string{}
	add := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, n := range nodes {
		if err := apperr.CheckContext(ctx); err != nil {
			return nil, fmt.Errorf("distinct: %w", err)
		}
		v, ok := p.Get(r, n)
		if !ok {
			continue
		}
		if l, isList := v.([]any); isList && p.Kind == value.List {
			for _, e := range l {
				if e != nil {
					add(value.StringifyAs(p.Elem, e))
				}
			}
			continue
		}
		add(value.StringifyAs(p.Kind, v))
	}
	slices.Sort(out)
	return out, nil
}

// Bucket is one group: the nodes sharing a field value, in input order.
type Bucket struct {
	Field      string
	FieldValue string
	Nodes      []*node.Node
}

// Group partitions nodes by the stringified value of p. Buckets appear in the
// order their value is first seen. Nodes without a value share the bucket
// with FieldValue "", so every node lands in exactly one bucket.
func Group(ctx context.Context, r schema.Resolver, nodes []*node.Node, p *schema.Path, field string) ([]Bucket, error) {
	index := map[string]int{}
	var out []Bucket
	for _, n := range nodes {
		if err := apperr.CheckContext(ctx); err != nil {
			return nil, fmt.Errorf("group: %w", err)
		}
		k := ""
		if v, ok := p.Get(r, n); ok {
			k = key(p, v)
		}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, Bucket{Field: field, FieldValue: k})
		}
		out[i].Nodes = append(out[i].Nodes, n)
	}
	if out == nil {
		out = []Bucket{}
	}
	return out, nil
}

// Max returns the largest value of p, nil when no node has one. Dates are
// reported as unix seconds.
func Max(ctx context.Context, r schema.Resolver, nodes []*node.Node, p *schema.Path) (*float64, error) {
	return fold(ctx, "max", r, nodes, p, func(acc, x float64) float64 { return max(acc, x) })
}

// Min returns the smallest value of p, nil when no node has one.
func Min(ctx context.Context, r schema.Resolver, nodes []*node.Node, p *schema.Path) (*float64, error) {
	return fold(ctx, "min", r, nodes, p, func(acc, x float64) float64 { return min(acc, x) })
}

// Sum adds up the values of p, nil when no node has one.
func Sum(ctx context.Context, r schema.Resolver, nodes []*node.Node, p *schema.Path) (*float64, error) {
	return fold(ctx, "sum", r, nodes, p, func(acc, x float64) float64 { return acc + x })
}

func fold(ctx context.Context, op string, r schema.Resolver, nodes []*node.Node, p *schema.Path, f func(acc, x float64) float64) (*float64, error) {
	var acc float64
	seen := false
	visit := func(v any) {
		x, ok := value.Number(p.ValueKind(), v)
		if !ok {
			return
		}
		if !seen {
			acc, seen = x, true
			return
		}
		acc = f(acc, x)
	}
	for _, n := range nodes {
		if err := apperr.CheckContext(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		v, ok := p.Get(r, n)
		if !ok {
			continue
		}
		if l, isList := v.([]any); isList && p.Kind == value.List {
			for _, e := range l {
				visit(e)
			}
			continue
		}
		visit(v)
	}
	if !seen {
		return nil, nil
	}
	return &acc, nil
}
