// Package filter compiles filter expressions into node predicates.
//
// An expression mirrors the fields of the queried type:
//
//	{"rating": {"gte": 4}, "author": {"name": {"regex": "/^h/i"}},
//	 "reviews": {"elemMatch": {"rating": {"eq": 5}}}}
//
// Leaves are operator bags, object fields nest another expression and lists of
// objects wrap theirs in elemMatch. All present leaves must hold.
package filter

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/starford/nodeql/internal/apperr"
	"github.com/starford/nodeql/internal/node"
	"github.com/starford/nodeql/internal/schema"
	"github.com/starford/nodeql/internal/value"
)

// Expr is a decoded filter expression.
type Expr map[string]any

// Predicate reports whether a node matches a compiled filter.
type Predicate func(r schema.Resolver, n *node.Node) bool

// MatchAll accepts every node.
func MatchAll(schema.Resolver, *node.Node) bool { return true }

// ElemMatch is the operator that quantifies over a list of objects.
const ElemMatch = "elemMatch"

// match is a predicate over any container: a node or an embedded object.
type match func(r schema.Resolver, obj any) bool

// Compile validates expr against typeName and returns its predicate. Every
// error is raised here, before any node is evaluated.
func Compile(reg *schema.Registry, typeName string, expr Expr) (Predicate, error) {
	if _, err := reg.Type(typeName); err != nil {
		return nil, err
	}
	if len(expr) == 0 {
		return MatchAll, nil
	}
	c := &compiler{reg: reg}
	m, err := c.object(typeName, nil, expr)
	if err != nil {
		return nil, err
	}
	return func(r schema.Resolver, n *node.Node) bool { return m(r, n) }, nil
}

type compiler struct {
	reg *schema.Registry
}

// object compiles the expression nested under prefix within scope. Nested
// objects extend the prefix so a single compiled path resolves them;
// elemMatch opens a new scope on the element type.
func (c *compiler) object(scope string, prefix []string, expr map[string]any) (match, error) {
	var parts []match
	for _, key := range slices.Sorted(maps.Keys(expr)) {
		raw := expr[key]
		segs := append(slices.Clone(prefix), strings.Split(schema.NormalizePath(key), schema.PathSep)...)
		pathName := strings.Join(segs, schema.PathSep)

		p, err := c.reg.Resolve(scope, pathName)
		if err != nil {
			return nil, &apperr.QueryError{Op: "filter", Type: scope, Path: pathName, Err: apperr.ErrUnknownFieldPath}
		}
		sub, ok := raw.(map[string]any)
		if !ok {
			if e, isExpr := raw.(Expr); isExpr {
				sub, ok = map[string]any(e), true
			}
		}
		if !ok {
			return nil, &apperr.QueryError{Op: "filter", Type: scope, Path: pathName, Err: apperr.ErrValidation,
				Msg: fmt.Sprintf("expected an object, got %T", raw)}
		}

		if p.Type == "" {
			m, err := compileLeaf(scope, p, sub)
			if err != nil {
				return nil, err
			}
			parts = append(parts, m)
			continue
		}

		if em, has := sub[ElemMatch]; has {
			m, err := c.elemMatch(scope, p, sub, em)
			if err != nil {
				return nil, err
			}
			parts = append(parts, m)
			continue
		}
		m, err := c.object(scope, segs, sub)
		if err != nil {
			return nil, err
		}
		parts = append(parts, m)
	}
	return all(parts), nil
}

func (c *compiler) elemMatch(scope string, p *schema.Path, sub map[string]any, raw any) (match, error) {
	if p.Kind != value.List {
		return nil, &apperr.QueryError{Op: "filter", Type: scope, Path: p.Name, Operator: ElemMatch, Err: apperr.ErrTypeMismatch,
			Msg: "elemMatch needs a list of objects"}
	}
	if len(sub) != 1 {
		return nil, &apperr.QueryError{Op: "filter", Type: scope, Path: p.Name, Operator: ElemMatch, Err: apperr.ErrValidation,
			Msg: "elemMatch cannot be combined with other keys"}
	}
	inner, ok := raw.(map[string]any)
	if !ok {
		if e, isExpr := raw.(Expr); isExpr {
			inner, ok = map[string]any(e), true
		}
	}
	if !ok {
		return nil, &apperr.QueryError{Op: "filter", Type: scope, Path: p.Name, Operator: ElemMatch, Err: apperr.ErrValidation,
			Msg: fmt.Sprintf("expected an object, got %T", raw)}
	}
	each, err := c.object(p.Type, nil, inner)
	if err != nil {
		return nil, err
	}
	return func(r schema.Resolver, obj any) bool {
		v, ok := p.Value(r, obj)
		if !ok {
			return false
		}
		elems, _ := v.([]any)
		for _, e := range elems {
			if each(r, e) {
				return true
			}
		}
		return false
	}, nil
}

func all(parts []match) match {
	switch len(parts) {
	case 0:
		return func(schema.Resolver, any) bool { return true }
	case 1:
		return parts[0]
	}
	return func(r schema.Resolver, obj any) bool {
		for _, m := range parts {
			if !m(r, obj) {
				return false
			}
		}
		return true
	}
}

// Apply returns the nodes matching pred, in input order. It checks ctx between
// nodes and returns no partial result when cancelled.
func Apply(ctx context.Context, r schema.Resolver, nodes []*node.Node, pred Predicate) ([]*node.Node, error) {
	out := make([]*node.Node, 0, len(nodes))
	for _, n := range nodes {
		if err := apperr.CheckContext(ctx); err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		if pred(r, n) {
			out = append(out, n)
		}
	}
	return out, nil
}
