package filter

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/starford/nodeql/internal/apperr"
	"github.com/starford/nodeql/internal/schema"
	"github.com/starford/nodeql/internal/value"
)

// Leaf operators.
const (
	OpEq    = "eq"
	OpNe    = "ne"
	OpIn    = "in"
	OpNin   = "nin"
	OpGt    = "gt"
	OpGte   = "gte"
	OpLt    = "lt"
	OpLte   = "lte"
	OpRegex = "regex"
	OpGlob  = "glob"
)

// Operators lists the leaf operators in the order they are documented.
var Operators = []string{OpEq, OpNe, OpIn, OpNin, OpGt, OpGte, OpLt, OpLte, OpRegex, OpGlob}

// check tests a resolved value. ok is false when the field is absent; an
// absent field satisfies only null checks.
type check func(v any, ok bool) bool

func compileLeaf(scope string, p *schema.Path, ops map[string]any) (match, error) {
	kind := p.ValueKind()
	var checks []check
	for _, op := range slices.Sorted(maps.Keys(ops)) {
		c, err := compileOp(kind, p.Kind == value.List, op, ops[op])
		if err != nil {
			qe := &apperr.QueryError{Op: "filter", Type: scope, Path: p.Name, Operator: op, Err: apperr.ErrTypeMismatch}
			var oe *opError
			if errors.As(err, &oe) {
				qe.Err, qe.Msg = oe.sentinel, oe.msg
			}
			return nil, qe
		}
		checks = append(checks, c)
	}
	return func(r schema.Resolver, obj any) bool {
		v, ok := p.Value(r, obj)
		for _, c := range checks {
			if !c(v, ok) {
				return false
			}
		}
		return true
	}, nil
}

type opError struct {
	sentinel error
	msg      string
}

func (e *opError) Error() string { return e.msg }

func mismatch(format string, args ...any) error {
	return &opError{sentinel: apperr.ErrTypeMismatch, msg: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...any) error {
	return &opError{sentinel: apperr.ErrValidation, msg: fmt.Sprintf(format, args...)}
}

func compileOp(kind value.Kind, multi bool, op string, operand any) (check, error) {
	switch op {
	case OpEq, OpNe:
		if operand == nil {
			if op == OpEq {
				return func(_ any, ok bool) bool { return !ok }, nil
			}
			return func(_ any, ok bool) bool { return ok }, nil
		}
		want, ok := value.Coerce(kind, operand)
		if !ok {
			return nil, mismatch("%v is not a %s", operand, kind)
		}
		eq := func(v any) bool { return value.Equal(kind, v, want) }
		if op == OpEq {
			return func(v any, ok bool) bool { return ok && some(multi, v, eq) }, nil
		}
		return func(v any, ok bool) bool { return ok && !some(multi, v, eq) }, nil

	case OpIn, OpNin:
		set, hasNull, err := compileSet(kind, operand)
		if err != nil {
			return nil, err
		}
		member := func(v any) bool {
			_, ok := set[value.StringifyAs(kind, v)]
			return ok
		}
		if op == OpIn {
			return func(v any, ok bool) bool {
				if !ok {
					return hasNull
				}
				return some(multi, v, member)
			}, nil
		}
		return func(v any, ok bool) bool {
			if !ok {
				return false
			}
			return !some(multi, v, member)
		}, nil

	case OpGt, OpGte, OpLt, OpLte:
		if !kind.Ordered() {
			return nil, mismatch("%s is not defined for %s", op, kind)
		}
		bound, ok := value.Coerce(kind, operand)
		if !ok {
			return nil, mismatch("%v is not a %s", operand, kind)
		}
		accept := rangeTest(op)
		cmp := func(v any) bool {
			if _, ok := value.Coerce(kind, v); !ok {
				return false
			}
			return accept(value.Compare(kind, v, bound))
		}
		return func(v any, ok bool) bool { return ok && some(multi, v, cmp) }, nil

	case OpRegex, OpGlob:
		if kind != value.String {
			return nil, mismatch("%s is not defined for %s", op, kind)
		}
		s, ok := operand.(string)
		if !ok {
			return nil, mismatch("%s needs a string pattern", op)
		}
		compile := ParseRegex
		if op == OpGlob {
			compile = GlobToRegex
		}
		re, err := compile(s)
		if err != nil {
			return nil, invalid("%s", err.Error())
		}
		matchString := func(v any) bool {
			str, ok := v.(string)
			return ok && re.MatchString(str)
		}
		return func(v any, ok bool) bool { return ok && some(multi, v, matchString) }, nil

	case ElemMatch:
		return nil, mismatch("elemMatch needs a list of objects")
	}
	return nil, mismatch("unknown operator")
}

func rangeTest(op string) func(c int) bool {
	switch op {
	case OpGt:
		return func(c int) bool { return c > 0 }
	case OpGte:
		return func(c int) bool { return c >= 0 }
	case OpLt:
		return func(c int) bool { return c < 0 }
	}
	return func(c int) bool { return c <= 0 }
}

func compileSet(kind value.Kind, operand any) (map[string]struct{}, bool, error) {
	elems, ok := operand.([]any)
	if !ok {
		if ss, isStrings := operand.([]string); isStrings {
			for _, s := range ss {
				elems = append(elems, s)
			}
			ok = true
		}
	}
	if !ok {
		return nil, false, mismatch("expected a list, got %T", operand)
	}
	set := make(map[string]struct{}, len(elems))
	hasNull := false
	for _, e := range elems {
		if e == nil {
			hasNull = true
			continue
		}
		if _, ok := value.Coerce(kind, e); !ok {
			return nil, false, mismatch("%v is not a %s", e, kind)
		}
		set[value.StringifyAs(kind, e)] = struct{}{}
	}
	return set, hasNull, nil
}

// some applies f to a single value, or to every element of a multi-valued
// path until one holds.
func some(multi bool, v any, f func(any) bool) bool {
	if l, ok := v.([]any); ok && multi {
		for _, e := range l {
			if e != nil && f(e) {
				return true
			}
		}
		return false
	}
	return f(v)
}
