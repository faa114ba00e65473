package value

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Coerce converts v into the canonical Go representation of kind k:
// string, int64, float64, bool, time.Time, or the raw value for JSON.
// It reports false when v cannot represent a value of k.
func Coerce(k Kind, v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	switch k {
	case String:
		switch v.(type) {
		case map[string]any, []any:
			return nil, false
		}
		s, err := cast.ToStringE(v)
		return s, err == nil
	case Int:
		switch t := v.(type) {
		case float64:
			if t != math.Trunc(t) {
				return nil, false
			}
		case float32:
			if float64(t) != math.Trunc(float64(t)) {
				return nil, false
			}
		case bool:
			return nil, false
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
			return i, err == nil
		}
		i, err := cast.ToInt64E(v)
		return i, err == nil
	case Float:
		if _, ok := v.(bool); ok {
			return nil, false
		}
		f, err := cast.ToFloat64E(v)
		return f, err == nil
	case Boolean:
		b, err := cast.ToBoolE(v)
		return b, err == nil
	case Date:
		if t, ok := v.(time.Time); ok {
			return t.UTC(), true
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			return nil, false
		}
		t, err := cast.ToTimeE(v)
		if err != nil {
			return nil, false
		}
		return t.UTC(), true
	case JSON:
		return v, true
	}
	return nil, false
}

// Compare orders two canonical values of kind k. Values that do not coerce
// sort after those that do.
func Compare(k Kind, a, b any) int {
	ca, okA := Coerce(k, a)
	cb, okB := Coerce(k, b)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}
	switch k {
	case String:
		return strings.Compare(ca.(string), cb.(string))
	case Int:
		return cmp.Compare(ca.(int64), cb.(int64))
	case Float:
		return cmp.Compare(ca.(float64), cb.(float64))
	case Boolean:
		x, y := ca.(bool), cb.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case Date:
		return ca.(time.Time).Compare(cb.(time.Time))
	case JSON:
		return bytes.Compare(canonicalJSON(ca), canonicalJSON(cb))
	}
	return 0
}

// Equal reports whether a and b are the same value of kind k.
func Equal(k Kind, a, b any) bool {
	ca, okA := Coerce(k, a)
	cb, okB := Coerce(k, b)
	if !okA || !okB {
		return false
	}
	return Compare(k, ca, cb) == 0
}

// CompareAny orders resolved values whose kind is only known at runtime,
// such as list elements. Lists compare element-wise, then by length.
func CompareAny(k, elem Kind, a, b any) int {
	if k != List {
		return Compare(k, a, b)
	}
	la, okA := a.([]any)
	lb, okB := b.([]any)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}
	for i := 0; i < len(la) && i < len(lb); i++ {
		if c := Compare(elem, la[i], lb[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(la), len(lb))
}

// Stringify renders a resolved value the way distinct and group report it.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = Stringify(e)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		return string(canonicalJSON(t))
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

// StringifyAs coerces v to kind k before rendering it, so 3 and "3" on an Int
// field produce the same key.
func StringifyAs(k Kind, v any) string {
	if c, ok := Coerce(k, v); ok && k != JSON {
		return Stringify(c)
	}
	return Stringify(v)
}

// Number returns a float for numeric kinds and unix seconds for dates.
func Number(k Kind, v any) (float64, bool) {
	c, ok := Coerce(k, v)
	if !ok {
		return 0, false
	}
	switch t := c.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case time.Time:
		return float64(t.Unix()), true
	}
	return 0, false
}

func canonicalJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(fmt.Sprint(v))
	}
	return data
}
