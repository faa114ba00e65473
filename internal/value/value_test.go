package value

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCoerce(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		in   any
		want any
		ok   bool
	}{
		{"string from string", String, "a", "a", true},
		{"string from int", String, 3, "3", true},
		{"string rejects map", String, map[string]any{}, nil, false},
		{"int from float64", Int, float64(4), int64(4), true},
		{"int rejects fraction", Int, 4.5, nil, false},
		{"int from numeric string", Int, "12", int64(12), true},
		{"int from zero-padded string", Int, "010", int64(10), true},
		{"int from zero-padded eight", Int, "08", int64(8), true},
		{"int rejects hex string", Int, "0x10", nil, false},
		{"int rejects bool", Int, true, nil, false},
		{"float from int", Float, 2, float64(2), true},
		{"float from string", Float, "2.5", 2.5, true},
		{"bool from string", Boolean, "true", true, true},
		{"nil never coerces", String, nil, nil, false},
		{"json passes through", JSON, []any{1.0}, []any{1.0}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := Coerce(c.kind, c.in)
			assert.Equal(t, c.ok, ok)
			if c.ok {
				assert.Equal(t, c.want, got)
			}
		})
	}
}

func TestCoerce_Date(t *testing.T) {
	got, ok := Coerce(Date, "2024-03-01")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got)

	got, ok = Coerce(Date, "2024-03-01T10:00:00+02:00")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), got)

	_, ok = Coerce(Date, "")
	assert.False(t, ok)
	_, ok = Coerce(Date, "not a date")
	assert.False(t, ok)
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(String, "B", "a"), "byte order puts upper case first")
	assert.Equal(t, -1, Compare(Int, 2, 10))
	assert.Equal(t, 1, Compare(Float, 2.5, "2.25"))
	assert.Equal(t, -1, Compare(Boolean, false, true))
	assert.Equal(t, 0, Compare(Boolean, true, true))
	assert.Equal(t, -1, Compare(Date, "2023-12-31", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, Compare(JSON, map[string]any{"a": 1, "b": 2}, map[string]any{"b": 2, "a": 1}))
}

func TestCompare_MissingSortsLast(t *testing.T) {
	assert.Equal(t, 1, Compare(Int, nil, 3))
	assert.Equal(t, -1, Compare(Int, 3, nil))
	assert.Equal(t, 0, Compare(Int, nil, nil))
}

func TestCompareAny_Lists(t *testing.T) {
	assert.Equal(t, -1, CompareAny(List, String, []any{"a", "b"}, []any{"a", "c"}))
	assert.Equal(t, -1, CompareAny(List, String, []any{"a"}, []any{"a", "b"}))
	assert.Equal(t, 1, CompareAny(List, Int, nil, []any{1}))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Int, 5, "5"))
	assert.True(t, Equal(Float, 5, 5.0))
	assert.False(t, Equal(String, "a", nil))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "3", Stringify(3))
	assert.Equal(t, "3", Stringify(int64(3)))
	assert.Equal(t, "4.5", Stringify(4.5))
	assert.Equal(t, "5", Stringify(5.0))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, "a,b", Stringify([]any{"a", "b"}))
	assert.Equal(t, `{"a":1}`, Stringify(map[string]any{"a": 1}))
	assert.Equal(t, "2024-01-02T00:00:00Z", Stringify(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "", Stringify(nil))
}

func TestStringifyAs_NormalisesKind(t *testing.T) {
	assert.Equal(t, StringifyAs(Int, "3"), StringifyAs(Int, 3.0))
	assert.Equal(t, "2024-05-01T00:00:00Z", StringifyAs(Date, "2024-05-01"))
}

func TestNumber(t *testing.T) {
	n, ok := Number(Int, "7")
	assert.True(t, ok)
	assert.Equal(t, 7.0, n)

	n, ok = Number(Date, "1970-01-02T00:00:00Z")
	assert.True(t, ok)
	assert.Equal(t, 86400.0, n)

	_, ok = Number(String, "x")
	assert.False(t, ok)
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("ID")
	assert.True(t, ok)
	assert.Equal(t, String, k)

	_, ok = ParseKind("Review")
	assert.False(t, ok)

	assert.True(t, Date.Ordered())
	assert.False(t, String.Ordered())
	assert.Equal(t, "Float", Float.String())
}
