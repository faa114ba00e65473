// Package value coerces, compares and stringifies field values by kind.
package value

import (
	"fmt"
	"strings"
)

// Kind is the resolved kind of a field value.
type Kind uint8

const (
	Invalid Kind = iota
	String
	Int
	Float
	Boolean
	Date
	JSON
	List
	// Object is a single nested object: an embedded map or a linked node.
	Object
)

var kindNames = [...]string{
	Invalid: "Invalid",
	String:  "String",
	Int:     "Int",
	Float:   "Float",
	Boolean: "Boolean",
	Date:    "Date",
	JSON:    "JSON",
	List:    "List",
	Object:  "Object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Scalar reports whether values of k are compared directly.
func (k Kind) Scalar() bool {
	switch k {
	case String, Int, Float, Boolean, Date, JSON:
		return true
	}
	return false
}

// Ordered reports whether range operators (gt, gte, lt, lte) apply to k.
func (k Kind) Ordered() bool {
	return k == Int || k == Float || k == Date
}

// ParseKind maps a scalar name (as written in a schema) to a Kind. ID maps
// to String.
func ParseKind(name string) (Kind, bool) {
	switch strings.TrimSpace(name) {
	case "String", "ID":
		return String, true
	case "Int":
		return Int, true
	case "Float":
		return Float, true
	case "Boolean":
		return Boolean, true
	case "Date", "DateTime":
		return Date, true
	case "JSON":
		return JSON, true
	}
	return Invalid, false
}
