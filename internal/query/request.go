package query

import (
	"math"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/nodeql/internal/apperr"
	"github.com/starford/nodeql/internal/connection"
	"github.com/starford/nodeql/internal/filter"
	"github.com/starford/nodeql/internal/sorter"
)

// FieldRef names the field of a distinct, group or numeric aggregate.
type FieldRef struct {
	Field string `json:"field"`
}

// Validate implements validation.Validatable.
func (f FieldRef) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Field, validation.Required),
	)
}

// Request is the wire form of a connection query.
type Request struct {
	Type     string       `json:"type,omitempty"`
	Filter   filter.Expr  `json:"filter,omitempty"`
	Sort     *sorter.Spec `json:"sort,omitempty"`
	Skip     *int         `json:"skip,omitempty"`
	Limit    *int         `json:"limit,omitempty"`
	Group    *FieldRef    `json:"group,omitempty"`
	Distinct *FieldRef    `json:"distinct,omitempty"`
	Max      *FieldRef    `json:"max,omitempty"`
	Min      *FieldRef    `json:"min,omitempty"`
	Sum      *FieldRef    `json:"sum,omitempty"`
}

// Page returns the request's skip/limit window.
func (r Request) Page() connection.Page {
	return connection.Page{Skip: r.Skip, Limit: r.Limit}
}

// Validate implements validation.Validatable.
func (r Request) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Type, validation.Required),
		validation.Field(&r.Skip, validation.Min(0), validation.Max(math.MaxInt32)),
		validation.Field(&r.Limit, validation.Min(0), validation.Max(math.MaxInt32)),
		validation.Field(&r.Sort, validation.By(validateSort)),
		validation.Field(&r.Group),
		validation.Field(&r.Distinct,
			validation.When(r.Group != nil, validation.Nil.Error("cannot be combined with group")),
		),
		validation.Field(&r.Max),
		validation.Field(&r.Min),
		validation.Field(&r.Sum),
	)
}

func validateSort(v any) error {
	s, _ := v.(*sorter.Spec)
	if s == nil {
		return nil
	}
	if len(s.Fields) != len(s.Order) {
		return validation.NewError("validation_sort_length", "fields and order must have the same length")
	}
	for _, o := range s.Order {
		if _, ok := sorter.ParseOrder(string(o)); !ok {
			return validation.NewError("validation_sort_order", "order must be ASC or DESC")
		}
	}
	return nil
}

func invalidRequest(typ string, err error) error {
	return &apperr.QueryError{Op: "query", Type: typ, Msg: err.Error(), Err: apperr.ErrValidation}
}
