// Package apperr defines the error taxonomy shared by ingestion and querying.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")

	// Ingestion.
	ErrDuplicateID = errors.New("duplicate node id")
	ErrStoreFrozen = errors.New("store is frozen")

	// Schema registration.
	ErrUnknownType   = errors.New("unknown type")
	ErrDuplicateType = errors.New("type already registered")

	// Query compilation.
	ErrUnknownFieldPath = errors.New("unknown field path")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrValidation       = errors.New("validation error")

	// Query execution.
	ErrCancelled = errors.New("query cancelled")

	// Serving.
	ErrNotReady = errors.New("snapshot not ready")
)

// QueryError carries the location of a query failure. It unwraps to one of
// the sentinels above so callers can branch with errors.Is.
type QueryError struct {
	Op       string // "filter", "sort", "group", ...
	Type     string
	Path     string
	Operator string
	Msg      string
	Err      error
}

func (e *QueryError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	if e.Type != "" {
		b.WriteString(" type=")
		b.WriteString(e.Type)
	}
	if e.Path != "" {
		b.WriteString(" path=")
		b.WriteString(e.Path)
	}
	if e.Operator != "" {
		b.WriteString(" operator=")
		b.WriteString(e.Operator)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsCompileError reports whether err was raised while compiling a query,
// before any node was evaluated.
func IsCompileError(err error) bool {
	return errors.Is(err, ErrUnknownType) ||
		errors.Is(err, ErrUnknownFieldPath) ||
		errors.Is(err, ErrTypeMismatch) ||
		errors.Is(err, ErrValidation)
}

// CheckContext returns an error wrapping both ErrCancelled and the context
// error once ctx is done, nil otherwise.
func CheckContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	default:
		return nil
	}
}
