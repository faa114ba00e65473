package api

import (
	"github.com/starford/nodeql/internal/connection"
	"github.com/starford/nodeql/internal/filter"
	"github.com/starford/nodeql/internal/nodeservice"
	"github.com/starford/nodeql/internal/query"
	"github.com/starford/nodeql/internal/sorter"
)

// FindOneRequest is the request body for POST /query/{type}/one.
type FindOneRequest struct {
	Filter filter.Expr  `json:"filter,omitempty"`
	Sort   *sorter.Spec `json:"sort,omitempty"`
}

// BatchRequest is the request body for POST /query. Every query names its
// own type.
type BatchRequest struct {
	Queries []query.Request `json:"queries" validate:"required"`
}

// BatchResult is one slot of a batch response: a connection or an error.
type BatchResult struct {
	Connection *connection.Connection `json:"connection,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Status     int                    `json:"status"`
}

// BatchResponse wraps batch results in request order.
type BatchResponse struct {
	Results []BatchResult `json:"results" validate:"required"`
}

// TypeInfo is a node type with its node count.
type TypeInfo = nodeservice.TypeInfo

// TypesResponse wraps the registered node types.
type TypesResponse struct {
	Types []TypeInfo `json:"types" validate:"required"`
}

// FieldsResponse lists the queryable field paths of a type.
type FieldsResponse struct {
	Type   string   `json:"type" example:"MarkdownRemark" validate:"required"`
	Fields []string `json:"fields" validate:"required"`
}
