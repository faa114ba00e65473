// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes node queries for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/nodeql/internal/apperr"
	"github.com/starford/nodeql/internal/filter"
	"github.com/starford/nodeql/internal/nodeservice"
	"github.com/starford/nodeql/internal/query"
	"github.com/starford/nodeql/internal/sorter"
)

const queryFormatURI = "nodeql://query-format"

// Server wraps the MCP server with node query tools.
type Server struct {
	mcp *server.MCPServer
	svc *nodeservice.Service
}

// New creates a new MCP server with all query tools registered.
func New(svc *nodeservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"nodeql",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("query_nodes",
		mcp.WithDescription("Query nodes of one type with filter, sort, pagination, group, distinct and numeric aggregates. "+
			"Returns a connection (totalCount, nodes, edges, pageInfo). Read the query format first via "+
			"the get_query_contract tool or the "+queryFormatURI+" resource."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Node type name (see list_types)")),
		mcp.WithString("request", mcp.Description("Optional JSON request body, e.g. {\"filter\":{\"title\":{\"eq\":\"x\"}},\"limit\":5}")),
	), s.queryNodes)

	s.mcp.AddTool(mcp.NewTool("find_node",
		mcp.WithDescription("Return the first node of a type matching a filter, in sort order."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Node type name")),
		mcp.WithString("filter", mcp.Description("Optional JSON filter object")),
		mcp.WithString("sort", mcp.Description("Optional JSON sort object: {\"fields\":[...],\"order\":[\"ASC\"|\"DESC\"]}")),
	), s.findNode)

	s.mcp.AddTool(mcp.NewTool("list_types",
		mcp.WithDescription("List registered node types with their node counts."),
	), s.listTypes)

	s.mcp.AddTool(mcp.NewTool("list_fields",
		mcp.WithDescription("List the queryable field paths of a node type. Nested paths use ___ between segments."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Node type name")),
	), s.listFields)

	s.mcp.AddTool(mcp.NewTool("get_node",
		mcp.WithDescription("Get one node by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
	), s.getNode)

	s.mcp.AddTool(mcp.NewTool("get_query_contract",
		mcp.WithDescription("Returns the query request format: filter operators, sort, pagination and aggregates."),
	), s.getQueryContract)

	s.mcp.AddResource(
		mcp.NewResource(queryFormatURI, "Query Format",
			mcp.WithResourceDescription("Request format accepted by query_nodes and find_node."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readQueryFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// optionalJSON decodes an optional JSON string argument into dst. A missing
// or empty argument leaves dst untouched.
func optionalJSON(req mcp.CallToolRequest, name string, dst any) error {
	raw, err := req.RequireString(name)
	if err != nil || strings.TrimSpace(raw) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("%s: invalid JSON: %w", name, err)
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) queryNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var qr query.Request
	if err := optionalJSON(req, "request", &qr); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if qr.Type != "" && qr.Type != typ {
		return mcp.NewToolResultError(fmt.Sprintf("request type %s does not match type %s", qr.Type, typ)), nil
	}
	qr.Type = typ

	conn, err := s.svc.Query(ctx, qr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(conn)
}

func (s *Server) findNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var expr filter.Expr
	if err := optionalJSON(req, "filter", &expr); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var sort *sorter.Spec
	if err := optionalJSON(req, "sort", &sort); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	n, err := s.svc.FindOne(ctx, typ, expr, sort)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultText("no matching node"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n)
}

func (s *Server) listTypes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	types, err := s.svc.Types(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines := make([]string, len(types))
	for i, t := range types {
		lines[i] = fmt.Sprintf("%s\t%d", t.Name, t.Count)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) listFields(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fields, err := s.svc.Fields(ctx, typ)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(strings.Join(fields, "\n")), nil
}

func (s *Server) getNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Node(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n)
}

func (s *Server) getQueryContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(QueryFormatContract), nil
}

func (s *Server) readQueryFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      queryFormatURI,
			MIMEType: "text/markdown",
			Text:     QueryFormatContract,
		},
	}, nil
}
