package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/starford/nodeql/internal/nodeservice"
	"github.com/starford/nodeql/internal/query"
)

// Handler holds API route handlers.
type Handler struct {
	svc *nodeservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *nodeservice.Service) *Handler {
	return &Handler{svc: svc}
}

// urlParam returns a decoded path parameter. Supports encoded slashes from
// OpenAPI clients.
func urlParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Query handles POST /api/query/{type}.
//
//	@Summary		Run a connection query over one node type
//	@Tags			query
//	@Accept			json
//	@Produce		json
//	@Param			type	path		string			true	"Node type"
//	@Param			body	body		query.Request	true	"Filter, sort, pagination and aggregates"
//	@Success		200		{object}	connection.Connection
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		504		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/query/{type} [post]
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req query.Request
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	typ := urlParam(r, "type")
	if req.Type != "" && req.Type != typ {
		writeJSON(w, http.StatusBadRequest, errorBody("body type "+req.Type+" does not match path type "+typ))
		return
	}
	req.Type = typ

	conn, err := h.svc.Query(r.Context(), req)
	if err != nil {
		writeError(w, "query", err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// FindOne handles POST /api/query/{type}/one.
//
//	@Summary		Find the first node matching a filter
//	@Tags			query
//	@Accept			json
//	@Produce		json
//	@Param			type	path		string			true	"Node type"
//	@Param			body	body		FindOneRequest	false	"Filter and sort"
//	@Success		200		{object}	node.Node
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/query/{type}/one [post]
func (h *Handler) FindOne(w http.ResponseWriter, r *http.Request) {
	var req FindOneRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	n, err := h.svc.FindOne(r.Context(), urlParam(r, "type"), req.Filter, req.Sort)
	if err != nil {
		writeError(w, "find one", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// QueryBatch handles POST /api/query.
//
//	@Summary		Run several queries against the same snapshot
//	@Tags			query
//	@Accept			json
//	@Produce		json
//	@Param			body	body		BatchRequest	true	"Queries"
//	@Success		200		{object}	BatchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/query [post]
func (h *Handler) QueryBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Queries) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("queries are required"))
		return
	}
	results, err := h.svc.QueryBatch(r.Context(), req.Queries)
	if err != nil {
		writeError(w, "query batch", err)
		return
	}
	resp := BatchResponse{Results: make([]BatchResult, len(results))}
	for i, res := range results {
		if res.Err != nil {
			status, _ := statusFor(res.Err)
			resp.Results[i] = BatchResult{Error: res.Err.Error(), Status: status}
			continue
		}
		resp.Results[i] = BatchResult{Connection: res.Connection, Status: http.StatusOK}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListTypes handles GET /api/types.
//
//	@Summary		List registered node types with node counts
//	@Tags			schema
//	@Produce		json
//	@Success		200	{object}	TypesResponse
//	@Security		BearerAuth
//	@Router			/types [get]
func (h *Handler) ListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.svc.Types(r.Context())
	if err != nil {
		writeError(w, "list types", err)
		return
	}
	writeJSON(w, http.StatusOK, TypesResponse{Types: types})
}

// ListFields handles GET /api/types/{type}/fields.
//
//	@Summary		List the queryable field paths of a node type
//	@Tags			schema
//	@Produce		json
//	@Param			type	path		string	true	"Node type"
//	@Success		200		{object}	FieldsResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/types/{type}/fields [get]
func (h *Handler) ListFields(w http.ResponseWriter, r *http.Request) {
	typ := urlParam(r, "type")
	fields, err := h.svc.Fields(r.Context(), typ)
	if err != nil {
		writeError(w, "list fields", err)
		return
	}
	writeJSON(w, http.StatusOK, FieldsResponse{Type: typ, Fields: fields})
}

// GetNode handles GET /api/nodes/{id}.
//
//	@Summary		Get a node by id
//	@Tags			nodes
//	@Produce		json
//	@Param			id	path		string	true	"Node id"
//	@Success		200	{object}	node.Node
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id} [get]
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Node(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeError(w, "get node", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
