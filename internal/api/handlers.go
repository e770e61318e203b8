package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/itemdesk/internal/checksum"
	"github.com/starford/itemdesk/internal/itemstore"
	"github.com/starford/itemdesk/internal/models"
)

const maxBodyBytes = 1 << 20

// ItemStore is the part of *itemstore.Store the handlers use.
type ItemStore interface {
	Add(ctx context.Context, f itemstore.Fields) (models.Item, error)
	Update(ctx context.Context, id int64, f itemstore.Fields) (models.Item, bool, error)
	Remove(ctx context.Context, id int64) (bool, error)
	Get(id int64) (models.Item, error)
	List(q itemstore.Query) itemstore.Page
}

// Handler holds API route handlers.
type Handler struct {
	store    ItemStore
	pageSize int
	basePath string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithPageSize sets the page size used when a request omits page_size.
func WithPageSize(n int) HandlerOption {
	return func(h *Handler) { h.pageSize = n }
}

// WithBasePath sets the prefix the router is mounted under. It is used to
// build the Location header of created items.
func WithBasePath(prefix string) HandlerOption {
	return func(h *Handler) { h.basePath = strings.TrimSuffix(prefix, "/") }
}

// NewHandler creates a new Handler.
func NewHandler(store ItemStore, opts ...HandlerOption) *Handler {
	h := &Handler{store: store, pageSize: itemstore.DefaultPageSize}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func itemID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func intParam(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}

// ListItems handles GET /items.
//
// Query parameters: name (substring, case-insensitive), priority,
// sort (newest|oldest), page (1-based), page_size.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := itemstore.Query{
		Filter:   itemstore.Filter{Name: q.Get("name")},
		PageSize: h.pageSize,
	}
	if raw := q.Get("priority"); raw != "" {
		p, ok := models.ParsePriority(raw)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorBody(itemstore.MsgPriority))
			return
		}
		query.Filter.Priority = p
	}
	sort, err := itemstore.ParseSort(q.Get("sort"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("sort must be newest or oldest"))
		return
	}
	query.Sort = sort

	page, ok := intParam(r, "page")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("page must be an integer"))
		return
	}
	query.Page = page
	size, ok := intParam(r, "page_size")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("page_size must be an integer"))
		return
	}
	if size != 0 {
		query.PageSize = size
	}

	body, err := json.Marshal(h.store.List(query))
	if err != nil {
		writeError(w, "list items", err)
		return
	}
	etag := checksum.ETag(body)
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && checksum.MatchNoneMatch(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(body, '\n'))
}

// GetItem handles GET /items/{id}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	item, err := h.store.Get(id)
	if err != nil {
		writeError(w, "get item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// CreateItem handles POST /items.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	item, err := h.store.Add(r.Context(), req)
	if err != nil {
		writeError(w, "create item", err)
		return
	}
	w.Header().Set("Location", h.basePath+"/items/"+strconv.FormatInt(item.ID, 10))
	writeJSON(w, http.StatusCreated, item)
}

// UpdateItem handles PUT /items/{id}. The body replaces name, description
// and priority.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	id, ok := itemID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	var req ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	item, found, err := h.store.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, "update item", err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DeleteItem handles DELETE /items/{id}. Deleting a missing item succeeds.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	removed, err := h.store.Remove(r.Context(), id)
	if err != nil {
		writeError(w, "delete item", err)
		return
	}
	if !removed {
		slog.Debug("delete of missing item", slog.Int64("id", id))
	}
	w.WriteHeader(http.StatusNoContent)
}
