// Package mcpserver exposes the item store as MCP (Model Context Protocol)
// tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/itemdesk/internal/apperr"
	"github.com/starford/itemdesk/internal/itemstore"
	"github.com/starford/itemdesk/internal/models"
)

// Server wraps the MCP server with item tools.
type Server struct {
	mcp      *server.MCPServer
	store    *itemstore.Store
	pageSize int
}

// Option configures a Server.
type Option func(*Server)

// WithPageSize sets the page size list_items uses when page_size is omitted.
func WithPageSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// New creates an MCP server with all item tools registered.
func New(store *itemstore.Store, version string, opts ...Option) *Server {
	s := &Server{store: store, pageSize: itemstore.DefaultPageSize}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(
		"itemdesk",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	priorities := []string{string(models.PriorityHigh), string(models.PriorityMedium), string(models.PriorityLow)}

	s.mcp.AddTool(mcp.NewTool("add_item",
		mcp.WithDescription("Create an item. Read get_item_contract or the "+ItemFormatURI+" resource for the rules."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Item name, at least 3 characters")),
		mcp.WithString("description", mcp.Required(), mcp.Description("Item description")),
		mcp.WithString("priority", mcp.Required(), mcp.Enum(priorities...)),
	), s.addItem)

	s.mcp.AddTool(mcp.NewTool("update_item",
		mcp.WithDescription("Replace name, description and priority of an existing item."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithString("name", mcp.Required()),
		mcp.WithString("description", mcp.Required()),
		mcp.WithString("priority", mcp.Required(), mcp.Enum(priorities...)),
	), s.updateItem)

	s.mcp.AddTool(mcp.NewTool("remove_item",
		mcp.WithDescription("Delete an item by id."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Item id")),
	), s.removeItem)

	s.mcp.AddTool(mcp.NewTool("get_item",
		mcp.WithDescription("Return one item as JSON."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Item id")),
	), s.getItem)

	s.mcp.AddTool(mcp.NewTool("list_items",
		mcp.WithDescription("List items with optional filtering, sorting and paging."),
		mcp.WithString("name", mcp.Description("Case-insensitive substring of the name")),
		mcp.WithString("priority", mcp.Enum(priorities...)),
		mcp.WithString("sort", mcp.Enum(string(itemstore.SortNewest), string(itemstore.SortOldest))),
		mcp.WithNumber("page", mcp.Description("1-based page number")),
		mcp.WithNumber("page_size", mcp.Description("Items per page (defaults to the configured list size)")),
	), s.listItems)

	s.mcp.AddTool(mcp.NewTool("get_item_contract",
		mcp.WithDescription("Returns the item format and validation rules. Call this before creating or updating items."),
	), s.getItemContract)

	s.mcp.AddResource(
		mcp.NewResource(ItemFormatURI, "Item Format Contract",
			mcp.WithResourceDescription("Fields, rules and validation messages of an item."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readItemFormatResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// errorResult renders store errors. Validation problems are listed one per line.
func errorResult(err error) *mcp.CallToolResult {
	var ve *itemstore.ValidationError
	if errors.As(err, &ve) {
		return mcp.NewToolResultError(strings.Join(ve.Messages(), "\n"))
	}
	return mcp.NewToolResultError(err.Error())
}

func requireID(req mcp.CallToolRequest) (int64, error) {
	id, err := req.RequireFloat("id")
	if err != nil {
		return 0, err
	}
	if id <= 0 || id != float64(int64(id)) {
		return 0, fmt.Errorf("id must be a positive integer")
	}
	return int64(id), nil
}

func fieldsFrom(req mcp.CallToolRequest) itemstore.Fields {
	return itemstore.Fields{
		Name:        req.GetString("name", ""),
		Description: req.GetString("description", ""),
		Priority:    models.Priority(req.GetString("priority", "")),
	}
}

func (s *Server) addItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	it, err := s.store.Add(ctx, fieldsFrom(req))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(it), nil
}

func (s *Server) updateItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	it, found, err := s.store.Update(ctx, id, fieldsFrom(req))
	if err != nil {
		return errorResult(err), nil
	}
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("item %d not found", id)), nil
	}
	return jsonResult(it), nil
}

func (s *Server) removeItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	removed, err := s.store.Remove(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	if !removed {
		return mcp.NewToolResultText(fmt.Sprintf("item %d did not exist", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("removed: %d", id)), nil
}

func (s *Server) getItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	it, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("item %d not found", id)), nil
		}
		return errorResult(err), nil
	}
	return jsonResult(it), nil
}

func (s *Server) listItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := itemstore.Query{
		Filter:   itemstore.Filter{Name: req.GetString("name", "")},
		Page:     req.GetInt("page", 1),
		PageSize: req.GetInt("page_size", s.pageSize),
	}
	if raw := req.GetString("priority", ""); raw != "" {
		p, ok := models.ParsePriority(raw)
		if !ok {
			return mcp.NewToolResultError(itemstore.MsgPriority), nil
		}
		q.Filter.Priority = p
	}
	sort, err := itemstore.ParseSort(req.GetString("sort", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	q.Sort = sort
	return jsonResult(s.store.List(q)), nil
}

func (s *Server) getItemContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ItemFormatContract), nil
}

func (s *Server) readItemFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ItemFormatURI,
			MIMEType: "text/markdown",
			Text:     ItemFormatContract,
		},
	}, nil
}
