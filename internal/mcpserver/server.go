// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes gallery tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/galdr/internal/apperr"
	"github.com/starford/galdr/internal/galleryservice"
	"github.com/starford/galdr/internal/ranking"
	"github.com/starford/galdr/internal/storage"
	"github.com/starford/galdr/internal/validator"
)

// MetadataFormatURI addresses the metadata contract resource.
const MetadataFormatURI = "galdr://metadata-format"

const defaultSearchLimit = 20

// Server wraps the MCP server with gallery tools.
type Server struct {
	mcp   *server.MCPServer
	store storage.Provider
	svc   *galleryservice.Service
}

// New creates a new MCP server with all gallery tools registered. svc must
// have been loaded; tools answer apperr.ErrNotReady otherwise.
func New(store storage.Provider, svc *galleryservice.Service, version string) *Server {
	s := &Server{store: store, svc: svc}

	s.mcp = server.NewMCPServer(
		"Galdr",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_gallery",
		mcp.WithDescription("Search gallery items. Every query word must appear in the title, prompt or tags; "+
			"results are ranked with title matches first. An empty query lists every item."),
		mcp.WithString("query", mcp.Description("Search words")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of items (default 20)")),
	), s.searchGallery)

	s.mcp.AddTool(mcp.NewTool("get_item",
		mcp.WithDescription("Get one assembled gallery item by id, including image URLs and tags."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
	), s.getItem)

	s.mcp.AddTool(mcp.NewTool("related_items",
		mcp.WithDescription("List items related to an item by shared tags, style and orientation."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithNumber("pages", mcp.Description("Pages of 12 to reveal (default 1)")),
	), s.relatedItems)

	s.mcp.AddTool(mcp.NewTool("popular_tags",
		mcp.WithDescription("List the most used tags with the number of items carrying each."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of tags (default 10)")),
	), s.popularTags)

	s.mcp.AddTool(mcp.NewTool("validate_gallery",
		mcp.WithDescription("Validate every item folder on disk and report errors and warnings. "+
			"Nothing is written."),
	), s.validateGallery)

	s.mcp.AddTool(mcp.NewTool("check_metadata",
		mcp.WithDescription("Validate the content of a meta.json without writing it. "+
			"Read the contract first via get_metadata_contract or the "+MetadataFormatURI+" resource."),
		mcp.WithString("content", mcp.Required(), mcp.Description("meta.json content")),
	), s.checkMetadata)

	s.mcp.AddTool(mcp.NewTool("get_metadata_contract",
		mcp.WithDescription("Returns the meta.json format contract. "+
			"Call this before writing or reviewing item metadata."),
	), s.getMetadataContract)

	s.mcp.AddResource(
		mcp.NewResource(MetadataFormatURI, "Metadata Format Contract",
			mcp.WithResourceDescription("Authored meta.json format that every gallery item must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMetadataFormatResource,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func serviceError(err error, id string) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("item not found: %s", id))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) searchGallery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	limit := req.GetInt("limit", defaultSearchLimit)

	items, total, err := s.svc.Search(ctx, query, limit)
	if err != nil {
		return serviceError(err, ""), nil
	}
	return jsonResult(map[string]any{
		"query": query,
		"total": total,
		"items": items,
	})
}

func (s *Server) getItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	it, err := s.svc.Get(ctx, id)
	if err != nil {
		return serviceError(err, id), nil
	}
	return jsonResult(it)
}

func (s *Server) relatedItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pages := req.GetInt("pages", 1)

	page, err := s.svc.Related(ctx, id, pages, ranking.DefaultPageSize)
	if err != nil {
		return serviceError(err, id), nil
	}
	return jsonResult(page)
}

func (s *Server) popularTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", ranking.DefaultTagLimit)

	tags, err := s.svc.PopularTags(ctx, limit)
	if err != nil {
		return serviceError(err, ""), nil
	}
	if len(tags) == 0 {
		return mcp.NewToolResultText("no tags found"), nil
	}
	lines := make([]string, len(tags))
	for i, t := range tags {
		lines[i] = fmt.Sprintf("%s (%d)", t.Tag, t.Count)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) validateGallery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := validator.ValidateGallery(ctx, s.store, validator.Options{})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var b strings.Builder
	rep.Print(&b, &b)
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (s *Server) checkMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := validator.Validate("input", []byte(content))
	out := map[string]any{
		"valid":    res.Valid(),
		"errors":   orEmpty(res.Errors),
		"warnings": orEmpty(res.Warnings),
	}
	if res.Repaired {
		out["repaired"] = string(res.Canonical)
	}
	return jsonResult(out)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Server) getMetadataContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MetadataFormatContract), nil
}

func (s *Server) readMetadataFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      MetadataFormatURI,
			MIMEType: "text/markdown",
			Text:     MetadataFormatContract,
		},
	}, nil
}
