// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes paperlink tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/paperlink/internal/linker"
	"github.com/starford/paperlink/internal/models"
	"github.com/starford/paperlink/internal/noteservice"
	"github.com/starford/paperlink/internal/settings"
)

const embedFormatURI = "paperlink://embed-format"

// Server wraps the MCP server with paperlink tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all paperlink tools registered.
func New(svc *noteservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"paperlink",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("upsert_placeholder",
		mcp.WithDescription("Look up a paperless-ngx document and create or overwrite its placeholder file in the vault. "+
			"Returns the placeholder, including the embed filename."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Decimal document id")),
	), s.upsertPlaceholder)

	s.mcp.AddTool(mcp.NewTool("render_document",
		mcp.WithDescription("Replace the \"paperless-ngx <id>\" token on a note line with an embed of the document's placeholder. "+
			"Read the paperlink://embed-format resource for the conventions."),
		mcp.WithString("note", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("0-based line holding the token")),
	), s.renderDocument)

	s.mcp.AddTool(mcp.NewTool("insert_document",
		mcp.WithDescription("Insert an embed of a document's placeholder into a note at a position."),
		mcp.WithString("note", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("0-based line")),
		mcp.WithNumber("column", mcp.Required(), mcp.Description("0-based character column")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Decimal document id")),
	), s.insertDocument)

	s.mcp.AddTool(mcp.NewTool("list_placeholders",
		mcp.WithDescription("List every placeholder the vault holds, with document ids and preview URLs."),
	), s.listPlaceholders)

	s.mcp.AddTool(mcp.NewTool("get_embeds",
		mcp.WithDescription("Find all notes that embed the specified placeholder."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Placeholder filename (the media_filename)")),
	), s.getEmbeds)

	s.mcp.AddTool(mcp.NewTool("get_settings",
		mcp.WithDescription("Return the paperless-ngx API URL and placeholder folder in effect."),
	), s.getSettings)

	s.mcp.AddTool(mcp.NewTool("update_settings",
		mcp.WithDescription("Change the paperless-ngx API URL and/or placeholder folder. Omitted fields are kept."),
		mcp.WithString("apiUrl", mcp.Description("Base URL of the paperless-ngx API, e.g. http://host:8000/api")),
		mcp.WithString("dummyFolder", mcp.Description("Vault folder for placeholder files")),
	), s.updateSettings)

	s.mcp.AddTool(mcp.NewTool("get_embed_contract",
		mcp.WithDescription("Returns the paperlink embed format. Call this before editing notes that reference documents."),
	), s.getEmbedContract)

	// Resource: embed format contract.
	s.mcp.AddResource(
		mcp.NewResource(embedFormatURI, "Embed Format",
			mcp.WithResourceDescription("How paperless-ngx documents are tokenized and embedded in notes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readEmbedFormatResource,
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

func (s *Server) upsertPlaceholder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.UpsertPlaceholder(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(p), nil
}

func (s *Server) renderDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	note, err := req.RequireString("note")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	line, err := req.RequireInt("line")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	edit, err := s.svc.Render(ctx, note, line)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(edit), nil
}

func (s *Server) insertDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	note, err := req.RequireString("note")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	line, err := req.RequireInt("line")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	column, err := req.RequireInt("column")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	edit, err := s.svc.Insert(ctx, note, models.Position{Line: line, Column: column}, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(edit), nil
}

func (s *Server) listPlaceholders(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.svc.ListPlaceholders(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(list), nil
}

func (s *Server) getEmbeds(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	embeds, err := s.svc.Embeds(ctx, filename)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(embeds) == 0 {
		return mcp.NewToolResultText("no embedding notes found"), nil
	}
	notes := make([]string, len(embeds))
	for i, e := range embeds {
		notes[i] = e.Note
	}
	return mcp.NewToolResultText(strings.Join(notes, "\n")), nil
}

func (s *Server) getSettings(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Settings()), nil
}

func (s *Server) updateSettings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := s.svc.UpdateSettings(ctx, settings.Patch{
		APIURL:            req.GetString("apiUrl", ""),
		PlaceholderFolder: req.GetString("dummyFolder", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(cfg), nil
}

func (s *Server) getEmbedContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(EmbedFormatContract), nil
}

func (s *Server) readEmbedFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      embedFormatURI,
			MIMEType: "text/markdown",
			Text:     EmbedFormatContract,
		},
	}, nil
}

// toolError reports a failure as a tool error. Linker failures show the
// user-facing notice along with the failure kind.
func toolError(err error) *mcp.CallToolResult {
	var le *linker.Error
	if errors.As(err, &le) {
		return mcp.NewToolResultError(string(le.Kind) + ": " + le.Notice)
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}
