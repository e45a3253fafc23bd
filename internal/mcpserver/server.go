// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes outliner tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/outliner/internal/docservice"
	"github.com/starford/outliner/internal/export"
	"github.com/starford/outliner/internal/models"
	"github.com/starford/outliner/internal/session"
)

const contractURI = "outliner://document-format"

// Server wraps the MCP server with outliner tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all outliner tools registered.
func New(svc *docservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Outliner",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List the documents in the library, optionally only those carrying a tag."),
		mcp.WithString("tag", mcp.Description("Optional tag without the leading #")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a new document holding one empty node."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Document name, e.g. work/plan")),
		mcp.WithString("title", mcp.Description("Display title")),
	), s.createDocument)

	s.mcp.AddTool(mcp.NewTool("read_outline",
		mcp.WithDescription("Read a document. Format text gives an indented outline; "+
			"json gives the stored tree with node ids needed by outline_command."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Document name")),
		mcp.WithString("format", mcp.Description("text (default), json, opml or yaml"),
			mcp.Enum("text", "json", "opml", "yaml")),
	), s.readOutline)

	s.mcp.AddTool(mcp.NewTool("outline_command",
		mcp.WithDescription("Apply one edit to a document. Read the contract first via "+
			"the get_document_contract tool or the "+contractURI+" resource."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Document name")),
		mcp.WithString("op", mcp.Required(), mcp.Description("Command, e.g. split, indent, move, set_text")),
		mcp.WithString("id", mcp.Description("Node id the command applies to")),
		mcp.WithString("target", mcp.Description("Target node id for move")),
		mcp.WithString("position", mcp.Description("before, after or child (move)")),
		mcp.WithString("direction", mcp.Description("up or down (reorder, extend_selection)")),
		mcp.WithNumber("offset", mcp.Description("Caret offset in characters (split)")),
		mcp.WithString("text", mcp.Description("New text (set_text, set_note, set_title)")),
		mcp.WithArray("ids", mcp.Description("Node ids for selection commands"), mcp.WithStringItems()),
		mcp.WithNumber("from", mcp.Description("Pin index to move (move_pin)")),
		mcp.WithNumber("to", mcp.Description("Destination pin index (move_pin)")),
		mcp.WithString("date", mcp.Description("YYYY-MM-DD for open_day")),
	), s.outlineCommand)

	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the last change to a document."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Document name")),
	), s.undo)

	s.mcp.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Redo the change undone last."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Document name")),
	), s.redo)

	s.mcp.AddTool(mcp.NewTool("search_nodes",
		mcp.WithDescription("Full-text search through node text and notes across all documents."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNodes)

	s.mcp.AddTool(mcp.NewTool("nodes_by_tag",
		mcp.WithDescription("List every node carrying a tag."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag without the leading #")),
	), s.nodesByTag)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all documents that link to the specified document."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Name of the document to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the document format and command contract. "+
			"Call this before editing documents."),
	), s.getContract)

	s.mcp.AddTool(mcp.NewTool("import_document",
		mcp.WithDescription("Import a JSON, YAML or OPML outline from an http(s) URL or a base64 data URI "+
			"as a new document."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:...;base64,... URI")),
		mcp.WithString("name", mcp.Description("Document name; derived from the URL when empty")),
	), s.importDocument)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Document Contract",
			mcp.WithResourceDescription("Stored outline format and command set."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func (s *Server) listDocuments(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.svc.List(req.GetString("tag", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.Name
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) createDocument(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	row, err := s.svc.Create(name, req.GetString("title", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("created: " + row.Name), nil
}

func (s *Server) readOutline(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.svc.Export(name, export.Format(req.GetString("format", string(export.Text))))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) outlineCommand(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	op, err := req.RequireString("op")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cmd := session.Command{
		Op:        op,
		ID:        req.GetString("id", ""),
		Target:    req.GetString("target", ""),
		Position:  models.Position(req.GetString("position", "")),
		Direction: models.Direction(req.GetString("direction", "")),
		Offset:    req.GetInt("offset", 0),
		Text:      req.GetString("text", ""),
		IDs:       req.GetStringSlice("ids", nil),
		From:      req.GetInt("from", 0),
		To:        req.GetInt("to", 0),
		Date:      req.GetString("date", ""),
	}
	res, err := s.svc.Command(name, cmd)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) undo(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Undo(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) redo(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Redo(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) searchNodes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) nodesByTag(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.ByTag(strings.TrimPrefix(tag, "#"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(hits), nil
}

func (s *Server) getBacklinks(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.svc.View(name, session.ViewFilter{})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(v.Backlinks) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(v.Backlinks, "\n")), nil
}

func (s *Server) getContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(OutlineContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     OutlineContract,
		},
	}, nil
}
