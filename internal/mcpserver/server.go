// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes labdesk tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/labdesk/internal/apperr"
	"github.com/starford/labdesk/internal/docservice"
	"github.com/starford/labdesk/internal/grading"
	"github.com/starford/labdesk/internal/projector"
)

const contractURI = "labdesk://document-format"

// Server wraps the MCP server with labdesk tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all labdesk tools registered.
func New(svc *docservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"labdesk",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("extract_document",
		mcp.WithDescription("Parse a Python script or Jupyter notebook without storing it. "+
			"Returns the normalized document JSON (cells, outputs, summary). "+
			"Read get_document_contract for the shape."),
		mcp.WithString("file_name", mcp.Required(), mcp.Description("File name ending in .py or .ipynb")),
		mcp.WithString("content", mcp.Required(), mcp.Description("File content (notebook JSON or Python source)")),
	), s.extractDocument)

	s.mcp.AddTool(mcp.NewTool("upload_document",
		mcp.WithDescription("Store and index a submission. Provide either content with file_name, "+
			"or a url (http/https or base64 data URI) to fetch it from."),
		mcp.WithString("file_name", mcp.Description("File name ending in .py or .ipynb; derived from url when omitted")),
		mcp.WithString("content", mcp.Description("Inline file content")),
		mcp.WithString("url", mcp.Description("http/https URL or data URI")),
		mcp.WithString("slot", mcp.Description("Upload slot, e.g. a lab id (random when empty)")),
	), s.uploadDocument)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read a stored document as parsed JSON, raw text or Markdown."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Stored path (e.g. lab_1/hw.ipynb)")),
		mcp.WithString("view", mcp.Description("document (default), raw or markdown"), mcp.Enum("document", "raw", "markdown")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("evaluation_text",
		mcp.WithDescription("Return the compact evaluation text of a stored document: code cells "+
			"with numbered headers and their text outputs, as sent to the grader."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Stored path")),
		mcp.WithNumber("limit", mcp.Description(fmt.Sprintf("Character limit (default %d, 0 for none)", projector.DefaultSubmissionLimit))),
	), s.evaluationText)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List stored documents."),
		mcp.WithString("kind", mcp.Description("Optional filter: script or notebook"), mcp.Enum("script", "notebook")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through stored code, outputs and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("grade_submission",
		mcp.WithDescription("Send a stored document to the grading backend. When the backend fails "+
			"the result has success=false and the failure in detailed_feedback."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Stored path")),
		mcp.WithString("lab_id", mcp.Required(), mcp.Description("Lab identifier")),
		mcp.WithString("title", mcp.Description("Lab title")),
		mcp.WithString("category", mcp.Description("Lab category")),
		mcp.WithString("description", mcp.Description("Lab description")),
		mcp.WithArray("requirements", mcp.Description("Lab requirements"), mcp.WithStringItems()),
	), s.gradeSubmission)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the labdesk document format: the JSON shape of parsed "+
			"documents and the layout of the evaluation text."),
	), s.getDocumentContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Document Format Contract",
			mcp.WithResourceDescription("Shape of parsed documents and evaluation text."),
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func toolError(path string, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) extractDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("file_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Extract(ctx, name, []byte(content))
	if err != nil {
		return toolError(name, err), nil
	}
	return jsonResult(doc)
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	switch view := req.GetString("view", "document"); view {
	case "raw":
		_, raw, err := s.svc.Raw(ctx, path)
		if err != nil {
			return toolError(path, err), nil
		}
		return mcp.NewToolResultText(raw), nil
	case "markdown":
		md, err := s.svc.Markdown(ctx, path)
		if err != nil {
			return toolError(path, err), nil
		}
		return mcp.NewToolResultText(md), nil
	case "document", "":
		d, err := s.svc.Get(ctx, path)
		if err != nil {
			return toolError(path, err), nil
		}
		return jsonResult(d)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown view: %s", view)), nil
	}
}

func (s *Server) evaluationText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", projector.DefaultSubmissionLimit)
	text, err := s.svc.EvaluationText(ctx, path, limit)
	if err != nil {
		return toolError(path, err), nil
	}
	if text == "" {
		return mcp.NewToolResultText("(no code cells)"), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.List(ctx, req.GetInt("limit", 50), req.GetInt("offset", 0), req.GetString("kind", ""), "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if total == 0 {
		return mcp.NewToolResultText("no documents"), nil
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", it.Path, it.Kind, it.Title))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) gradeSubmission(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	labID, err := req.RequireString("lab_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info := grading.LabInfo{
		Title:        req.GetString("title", ""),
		Category:     req.GetString("category", ""),
		Description:  req.GetString("description", ""),
		Requirements: req.GetStringSlice("requirements", []string{}),
	}
	res, err := s.svc.Grade(ctx, path, labID, info)
	if err != nil {
		return toolError(path, err), nil
	}
	return jsonResult(res)
}

func (s *Server) getDocumentContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
