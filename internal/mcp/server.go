package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-pdf-editor/internal/config"
	"github.com/a3tai/mcp-pdf-editor/internal/descriptions"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/oplog"
)

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	mcpServer  *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
		server.WithRecovery(),
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		mcpServer:  mcpServer,
	}

	s.registerTools()

	return s, nil
}

func withPath() mcp.ToolOption {
	return mcp.WithString("path",
		mcp.Required(),
		mcp.Description("PDF file path, absolute or relative to the configured directory"),
	)
}

func withSessionID() mcp.ToolOption {
	return mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Session handle returned by pdf_session_open"),
	)
}

func withOutput() mcp.ToolOption {
	return mcp.WithString("output",
		mcp.Required(),
		mcp.Description("PDF file to write, absolute or relative to the configured directory"),
	)
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("pdf_page_count",
		mcp.WithDescription(descriptions.PDFPageCountDescription),
		withPath(),
	), s.handlePDFPageCount)

	s.mcpServer.AddTool(mcp.NewTool("pdf_merge",
		mcp.WithDescription(descriptions.PDFMergeDescription),
		mcp.WithArray("paths",
			mcp.Required(),
			mcp.Description("Input PDF files, in output order"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		withOutput(),
		mcp.WithBoolean("dedup",
			mcp.Description("Store identical standard font dictionaries once"),
		),
	), s.handlePDFMerge)

	s.mcpServer.AddTool(mcp.NewTool("pdf_split",
		mcp.WithDescription(descriptions.PDFSplitDescription),
		withPath(),
		mcp.WithString("pages",
			mcp.Required(),
			mcp.Description("1-based page selection such as \"1-3,7\" or \"3,1,1\""),
		),
		withOutput(),
		mcp.WithBoolean("share_duplicates",
			mcp.Description("Pages selected more than once share one copy of their content"),
		),
	), s.handlePDFSplit)

	s.mcpServer.AddTool(mcp.NewTool("pdf_session_open",
		mcp.WithDescription(descriptions.PDFSessionOpenDescription),
		withPath(),
	), s.handleSessionOpen)

	s.mcpServer.AddTool(mcp.NewTool("pdf_session_edit",
		mcp.WithDescription(descriptions.PDFSessionEditDescription),
		withSessionID(),
		mcp.WithString("kind",
			mcp.Description("Label for the action, shown in history"),
		),
		mcp.WithString("operations",
			mcp.Description("JSON array of operation records to add"),
		),
		mcp.WithString("mutations",
			mcp.Description("JSON array of changes to existing operations: {\"id\": 1, \"checked\"|\"rect\"|\"text\": ...}"),
		),
	), s.handleSessionEdit)

	s.mcpServer.AddTool(mcp.NewTool("pdf_session_undo",
		mcp.WithDescription(descriptions.PDFSessionUndoDescription),
		withSessionID(),
	), s.handleSessionUndo)

	s.mcpServer.AddTool(mcp.NewTool("pdf_session_redo",
		mcp.WithDescription(descriptions.PDFSessionRedoDescription),
		withSessionID(),
	), s.handleSessionRedo)

	s.mcpServer.AddTool(mcp.NewTool("pdf_session_list_operations",
		mcp.WithDescription(descriptions.PDFSessionListOperationsDescription),
		withSessionID(),
	), s.handleSessionListOperations)

	s.mcpServer.AddTool(mcp.NewTool("pdf_session_export",
		mcp.WithDescription(descriptions.PDFSessionExportDescription),
		withSessionID(),
		withOutput(),
		mcp.WithString("mode",
			mcp.Description("overlay keeps operations as annotations; flatten draws them into the pages"),
			mcp.Enum("overlay", "flatten"),
			mcp.DefaultString("overlay"),
		),
		mcp.WithBoolean("rebase",
			mcp.Description("Continue the session on the flattened document (flatten mode only)"),
		),
	), s.handleSessionExport)

	s.mcpServer.AddTool(mcp.NewTool("pdf_session_close",
		mcp.WithDescription(descriptions.PDFSessionCloseDescription),
		withSessionID(),
	), s.handleSessionClose)

	s.mcpServer.AddTool(mcp.NewTool("pdf_verify",
		mcp.WithDescription(descriptions.PDFVerifyDescription),
		withPath(),
		mcp.WithString("text",
			mcp.Description("Text that must appear on some page"),
		),
	), s.handlePDFVerify)

	s.mcpServer.AddTool(mcp.NewTool("pdf_server_info",
		mcp.WithDescription(descriptions.PDFServerInfoDescription),
	), s.handlePDFServerInfo)
}

// Handler functions
func (s *Server) handlePDFPageCount(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.PDFPageCount(pdf.PDFPageCountRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s: %d pages (%d bytes)", result.Path, result.Pages, result.Size)), nil
}

func (s *Server) handlePDFMerge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths, err := request.RequireStringSlice("paths")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	output, err := request.RequireString("output")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.PDFMerge(pdf.PDFMergeRequest{
		Paths:  paths,
		Output: output,
		Dedup:  request.GetBool("dedup", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Merged %d documents into %s\n", result.Inputs, result.Output)
	text += fmt.Sprintf("Pages: %d\n", result.Pages)
	text += fmt.Sprintf("Size: %d bytes\n", result.Size)
	text += fmt.Sprintf("Verified: %t\n", result.Verified)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handlePDFSplit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pages, err := request.RequireString("pages")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	output, err := request.RequireString("output")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.PDFSplit(pdf.PDFSplitRequest{
		Path:            path,
		Pages:           pages,
		Output:          output,
		ShareDuplicates: request.GetBool("share_duplicates", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Wrote %d pages to %s\n", len(result.Pages), result.Output)
	text += fmt.Sprintf("Source pages: %s\n", joinInts(result.Pages))
	text += fmt.Sprintf("Size: %d bytes\n", result.Size)
	text += fmt.Sprintf("Verified: %t\n", result.Verified)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleSessionOpen(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	info, err := s.pdfService.OpenSession(pdf.PDFSessionOpenRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatSessionInfo(info)), nil
}

func (s *Server) handleSessionEdit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	edit := oplog.Edit{Kind: request.GetString("kind", "")}
	args := request.GetArguments()
	if raw, ok, err := jsonArgument(args, "operations"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	} else if ok {
		if edit.Operations, err = oplog.DecodeRecords(raw); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("operations: %v", err)), nil
		}
	}
	if raw, ok, err := jsonArgument(args, "mutations"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	} else if ok {
		if edit.Mutations, err = decodeMutations(raw); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("mutations: %v", err)), nil
		}
	}

	result, err := s.pdfService.ApplyEdit(pdf.PDFSessionEditRequest{SessionID: id, Edit: edit})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Session %s: action committed\n", result.SessionID)
	if len(result.Added) > 0 {
		text += fmt.Sprintf("Added operations: %s\n", joinIDs(result.Added))
	}
	text += fmt.Sprintf("Undo depth: %d, redo depth: %d\n", result.UndoDepth, result.RedoDepth)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleSessionUndo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleHistory(request, "Undid", s.pdfService.Undo)
}

func (s *Server) handleSessionRedo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleHistory(request, "Redid", s.pdfService.Redo)
}

func (s *Server) handleHistory(request mcp.CallToolRequest, verb string,
	step func(string) (*pdf.PDFSessionHistoryResult, error),
) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := step(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("%s action touching operations %s\n", verb, joinIDs(result.Affected))
	text += fmt.Sprintf("Undo depth: %d, redo depth: %d\n", result.UndoDepth, result.RedoDepth)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleSessionListOperations(ctx context.Context, request mcp.CallToolRequest) (
	*mcp.CallToolResult, error,
) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.ListOperations(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleSessionExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	output, err := request.RequireString("output")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.ExportSession(pdf.PDFSessionExportRequest{
		SessionID: id,
		Output:    output,
		Mode:      request.GetString("mode", "overlay"),
		Rebase:    request.GetBool("rebase", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Exported %d operations to %s (%s)\n", result.Operations, result.Output, result.Mode)
	text += fmt.Sprintf("Size: %d bytes\n", result.Size)
	text += fmt.Sprintf("Verified: %t\n", result.Verified)
	if result.SessionID != id {
		text += fmt.Sprintf("Session continues as %s\n", result.SessionID)
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleSessionClose(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.pdfService.CloseSession(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s closed", id)), nil
}

func (s *Server) handlePDFVerify(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.PDFVerify(pdf.PDFVerifyRequest{
		Path: path,
		Text: request.GetString("text", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var text string
	if result.Valid {
		text = fmt.Sprintf("PDF file %s is valid (%d pages, %d bytes)\n", result.Path, result.Pages, result.Size)
	} else {
		text = fmt.Sprintf("PDF validation failed for %s: %s\n", result.Path, result.Message)
	}
	if result.ContainsText != nil {
		text += fmt.Sprintf("Contains %q: %t\n", request.GetString("text", ""), *result.ContainsText)
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handlePDFServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := s.pdfService.PDFServerInfo(s.config.ServerName, s.config.Version)
	return mcp.NewToolResultText(s.formatPDFServerInfoResult(result)), nil
}

// jsonArgument returns an argument holding JSON. Clients may send the JSON
// text as a string or the decoded value itself.
func jsonArgument(args map[string]any, key string) ([]byte, bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	if text, isString := v.(string); isString {
		if strings.TrimSpace(text) == "" {
			return nil, false, nil
		}
		return []byte(text), true, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", key, err)
	}
	return data, true, nil
}

func decodeMutations(data []byte) ([]oplog.Mutation, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var mutations []oplog.Mutation
	if err := dec.Decode(&mutations); err != nil {
		return nil, err
	}
	return mutations, nil
}

// Formatting methods
func (s *Server) formatSessionInfo(info *pdf.SessionInfo) string {
	text := fmt.Sprintf("Session: %s\n", info.SessionID)
	text += fmt.Sprintf("Document: %s\n", info.Path)
	text += fmt.Sprintf("Pages: %d (operation pages are 0-based)\n", info.Pages)
	text += fmt.Sprintf("Units: %g per point\n", info.Units)
	return text
}

func (s *Server) formatPDFServerInfoResult(result *pdf.PDFServerInfoResult) string {
	text := fmt.Sprintf("%s v%s - Server Information\n", result.ServerName, result.Version)
	text += fmt.Sprintf("Default Directory: %s\n", result.DefaultDirectory)
	text += fmt.Sprintf("Max File Size: %d MB\n", result.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("Document Cache: %d entries, %.1f%% hit rate\n\n", result.Cache.Entries, result.Cache.HitRate)

	if len(result.Sessions) > 0 {
		text += fmt.Sprintf("Open Sessions (%d):\n", len(result.Sessions))
		for _, sess := range result.Sessions {
			text += fmt.Sprintf("   %s: %s, %d operations (undo %d, redo %d)\n",
				sess.SessionID, sess.Path, sess.Operations, sess.UndoDepth, sess.RedoDepth)
		}
		text += "\n"
	} else {
		text += "Open Sessions: none\n\n"
	}

	text += "Available Tools:\n"
	for _, tool := range result.AvailableTools {
		text += fmt.Sprintf("\n• %s\n", tool.Name)
		text += fmt.Sprintf("  Usage: %s\n", tool.Usage)
		text += fmt.Sprintf("  Parameters: %s\n", tool.Parameters)
	}

	text += "\n" + result.UsageGuidance

	return text
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}

func joinIDs(ids []oplog.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting PDF editor MCP server in stdio mode")
		log.Printf("PDF directory: %s", s.config.PDFDirectory)
	}

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
