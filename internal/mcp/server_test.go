package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/mcp-pdf-editor/internal/config"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/pdftest"
)

// newTestServer returns a server confined to a temporary directory holding
// hello.pdf (pages "Hello" and "World") and ten.pdf (ten numbered pages).
func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	tempDir := t.TempDir()

	for name, data := range map[string][]byte{
		"hello.pdf": pdftest.TextPDF("Hello", "World"),
		"ten.pdf":   pdftest.NumberedPDF(10),
	} {
		if err := os.WriteFile(filepath.Join(tempDir, name), data, 0o644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.PDFDirectory = tempDir
	cfg.ServerName = "test-server"
	cfg.MaxFileSize = 1024 * 1024

	pdfService, err := pdf.NewService(cfg.MaxFileSize, cfg.PDFDirectory)
	if err != nil {
		t.Fatalf("Failed to create PDF service: %v", err)
	}
	server, err := NewServer(cfg, pdfService)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return server, tempDir
}

type handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// call runs a handler and returns its text and whether it reported an error
func call(t *testing.T, h handler, args map[string]any) (string, bool) {
	t.Helper()
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	}
	result, err := h(context.Background(), request)
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if result == nil {
		t.Fatal("result should not be nil")
	}
	return extractTextFromResult(result), result.IsError
}

func TestNewServer(t *testing.T) {
	pdfService, err := pdf.NewService(1024*1024, t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create PDF service: %v", err)
	}
	cfg := config.DefaultConfig()

	server, err := NewServer(cfg, pdfService)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if server.config != cfg || server.pdfService != pdfService || server.mcpServer == nil {
		t.Error("server not initialized correctly")
	}

	if _, err := NewServer(cfg, nil); err == nil {
		t.Error("expected error for nil service")
	}
	if _, err := NewServer(nil, pdfService); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestServer_HandlePDFPageCount(t *testing.T) {
	server, _ := newTestServer(t)

	text, isError := call(t, server.handlePDFPageCount, map[string]any{"path": "ten.pdf"})
	if isError || !strings.Contains(text, "10 pages") {
		t.Errorf("unexpected result: %s", text)
	}

	text, isError = call(t, server.handlePDFPageCount, map[string]any{})
	if !isError {
		t.Errorf("expected error for missing path, got: %s", text)
	}

	text, isError = call(t, server.handlePDFPageCount, map[string]any{"path": "/etc/hosts.pdf"})
	if !isError || !strings.Contains(text, "security validation failed") {
		t.Errorf("expected confinement error, got: %s", text)
	}
}

func TestServer_HandleMergeSplitVerify(t *testing.T) {
	server, tempDir := newTestServer(t)

	text, isError := call(t, server.handlePDFMerge, map[string]any{
		"paths":  []any{"hello.pdf", "ten.pdf"},
		"output": "merged.pdf",
		"dedup":  true,
	})
	if isError || !strings.Contains(text, "Pages: 12") || !strings.Contains(text, "Verified: true") {
		t.Fatalf("unexpected merge result: %s", text)
	}

	text, isError = call(t, server.handlePDFSplit, map[string]any{
		"path":   "merged.pdf",
		"pages":  "12,2",
		"output": filepath.Join(tempDir, "split.pdf"),
	})
	if isError || !strings.Contains(text, "Wrote 2 pages") || !strings.Contains(text, "Source pages: 12, 2") {
		t.Fatalf("unexpected split result: %s", text)
	}

	text, isError = call(t, server.handlePDFVerify, map[string]any{"path": "split.pdf", "text": "Page 10"})
	if isError || !strings.Contains(text, "is valid (2 pages") || !strings.Contains(text, `Contains "Page 10": true`) {
		t.Errorf("unexpected verify result: %s", text)
	}

	text, isError = call(t, server.handlePDFSplit, map[string]any{
		"path":   "hello.pdf",
		"pages":  "0",
		"output": "bad.pdf",
	})
	if !isError || !strings.Contains(text, "page numbers start at 1") {
		t.Errorf("expected selection error, got: %s", text)
	}
}

func TestServer_SessionWorkflow(t *testing.T) {
	server, _ := newTestServer(t)

	text, isError := call(t, server.handleSessionOpen, map[string]any{"path": "hello.pdf"})
	if isError {
		t.Fatalf("open failed: %s", text)
	}
	id := strings.TrimSpace(strings.TrimPrefix(strings.SplitN(text, "\n", 2)[0], "Session:"))

	text, isError = call(t, server.handleSessionEdit, map[string]any{
		"session_id": id,
		"kind":       "fill",
		"operations": `[{"kind": "text_box", "page": 1, "rect": {"x": 72, "y": 72, "w": 200, "h": 20},
			"payload": {"text": "Signed"}},
			{"kind": "checkbox", "page": 0, "rect": {"x": 10, "y": 10, "w": 12, "h": 12}, "payload": {"checked": false}}]`,
	})
	if isError || !strings.Contains(text, "Added operations: 1, 2") {
		t.Fatalf("unexpected edit result: %s", text)
	}

	text, isError = call(t, server.handleSessionEdit, map[string]any{
		"session_id": id,
		"mutations":  []any{map[string]any{"id": 2, "checked": true}},
	})
	if isError || !strings.Contains(text, "Undo depth: 2") {
		t.Fatalf("unexpected mutation result: %s", text)
	}

	text, isError = call(t, server.handleSessionListOperations, map[string]any{"session_id": id})
	if isError || !strings.Contains(text, `"kind": "text_box"`) || !strings.Contains(text, `"checked": true`) {
		t.Errorf("unexpected operations listing: %s", text)
	}

	text, isError = call(t, server.handleSessionUndo, map[string]any{"session_id": id})
	if isError || !strings.Contains(text, "operations 2") {
		t.Errorf("unexpected undo result: %s", text)
	}
	text, isError = call(t, server.handleSessionRedo, map[string]any{"session_id": id})
	if isError || !strings.Contains(text, "redo depth: 0") {
		t.Errorf("unexpected redo result: %s", text)
	}

	text, isError = call(t, server.handleSessionExport, map[string]any{
		"session_id": id,
		"output":     "signed.pdf",
		"mode":       "flatten",
	})
	if isError || !strings.Contains(text, "Exported 2 operations") {
		t.Fatalf("unexpected export result: %s", text)
	}

	text, isError = call(t, server.handlePDFVerify, map[string]any{"path": "signed.pdf", "text": "Signed"})
	if isError || !strings.Contains(text, "true") {
		t.Errorf("exported text not found: %s", text)
	}

	text, _ = call(t, server.handlePDFServerInfo, map[string]any{})
	if !strings.Contains(text, id) || !strings.Contains(text, "pdf_session_edit") {
		t.Errorf("server info missing session or tools: %s", text)
	}

	if text, isError = call(t, server.handleSessionClose, map[string]any{"session_id": id}); isError {
		t.Fatalf("close failed: %s", text)
	}
	text, isError = call(t, server.handleSessionUndo, map[string]any{"session_id": id})
	if !isError || !strings.Contains(text, "no such session") {
		t.Errorf("expected unknown session error, got: %s", text)
	}
}

func TestServer_SessionEditErrors(t *testing.T) {
	server, _ := newTestServer(t)
	text, _ := call(t, server.handleSessionOpen, map[string]any{"path": "hello.pdf"})
	id := strings.TrimSpace(strings.TrimPrefix(strings.SplitN(text, "\n", 2)[0], "Session:"))

	tests := []struct {
		name    string
		args    map[string]any
		wantErr string
	}{
		{name: "missing session", args: map[string]any{}, wantErr: "session_id"},
		{name: "nothing to do", args: map[string]any{"session_id": id}, wantErr: "no changes"},
		{name: "bad json", args: map[string]any{"session_id": id, "operations": "[{"}, wantErr: "operations"},
		{name: "foreign field", args: map[string]any{
			"session_id": id,
			"operations": `[{"kind": "whiteout", "page": 0, "rect": {"x": 0, "y": 0, "w": 5, "h": 5}, "payload": {"text": "x"}}]`,
		}, wantErr: "whiteout payload"},
		{name: "page out of range", args: map[string]any{
			"session_id": id,
			"operations": `[{"kind": "whiteout", "page": 5, "rect": {"x": 0, "y": 0, "w": 5, "h": 5}}]`,
		}, wantErr: "page"},
		{name: "unknown mutation field", args: map[string]any{
			"session_id": id,
			"mutations":  `[{"id": 1, "colour": [1, 0, 0]}]`,
		}, wantErr: "mutations"},
		{name: "unknown target", args: map[string]any{
			"session_id": id,
			"mutations":  `[{"id": 99, "checked": true}]`,
		}, wantErr: "no such operation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isError := call(t, server.handleSessionEdit, tt.args)
			if !isError || !strings.Contains(text, tt.wantErr) {
				t.Errorf("expected error containing %q, got: %s", tt.wantErr, text)
			}
		})
	}

	text, _ = call(t, server.handleSessionListOperations, map[string]any{"session_id": id})
	if !strings.Contains(text, `"undo_depth": 0`) {
		t.Errorf("failed edits must leave the log unchanged: %s", text)
	}
}

func TestServer_ExportRebase(t *testing.T) {
	server, _ := newTestServer(t)
	text, _ := call(t, server.handleSessionOpen, map[string]any{"path": "hello.pdf"})
	id := strings.TrimSpace(strings.TrimPrefix(strings.SplitN(text, "\n", 2)[0], "Session:"))

	call(t, server.handleSessionEdit, map[string]any{
		"session_id": id,
		"operations": `[{"kind": "highlight", "page": 0, "rect": {"x": 72, "y": 72, "w": 100, "h": 20}}]`,
	})

	text, isError := call(t, server.handleSessionExport, map[string]any{
		"session_id": id, "output": "overlay.pdf", "mode": "overlay", "rebase": true,
	})
	if !isError || !strings.Contains(text, "rebase requires flatten") {
		t.Errorf("expected rebase error, got: %s", text)
	}

	text, isError = call(t, server.handleSessionExport, map[string]any{
		"session_id": id, "output": "flat.pdf", "mode": "flatten", "rebase": true,
	})
	if isError || !strings.Contains(text, "Session continues as") {
		t.Errorf("unexpected rebase result: %s", text)
	}
}

func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}

	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}

	return ""
}
