package pdf

import (
	"time"

	"github.com/a3tai/mcp-pdf-editor/internal/pdf/oplog"
)

// Request Types

// PDFPageCountRequest represents a request to count the pages of a PDF file
type PDFPageCountRequest struct {
	Path string `json:"path"`
}

// PDFMergeRequest represents a request to merge PDF files into one
type PDFMergeRequest struct {
	Paths  []string `json:"paths"`
	Output string   `json:"output"`
	Dedup  bool     `json:"dedup"`
}

// PDFSplitRequest represents a request to extract a page selection into a new file
type PDFSplitRequest struct {
	Path            string `json:"path"`
	Pages           string `json:"pages"` // e.g. "1-3,5,8-10"
	Output          string `json:"output"`
	ShareDuplicates bool   `json:"share_duplicates"`
}

// PDFSessionOpenRequest represents a request to open an editing session
type PDFSessionOpenRequest struct {
	Path string `json:"path"`
}

// PDFSessionEditRequest represents a request to run one action on a session
type PDFSessionEditRequest struct {
	SessionID string     `json:"session_id"`
	Edit      oplog.Edit `json:"edit"`
}

// PDFSessionExportRequest represents a request to write a session's document
type PDFSessionExportRequest struct {
	SessionID string `json:"session_id"`
	Output    string `json:"output"`
	Mode      string `json:"mode"` // "overlay" or "flatten"
	// Rebase continues the session on the flattened document with an empty log
	Rebase bool `json:"rebase"`
}

// PDFVerifyRequest represents a request to validate a PDF file independently
type PDFVerifyRequest struct {
	Path string `json:"path"`
	Text string `json:"text,omitempty"`
}

// Response Types

// PDFPageCountResult represents the result of a page count
type PDFPageCountResult struct {
	Path  string `json:"path"`
	Pages int    `json:"pages"`
	Size  int64  `json:"size"`
}

// PDFMergeResult represents the result of a merge
type PDFMergeResult struct {
	Output   string `json:"output"`
	Inputs   int    `json:"inputs"`
	Pages    int    `json:"pages"`
	Size     int64  `json:"size"`
	Verified bool   `json:"verified"`
}

// PDFSplitResult represents the result of a split
type PDFSplitResult struct {
	Output   string `json:"output"`
	Pages    []int  `json:"pages"`
	Size     int64  `json:"size"`
	Verified bool   `json:"verified"`
}

// SessionInfo describes an open editing session
type SessionInfo struct {
	SessionID  string    `json:"session_id"`
	Path       string    `json:"path"`
	Pages      int       `json:"pages"`
	Units      float64   `json:"units"`
	Created    time.Time `json:"created"`
	Operations int       `json:"operations"`
	UndoDepth  int       `json:"undo_depth"`
	RedoDepth  int       `json:"redo_depth"`
}

// PDFSessionEditResult represents the result of an edit action
type PDFSessionEditResult struct {
	SessionID string     `json:"session_id"`
	Added     []oplog.ID `json:"added"`
	UndoDepth int        `json:"undo_depth"`
	RedoDepth int        `json:"redo_depth"`
}

// PDFSessionHistoryResult represents the result of an undo or redo
type PDFSessionHistoryResult struct {
	SessionID string     `json:"session_id"`
	Affected  []oplog.ID `json:"affected"`
	UndoDepth int        `json:"undo_depth"`
	RedoDepth int        `json:"redo_depth"`
}

// PDFSessionOperationsResult lists a session's committed operations
type PDFSessionOperationsResult struct {
	SessionID string `json:"session_id"`
	oplog.Snapshot
}

// PDFSessionExportResult represents the result of a session export
type PDFSessionExportResult struct {
	SessionID  string `json:"session_id"`
	Output     string `json:"output"`
	Mode       string `json:"mode"`
	Operations int    `json:"operations"`
	Size       int64  `json:"size"`
	Verified   bool   `json:"verified"`
}

// PDFVerifyResult represents the result of an independent validation
type PDFVerifyResult struct {
	Path         string `json:"path"`
	Valid        bool   `json:"valid"`
	Pages        int    `json:"pages"`
	Size         int64  `json:"size"`
	Message      string `json:"message,omitempty"`
	ContainsText *bool  `json:"contains_text,omitempty"`
}

// ToolInfo describes one MCP tool for the server info result
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	Parameters  string `json:"parameters"`
}

// PDFServerInfoResult represents server information and usage guidance
type PDFServerInfoResult struct {
	ServerName       string        `json:"server_name"`
	Version          string        `json:"version"`
	DefaultDirectory string        `json:"default_directory"`
	MaxFileSize      int64         `json:"max_file_size"`
	AvailableTools   []ToolInfo    `json:"available_tools"`
	Sessions         []SessionInfo `json:"sessions"`
	Cache            CacheStats    `json:"cache"`
	UsageGuidance    string        `json:"usage_guidance"`
}
