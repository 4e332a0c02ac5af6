package pdf

import (
	"fmt"

	"github.com/a3tai/mcp-pdf-editor/internal/descriptions"
)

// PDFServerInfo describes the server, its tools and the open sessions
func (s *Service) PDFServerInfo(serverName, version string) *PDFServerInfoResult {
	return &PDFServerInfoResult{
		ServerName:       serverName,
		Version:          version,
		DefaultDirectory: s.pathValidator.GetConfiguredDirectory(),
		MaxFileSize:      s.maxFileSize,
		AvailableTools:   availableTools(),
		Sessions:         s.Sessions(),
		Cache:            s.CacheStats(),
		UsageGuidance:    s.usageGuidance(),
	}
}

func availableTools() []ToolInfo {
	pathParam := "path (required): PDF file path (absolute, or relative to the configured directory)"
	sessionParam := "session_id (required): handle returned by pdf_session_open"

	return []ToolInfo{
		{
			Name:        "pdf_page_count",
			Description: descriptions.GetToolDescription("pdf_page_count"),
			Usage:       "Use this tool to check how many pages a document has before choosing a page selection.",
			Parameters:  pathParam,
		},
		{
			Name:        "pdf_merge",
			Description: descriptions.GetToolDescription("pdf_merge"),
			Usage:       "Use this tool to concatenate whole documents in the order given.",
			Parameters: "paths (required): input files in order, output (required): file to write, " +
				"dedup (optional): fold identical standard font dictionaries",
		},
		{
			Name:        "pdf_split",
			Description: descriptions.GetToolDescription("pdf_split"),
			Usage:       "Use this tool to extract, reorder or repeat pages into a new document.",
			Parameters: pathParam + ", pages (required): 1-based selection such as \"1-3,7\", " +
				"output (required): file to write, share_duplicates (optional): repeated pages share one page object",
		},
		{
			Name:        "pdf_session_open",
			Description: descriptions.GetToolDescription("pdf_session_open"),
			Usage:       "Use this tool to start editing a document. The returned session_id is used by every other session tool.",
			Parameters:  pathParam,
		},
		{
			Name:        "pdf_session_edit",
			Description: descriptions.GetToolDescription("pdf_session_edit"),
			Usage:       "Use this tool to add operations or change existing ones as one undoable action.",
			Parameters: sessionParam + ", kind (optional): label for the action, " +
				"operations (optional): JSON array of operation records, mutations (optional): JSON array of changes to existing operations",
		},
		{
			Name:        "pdf_session_undo",
			Description: descriptions.GetToolDescription("pdf_session_undo"),
			Usage:       "Use this tool to revert the most recent action.",
			Parameters:  sessionParam,
		},
		{
			Name:        "pdf_session_redo",
			Description: descriptions.GetToolDescription("pdf_session_redo"),
			Usage:       "Use this tool to re-apply the most recently undone action.",
			Parameters:  sessionParam,
		},
		{
			Name:        "pdf_session_list_operations",
			Description: descriptions.GetToolDescription("pdf_session_list_operations"),
			Usage:       "Use this tool to see the committed operations and the undo and redo depths.",
			Parameters:  sessionParam,
		},
		{
			Name:        "pdf_session_export",
			Description: descriptions.GetToolDescription("pdf_session_export"),
			Usage:       "Use this tool to write the edited document.",
			Parameters: sessionParam + ", output (required): file to write, mode (optional): overlay or flatten, " +
				"rebase (optional): continue the session on the flattened document",
		},
		{
			Name:        "pdf_session_close",
			Description: descriptions.GetToolDescription("pdf_session_close"),
			Usage:       "Use this tool to discard a session and its history.",
			Parameters:  sessionParam,
		},
		{
			Name:        "pdf_verify",
			Description: descriptions.GetToolDescription("pdf_verify"),
			Usage:       "Use this tool to check a document with independent readers and optionally look for text.",
			Parameters:  pathParam + ", text (optional): text that must appear on some page",
		},
		{
			Name:        "pdf_server_info",
			Description: descriptions.GetToolDescription("pdf_server_info"),
			Usage:       "Use this tool to get server capabilities and the open sessions.",
			Parameters:  "No parameters required",
		},
	}
}

func (s *Service) usageGuidance() string {
	maxFileSizeMB := s.maxFileSize / (1024 * 1024)

	return fmt.Sprintf(`PDF Editor MCP Server Usage Guide:

1. INSPECT:
   - Use 'pdf_page_count' to see how many pages a document has
   - Use 'pdf_verify' to confirm a document is readable

2. RESTRUCTURE:
   - Use 'pdf_merge' to concatenate documents
   - Use 'pdf_split' with a selection like "2-5" or "3,1,1" to extract or reorder pages

3. EDIT:
   - Use 'pdf_session_open' and keep the returned session_id
   - Use 'pdf_session_edit' to add text boxes, whiteouts, checkboxes, highlights, underlines and text replacements
   - Use 'pdf_session_undo' and 'pdf_session_redo' to step through history
   - Use 'pdf_session_export' with mode "overlay" (annotations) or "flatten" (page content)
   - Use 'pdf_session_close' when done

IMPORTANT NOTES:
- Pages in operations are 0-based; page selections for pdf_split are 1-based
- Rectangles use a top-left origin with y growing downwards, in points divided by the session units
- Only text encodable in WinAnsi can be drawn
- Output paths must end in .pdf and lie in the configured directory
- The server can handle files up to %dMB`, maxFileSizeMB)
}
