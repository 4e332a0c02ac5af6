package descriptions

// Tool descriptions with practical examples and use cases

const (
	// Document Tools
	PDFPageCountDescription = `Count the pages of a PDF document.

**When to use:** Before splitting or editing, to know which page numbers and page indexes are valid.

**Why it's useful:** Page selections are checked against the real page count; nothing is silently clamped.

**Examples:**
• Plan a split: "How many pages does contract.pdf have before extracting the signature page?"
• Check a merge: "Confirm merged.pdf has as many pages as its inputs combined"

**Best practices:** Page selections for pdf_split are 1-based; pages in session operations are 0-based.`

	PDFMergeDescription = `Concatenate several PDF documents into one new document.

**When to use:** Combining chapters, appending an appendix, or joining scanned batches into one file.

**Why it's useful:** Pages keep their content, fonts and images. Each input's objects are renumbered so nothing collides, and the inputs are never modified.

**Examples:**
• Join documents: "Merge cover.pdf, report.pdf and appendix.pdf into final.pdf"
• Smaller output: "Merge the monthly statements with dedup so repeated standard fonts are stored once"

**Common workflows:**
1. Assembly: pdf_merge → pdf_verify → deliver
2. Rework: pdf_split the parts you need → pdf_merge them in a new order

**Best practices:** The output is validated by independent readers before it is written; an existing file at the output path is replaced atomically.`

	PDFSplitDescription = `Extract, reorder or repeat pages of a PDF into a new document.

**When to use:** Pulling out a section, dropping pages, changing page order, or duplicating a page.

**Why it's useful:** Only the objects the selected pages need are copied, so the result is a small standalone document.

**Examples:**
• Extract a chapter: "Split pages 12-30 of book.pdf into chapter2.pdf"
• Reorder: "Create a copy of slides.pdf with pages 3,1,2"
• Repeat: "Print page 1 twice with pages \"1,1\""

**Best practices:** Selections are 1-based, comma separated, with inclusive ranges. Every page must exist in the document.`

	// Session Tools
	PDFSessionOpenDescription = `Start an editing session over a PDF document.

**When to use:** Before adding text, checkmarks, highlights or whiteouts to a document.

**Why it's useful:** Edits are recorded as operations with full undo and redo; the source file is never touched until you export.

**Common workflows:**
1. Form filling: pdf_session_open → pdf_session_edit (text boxes, checkboxes) → pdf_session_export flatten
2. Review: pdf_session_open → pdf_session_edit (highlights, underlines) → pdf_session_export overlay

**Best practices:** Keep the returned session_id; close the session when you are done.`

	PDFSessionEditDescription = `Apply one undoable action to an editing session.

**When to use:** Adding operations, or moving, resizing, restyling, retexting or deleting existing ones.

**Why it's useful:** Everything in one call becomes a single history step, so one undo reverts it all.

**Operation records:** JSON objects such as
{"kind": "text_box", "page": 0, "rect": {"x": 72, "y": 72, "w": 200, "h": 20}, "payload": {"text": "Jane Doe", "font_size": 12}}
Kinds: text_box, whiteout, checkbox, highlight, underline, replace_text, move, resize, delete.

**Coordinates:** The origin is the top-left corner of the page and y grows downwards, in points divided by the session units. A rect is x, y, w (width) and h (height); "width" and "height" are accepted in place of "w" and "h".

**Mutations:** JSON array of changes to existing operations, each with "id" and one of "checked", "rect" or "text".

**Best practices:** Use pdf_session_list_operations to find operation ids; ids are never reused.`

	PDFSessionUndoDescription = `Revert the most recent action of an editing session.

**When to use:** An edit placed something in the wrong spot or with the wrong text.

**Best practices:** Undo reports the ids of the operations it touched. Starting a new action clears the redo history.`

	PDFSessionRedoDescription = `Re-apply the most recently undone action of an editing session.

**When to use:** After an undo you want to take back.

**Best practices:** Redo is only available until the next new action.`

	PDFSessionListOperationsDescription = `List the committed operations of an editing session.

**When to use:** Finding operation ids for mutations, or checking what an export will contain.

**Why it's useful:** Operations are listed bottom to top in drawing order together with the undo and redo depths.`

	PDFSessionExportDescription = `Write the edited document of a session.

**When to use:** When the edits are done, or to take a checkpoint.

**Modes:**
• overlay: each operation becomes an annotation with its own appearance; viewers can still select or remove them
• flatten: operations are drawn into the page content and cannot be separated from it

**Examples:**
• Deliver a filled form: "Export the session to filled.pdf with mode flatten"
• Keep reviewing: "Export with mode flatten and rebase so later edits start from the flattened pages"

**Best practices:** Export never modifies the session's history unless rebase is set; the output is validated before it is written.`

	PDFSessionCloseDescription = `Discard an editing session and its history.

**When to use:** After the final export, or to abandon edits.`

	PDFVerifyDescription = `Check a PDF with readers independent of the editor.

**When to use:** After producing a document, or before editing a document of unknown origin.

**Why it's useful:** The structure is validated by pdfcpu and the text of every page is extracted separately; both must agree on the page count.

**Examples:**
• Check output: "Verify merged.pdf is valid"
• Check content: "Verify filled.pdf contains the text Jane Doe"`

	PDFServerInfoDescription = `Get server capabilities, limits and the open editing sessions.

**When to use:** At the start of a conversation to see the configured directory and what tools exist.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"pdf_page_count":              PDFPageCountDescription,
	"pdf_merge":                   PDFMergeDescription,
	"pdf_split":                   PDFSplitDescription,
	"pdf_session_open":            PDFSessionOpenDescription,
	"pdf_session_edit":            PDFSessionEditDescription,
	"pdf_session_undo":            PDFSessionUndoDescription,
	"pdf_session_redo":            PDFSessionRedoDescription,
	"pdf_session_list_operations": PDFSessionListOperationsDescription,
	"pdf_session_export":          PDFSessionExportDescription,
	"pdf_session_close":           PDFSessionCloseDescription,
	"pdf_verify":                  PDFVerifyDescription,
	"pdf_server_info":             PDFServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns a list of all available tool names
func GetAllToolNames() []string {
	var names []string
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	return names
}
