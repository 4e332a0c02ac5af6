// Package session binds one document graph to one operation log.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/a3tai/mcp-pdf-editor/internal/pdf/custom"
	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/export"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/oplog"
)

// Session is an editing session over one document. The base graph is never
// modified; operations live in the log until they are exported.
//
// A Session is not safe for concurrent use.
type Session struct {
	ID      string
	Created time.Time

	graph *custom.Graph
	pages int
	log   *oplog.Log
	units float64
	font  string
}

// Option configures a session
type Option func(*Session)

// WithUnits sets the number of authoring units per PDF point
func WithUnits(scale float64) Option {
	return func(s *Session) {
		s.units = scale
	}
}

// WithFont sets the standard font used for text operations
func WithFont(font string) Option {
	return func(s *Session) {
		s.font = font
	}
}

// New opens a session over g. The graph must stay unmodified for the
// session's lifetime; cached graphs may be passed directly.
func New(g *custom.Graph, opts ...Option) (*Session, error) {
	if g == nil {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidStructure, "session needs a document")
	}
	pages, err := g.PageCount()
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:      uuid.NewString(),
		Created: time.Now(),
		graph:   g,
		pages:   pages,
		log:     oplog.NewLog(),
		units:   1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// PageCount returns the number of pages in the document
func (s *Session) PageCount() int {
	return s.pages
}

// Units returns the authoring units per PDF point
func (s *Session) Units() float64 {
	return s.units
}

// Graph returns the base document. Callers must not modify it.
func (s *Session) Graph() *custom.Graph {
	return s.graph
}

// Log returns the session's operation log
func (s *Session) Log() *oplog.Log {
	return s.log
}

// Begin starts a new action
func (s *Session) Begin(kind string) error {
	return s.log.Begin(kind)
}

// Commit makes the pending action visible. It reports false when there was
// nothing to commit.
func (s *Session) Commit() bool {
	return s.log.Commit()
}

// Abort discards the pending action
func (s *Session) Abort() bool {
	return s.log.Abort()
}

// Undo reverts the most recent committed action
func (s *Session) Undo() ([]oplog.ID, error) {
	return s.log.Undo()
}

// Redo re-applies the most recently undone action
func (s *Session) Redo() ([]oplog.ID, error) {
	return s.log.Redo()
}

// Add records a new operation under the pending action. The page must exist.
func (s *Session) Add(page int, rect oplog.Rect, payload oplog.Payload) (oplog.ID, error) {
	if err := s.checkPage(page); err != nil {
		return 0, err
	}
	return s.log.Add(page, rect, payload)
}

// Remove deletes operations under the pending action
func (s *Session) Remove(ids ...oplog.ID) error {
	return s.log.Remove(ids...)
}

// SetCheckboxState changes a checkbox under the pending action
func (s *Session) SetCheckboxState(id oplog.ID, checked bool) error {
	return s.log.SetCheckboxState(id, checked)
}

// UpdateGeometry changes an operation's rectangle under the pending action
func (s *Session) UpdateGeometry(id oplog.ID, rect oplog.Rect) error {
	return s.log.UpdateGeometry(id, rect)
}

// UpdateText changes the text of a text-bearing operation under the pending action
func (s *Session) UpdateText(id oplog.ID, text string) error {
	return s.log.UpdateText(id, text)
}

// Apply runs a scripted edit as one action. Pages are checked against the
// document before anything is recorded.
func (s *Session) Apply(e oplog.Edit) ([]oplog.ID, error) {
	for _, op := range e.Operations {
		if _, ok := op.Payload.(oplog.Delete); ok {
			continue
		}
		if err := s.checkPage(op.Page); err != nil {
			return nil, err
		}
	}
	return s.log.Apply(e)
}

// Operations returns the committed operations in z-order
func (s *Session) Operations() []oplog.Operation {
	return s.log.Visible()
}

// Snapshot returns the log's observable state
func (s *Session) Snapshot() oplog.Snapshot {
	return s.log.Snapshot()
}

// Export writes the document with the committed operations applied
func (s *Session) Export(mode export.Mode) ([]byte, error) {
	return export.Export(s.graph, s.log.Visible(), s.exportOptions(mode))
}

// Flatten burns the committed operations into the page content and returns
// a new session over the result with an empty log.
func (s *Session) Flatten() (*Session, error) {
	g, err := export.ExportGraph(s.graph, s.log.Visible(), s.exportOptions(export.ModeFlatten))
	if err != nil {
		return nil, err
	}
	return New(g, WithUnits(s.units), WithFont(s.font))
}

func (s *Session) exportOptions(mode export.Mode) export.Options {
	return export.Options{Mode: mode, Scale: s.units, Font: s.font, Tag: s.ID}
}

func (s *Session) checkPage(page int) error {
	if page < 0 || page >= s.pages {
		return pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidPage,
			"page %d outside document of %d pages", page+1, s.pages).WithPage(page + 1)
	}
	return nil
}
