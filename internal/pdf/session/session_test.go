package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-editor/internal/pdf/custom"
	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/export"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/oplog"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/pdftest"
)

func newSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	g, err := custom.Parse(pdftest.TextPDF("Hello", "World"))
	require.NoError(t, err)
	s, err := New(g, opts...)
	require.NoError(t, err)
	return s
}

func pageContent(t *testing.T, data []byte, index int) string {
	t.Helper()
	g, err := custom.Parse(data)
	require.NoError(t, err)
	page, err := g.Page(index)
	require.NoError(t, err)
	content, err := g.PageContent(page)
	require.NoError(t, err)
	return string(content)
}

var field = oplog.Rect{X: 72, Y: 72, W: 200, H: 20}

func TestNew(t *testing.T) {
	a := newSession(t)
	b := newSession(t, WithUnits(2), WithFont("Courier"))

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, a.PageCount())
	assert.Equal(t, 1.0, a.Units())
	assert.Equal(t, 2.0, b.Units())
	assert.False(t, a.Created.IsZero())

	_, err := New(nil)
	assert.True(t, pdferrors.IsStructural(err))
}

func TestSession_AddChecksPage(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.Begin("add"))

	_, err := s.Add(2, field, oplog.Checkbox{Checked: true})
	require.Error(t, err)
	assert.True(t, pdferrors.IsReference(err))
	var pdfErr *pdferrors.PDFError
	require.True(t, errors.As(err, &pdfErr))
	assert.Equal(t, 3, pdfErr.PageNumber)

	_, err = s.Add(1, field, oplog.Checkbox{Checked: true})
	require.NoError(t, err)
	assert.True(t, s.Commit())
	assert.Len(t, s.Operations(), 1)
}

func TestSession_ApplyChecksPagesFirst(t *testing.T) {
	s := newSession(t)

	_, err := s.Apply(oplog.Edit{Operations: []oplog.Operation{
		{Page: 0, Rect: field, Payload: oplog.Whiteout{Color: oplog.White}},
		{Page: 5, Rect: field, Payload: oplog.Whiteout{Color: oplog.White}},
	}})
	require.Error(t, err)
	assert.True(t, pdferrors.IsReference(err))
	assert.False(t, s.Log().Pending())
	assert.Empty(t, s.Operations())
}

func TestSession_EditUndoExport(t *testing.T) {
	s := newSession(t)

	ids, err := s.Apply(oplog.Edit{Kind: "fill", Operations: []oplog.Operation{
		{Page: 0, Rect: field, Payload: oplog.Whiteout{Color: oplog.White}},
		{Page: 0, Rect: field, Payload: oplog.TextBox{Text: "Replaced"}},
	}})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	data, err := s.Export(export.ModeFlatten)
	require.NoError(t, err)
	assert.Contains(t, pageContent(t, data, 0), "(Replaced) Tj")

	affected, err := s.Undo()
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, affected)

	data, err = s.Export(export.ModeFlatten)
	require.NoError(t, err)
	assert.NotContains(t, pageContent(t, data, 0), "(Replaced) Tj")

	_, err = s.Undo()
	assert.True(t, pdferrors.IsState(err))

	_, err = s.Redo()
	require.NoError(t, err)
	assert.Len(t, s.Operations(), 2)
}

func annotationCount(t *testing.T, g *custom.Graph, index int) int {
	t.Helper()
	page, err := g.Page(index)
	require.NoError(t, err)
	annots, err := g.Resolve(page.Dict.Get("Annots"))
	require.NoError(t, err)
	if arr, ok := annots.(*custom.Array); ok {
		return arr.Len()
	}
	return 0
}

func TestSession_ReopenedOverlayKeepsEarlierEdits(t *testing.T) {
	first := newSession(t)
	_, err := first.Apply(oplog.Edit{Operations: []oplog.Operation{
		{Page: 0, Rect: field, Payload: oplog.TextBox{Text: "first"}},
	}})
	require.NoError(t, err)
	data, err := first.Export(export.ModeOverlay)
	require.NoError(t, err)

	g, err := custom.Parse(data)
	require.NoError(t, err)
	require.Equal(t, 1, annotationCount(t, g, 0))

	second, err := New(g)
	require.NoError(t, err)
	_, err = second.Apply(oplog.Edit{Operations: []oplog.Operation{
		{Page: 1, Rect: field, Payload: oplog.Whiteout{Color: oplog.White}},
	}})
	require.NoError(t, err)
	data, err = second.Export(export.ModeOverlay)
	require.NoError(t, err)

	out, err := custom.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 1, annotationCount(t, out, 0), "earlier session's annotation survives")
	assert.Equal(t, 1, annotationCount(t, out, 1))

	data, err = second.Export(export.ModeOverlay)
	require.NoError(t, err)
	out, err = custom.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 1, annotationCount(t, out, 1), "re-export does not duplicate")
}

func TestSession_PendingNotExported(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.Begin("draft"))
	_, err := s.Add(0, field, oplog.TextBox{Text: "draft"})
	require.NoError(t, err)

	data, err := s.Export(export.ModeFlatten)
	require.NoError(t, err)
	assert.NotContains(t, pageContent(t, data, 0), "(draft) Tj")
	assert.True(t, s.Abort())
}

func TestSession_Flatten(t *testing.T) {
	s := newSession(t, WithUnits(2))
	_, err := s.Apply(oplog.Edit{Operations: []oplog.Operation{
		{Page: 1, Rect: oplog.Rect{X: 200, Y: 200, W: 40, H: 40}, Payload: oplog.Checkbox{Checked: true}},
	}})
	require.NoError(t, err)

	flat, err := s.Flatten()
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, flat.ID)
	assert.Empty(t, flat.Operations())
	assert.Equal(t, 2, flat.PageCount())
	assert.Equal(t, 2.0, flat.Units())
	assert.Len(t, s.Operations(), 1, "old session keeps its log")

	data, err := flat.Export(export.ModeOverlay)
	require.NoError(t, err)
	assert.Contains(t, pageContent(t, data, 1), "(4) Tj")
	assert.NotContains(t, pageContent(t, data, 0), "(4) Tj")
}

func TestSession_MutatorsDelegate(t *testing.T) {
	s := newSession(t)
	ids, err := s.Apply(oplog.Edit{Operations: []oplog.Operation{
		{Page: 0, Rect: field, Payload: oplog.Checkbox{}},
		{Page: 0, Rect: field, Payload: oplog.TextBox{Text: "a"}},
	}})
	require.NoError(t, err)

	require.NoError(t, s.Begin("change"))
	require.NoError(t, s.SetCheckboxState(ids[0], true))
	require.NoError(t, s.UpdateText(ids[1], "b"))
	moved := oplog.Rect{X: 1, Y: 2, W: 3, H: 4}
	require.NoError(t, s.UpdateGeometry(ids[1], moved))
	assert.True(t, s.Commit())

	ops := s.Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, oplog.Checkbox{Checked: true}, ops[0].Payload)
	text, _ := ops[1].Text()
	assert.Equal(t, "b", text)
	assert.Equal(t, moved, ops[1].Rect)

	require.NoError(t, s.Begin("delete"))
	require.NoError(t, s.Remove(ids[0]))
	assert.True(t, s.Commit())
	assert.Len(t, s.Operations(), 1)
	assert.Equal(t, 0, s.Snapshot().RedoDepth)
}
