package export

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"seehuhn.de/go/geom/rect"

	"github.com/a3tai/mcp-pdf-editor/internal/pdf/custom"
	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/oplog"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/pdftest"
)

func parse(t *testing.T, data []byte) *custom.Graph {
	t.Helper()
	g, err := custom.Parse(data)
	require.NoError(t, err)
	return g
}

func firstPage(t *testing.T, g *custom.Graph) (custom.PageInfo, string) {
	t.Helper()
	page, err := g.Page(0)
	require.NoError(t, err)
	content, err := g.PageContent(page)
	require.NoError(t, err)
	return page, string(content)
}

// stringOperands lexes a content stream and returns its string operands
func stringOperands(t *testing.T, content string) []string {
	t.Helper()
	var out []string
	lexer := custom.NewPDFLexer([]byte(content), 0)
	for {
		tok, err := lexer.NextToken()
		require.NoError(t, err)
		if tok.Type == custom.TokenEOF {
			return out
		}
		if tok.Type == custom.TokenString {
			out = append(out, tok.Value)
		}
	}
}

func annotationNames(g *custom.Graph, page custom.PageInfo) []string {
	var names []string
	annots, err := g.Resolve(page.Dict.Get("Annots"))
	if err != nil {
		return nil
	}
	arr, ok := annots.(*custom.Array)
	if !ok {
		return nil
	}
	for _, elem := range arr.Elements {
		if dict, ok := g.ResolveDict(elem); ok {
			names = append(names, dict.GetString("NM"))
		}
	}
	return names
}

func checkbox(id oplog.ID, checked bool) oplog.Operation {
	return oplog.Operation{ID: id, Page: 0, Rect: oplog.Rect{X: 100, Y: 100, W: 20, H: 20}, Payload: oplog.Checkbox{Checked: checked}}
}

func TestTransform(t *testing.T) {
	letter := custom.PageInfo{MediaBox: rect.Rect{URx: 612, URy: 792}}
	want := rect.Rect{LLx: 72, LLy: 700, URx: 272, URy: 720}

	tests := []struct {
		name  string
		page  custom.PageInfo
		r     oplog.Rect
		scale float64
		want  rect.Rect
	}{
		{"points", letter, oplog.Rect{X: 72, Y: 72, W: 200, H: 20}, 1, want},
		{"zero scale means points", letter, oplog.Rect{X: 72, Y: 72, W: 200, H: 20}, 0, want},
		{"double resolution", letter, oplog.Rect{X: 144, Y: 144, W: 400, H: 40}, 2, want},
		{
			"offset media box",
			custom.PageInfo{MediaBox: rect.Rect{LLx: 10, LLy: 20, URx: 622, URy: 812}},
			oplog.Rect{X: 72, Y: 72, W: 200, H: 20}, 1,
			rect.Rect{LLx: 82, LLy: 720, URx: 282, URy: 740},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transform(tt.page, tt.r, tt.scale)
			assert.InDelta(t, tt.want.LLx, got.LLx, 1e-9)
			assert.InDelta(t, tt.want.LLy, got.LLy, 1e-9)
			assert.InDelta(t, tt.want.URx, got.URx, 1e-9)
			assert.InDelta(t, tt.want.URy, got.URy, 1e-9)
		})
	}
}

func TestEffective(t *testing.T) {
	moved := oplog.Rect{X: 300, Y: 400, W: 50, H: 10}
	ops := []oplog.Operation{
		{ID: 1, Rect: oplog.Rect{X: 10, Y: 10, W: 50, H: 10}, Payload: oplog.TextBox{Text: "a"}},
		{ID: 2, Rect: oplog.Rect{X: 0, Y: 0, W: 5, H: 5}, Payload: oplog.Whiteout{Color: oplog.White}},
		{ID: 3, Payload: oplog.Move{TargetID: 1, To: moved}},
		{ID: 4, Payload: oplog.Resize{TargetID: 9, To: moved}},
	}

	got := Effective(ops)
	require.Len(t, got, 2)
	assert.Equal(t, oplog.ID(1), got[0].ID)
	assert.Equal(t, moved, got[0].Rect)
	assert.Equal(t, oplog.ID(2), got[1].ID)
	assert.Equal(t, oplog.Rect{X: 10, Y: 10, W: 50, H: 10}, ops[0].Rect, "input untouched")
}

func TestExport_FlattenCheckbox(t *testing.T) {
	g := parse(t, pdftest.TextPDF("Hello", "World"))

	data, err := Export(g, []oplog.Operation{checkbox(1, true)}, Options{Mode: ModeFlatten})
	require.NoError(t, err)

	out := parse(t, data)
	page, content := firstPage(t, out)
	assert.Contains(t, content, "(4) Tj")
	assert.Contains(t, content, "/EdZapfDingbats")
	assert.Contains(t, content, "(Hello) Tj", "original content kept")
	assert.True(t, strings.HasPrefix(content, "q\n"))
	assert.Empty(t, annotationNames(out, page))

	res, ok := out.ResolveDict(page.Dict.Get("Resources"))
	require.True(t, ok)
	fonts, ok := out.ResolveDict(res.Get("Font"))
	require.True(t, ok)
	assert.True(t, fonts.Has("F1"))
	zapf, ok := out.ResolveDict(fonts.Get("EdZapfDingbats"))
	require.True(t, ok)
	assert.Equal(t, "ZapfDingbats", zapf.GetName("BaseFont"))

	count, err := out.PageCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestExport_UncheckedDrawsNoMark(t *testing.T) {
	g := parse(t, pdftest.TextPDF("Hello"))
	data, err := Export(g, []oplog.Operation{checkbox(1, false)}, Options{Mode: ModeFlatten})
	require.NoError(t, err)

	_, content := firstPage(t, parse(t, data))
	assert.NotContains(t, content, "(4) Tj")
}

func TestExport_FlattenEscapesText(t *testing.T) {
	g := parse(t, pdftest.TextPDF("Hello"))
	text := `a(b)c\d`
	ops := []oplog.Operation{{
		ID: 1, Rect: oplog.Rect{X: 72, Y: 72, W: 200, H: 40},
		Payload: oplog.TextBox{Text: text + "\ncafé", Style: oplog.Style{FontSize: 10}},
	}}

	data, err := Export(g, ops, Options{Mode: ModeFlatten})
	require.NoError(t, err)

	_, content := firstPage(t, parse(t, data))
	assert.Contains(t, content, `(a\(b\)c\\d) Tj`)
	assert.Contains(t, content, "T*")
	assert.Contains(t, content, "/EdHelvetica 10 Tf")
	assert.Contains(t, content, "72 710 Td", "first baseline one font size below the top edge")

	strs := stringOperands(t, content)
	assert.Contains(t, strs, text)
	assert.Contains(t, strs, "caf\xe9", "WinAnsi encoded")

	texts, err := pdftest.PageTexts(data)
	require.NoError(t, err)
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Hello")
	assert.Contains(t, texts[0], text)
}

func TestExport_FlattenHighlightUsesGraphicsState(t *testing.T) {
	g := parse(t, pdftest.TextPDF("Hello"))
	ops := []oplog.Operation{{
		ID: 1, Rect: oplog.Rect{X: 72, Y: 72, W: 100, H: 20},
		Payload: oplog.Highlight{Color: oplog.Yellow, Opacity: 0.35},
	}}

	data, err := Export(g, ops, Options{Mode: ModeFlatten})
	require.NoError(t, err)

	out := parse(t, data)
	page, content := firstPage(t, out)
	assert.Contains(t, content, "/EdGS35 gs")
	assert.Contains(t, content, "72 700 100 20 re")

	res, ok := out.ResolveDict(page.Dict.Get("Resources"))
	require.True(t, ok)
	states, ok := out.ResolveDict(res.Get("ExtGState"))
	require.True(t, ok)
	gs, ok := out.ResolveDict(states.Get("EdGS35"))
	require.True(t, ok)
	assert.InDelta(t, 0.35, gs.GetFloat("ca"), 1e-9)
}

func TestExport_FlattenFoldsMoves(t *testing.T) {
	g := parse(t, pdftest.TextPDF("Hello"))
	ops := []oplog.Operation{
		{ID: 1, Rect: oplog.Rect{X: 10, Y: 10, W: 50, H: 20}, Payload: oplog.Whiteout{Color: oplog.White}},
		{ID: 2, Payload: oplog.Move{TargetID: 1, From: oplog.Rect{X: 10, Y: 10, W: 50, H: 20}, To: oplog.Rect{X: 100, Y: 200, W: 50, H: 20}}},
	}

	data, err := Export(g, ops, Options{Mode: ModeFlatten})
	require.NoError(t, err)

	_, content := firstPage(t, parse(t, data))
	assert.Contains(t, content, "100 572 50 20 re")
	assert.NotContains(t, content, "10 762 50 20 re")
}

func TestExport_Overlay(t *testing.T) {
	g := parse(t, pdftest.TextPDF("Hello", "World"))
	ops := []oplog.Operation{
		checkbox(1, true),
		{ID: 2, Page: 1, Rect: oplog.Rect{X: 72, Y: 72, W: 200, H: 20}, Payload: oplog.TextBox{Text: "note"}},
	}

	data, err := Export(g, ops, Options{})
	require.NoError(t, err)

	out := parse(t, data)
	pages, err := out.Pages()
	require.NoError(t, err)
	require.Len(t, pages, 2)

	content, err := out.PageContent(pages[0])
	require.NoError(t, err)
	assert.NotContains(t, string(content), "(4) Tj", "overlay leaves page content alone")

	assert.Equal(t, []string{"op-1"}, annotationNames(out, pages[0]))
	assert.Equal(t, []string{"op-2"}, annotationNames(out, pages[1]))

	annot, ok := out.ResolveDict(pages[1].Dict.GetArray("Annots").Get(0))
	require.True(t, ok)
	assert.Equal(t, "FreeText", annot.GetName("Subtype"))
	assert.Equal(t, "note", annot.GetString("Contents"))

	ap, ok := out.ResolveDict(annot.Get("AP"))
	require.True(t, ok)
	appearance, err := out.Resolve(ap.Get("N"))
	require.NoError(t, err)
	stream, ok := appearance.(*custom.Stream)
	require.True(t, ok)
	assert.Equal(t, "Form", stream.Dict.GetName("Subtype"))
	decoded, err := custom.DecodeStream(stream)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "(note) Tj")
}

func TestExport_ReexportReplacesAnnotations(t *testing.T) {
	g := parse(t, pdftest.TextPDF("Hello"))
	ops := []oplog.Operation{checkbox(1, true)}

	overlay, err := Export(g, ops, Options{Mode: ModeOverlay})
	require.NoError(t, err)

	again, err := Export(parse(t, overlay), ops, Options{Mode: ModeOverlay})
	require.NoError(t, err)
	out := parse(t, again)
	page, _ := firstPage(t, out)
	assert.Equal(t, []string{"op-1"}, annotationNames(out, page), "not duplicated")

	flat, err := Export(parse(t, overlay), ops, Options{Mode: ModeFlatten})
	require.NoError(t, err)
	out = parse(t, flat)
	page, content := firstPage(t, out)
	assert.Empty(t, annotationNames(out, page))
	assert.False(t, page.Dict.Has("Annots"))
	assert.Contains(t, content, "(4) Tj")
}

func TestExport_TaggedNamesKeepOtherLogsAnnotations(t *testing.T) {
	g := parse(t, pdftest.TextPDF("Hello", "World"))
	first := checkbox(1, true)

	data, err := Export(g, []oplog.Operation{first}, Options{Tag: "a"})
	require.NoError(t, err)

	second := oplog.Operation{ID: 1, Page: 1, Rect: oplog.Rect{X: 72, Y: 72, W: 50, H: 50}, Payload: oplog.Whiteout{Color: oplog.White}}
	data, err = Export(parse(t, data), []oplog.Operation{second}, Options{Tag: "b"})
	require.NoError(t, err)

	out := parse(t, data)
	pages, err := out.Pages()
	require.NoError(t, err)
	assert.Equal(t, []string{"op-a-1"}, annotationNames(out, pages[0]))
	assert.Equal(t, []string{"op-b-1"}, annotationNames(out, pages[1]))

	data, err = Export(out, []oplog.Operation{second}, Options{Tag: "b", Mode: ModeFlatten})
	require.NoError(t, err)
	out = parse(t, data)
	pages, err = out.Pages()
	require.NoError(t, err)
	assert.Equal(t, []string{"op-a-1"}, annotationNames(out, pages[0]))
	assert.Empty(t, annotationNames(out, pages[1]))
}

func TestExport_FlattenTwice(t *testing.T) {
	g := parse(t, pdftest.TextPDF("Hello"))
	text := func(id oplog.ID, s string) oplog.Operation {
		return oplog.Operation{ID: id, Rect: oplog.Rect{X: 72, Y: 72, W: 200, H: 20}, Payload: oplog.TextBox{Text: s}}
	}

	first, err := Export(g, []oplog.Operation{text(1, "one")}, Options{Mode: ModeFlatten})
	require.NoError(t, err)
	second, err := Export(parse(t, first), []oplog.Operation{text(2, "two")}, Options{Mode: ModeFlatten})
	require.NoError(t, err)

	_, content := firstPage(t, parse(t, second))
	assert.Contains(t, content, "(one) Tj")
	assert.Contains(t, content, "(two) Tj")
}

func TestExport_Errors(t *testing.T) {
	g := parse(t, pdftest.TextPDF("Hello", "World"))

	t.Run("page out of range", func(t *testing.T) {
		op := checkbox(1, true)
		op.Page = 2
		_, err := Export(g, []oplog.Operation{op}, Options{Mode: ModeFlatten})
		require.Error(t, err)
		assert.True(t, pdferrors.IsReference(err))
		var pdfErr *pdferrors.PDFError
		require.True(t, errors.As(err, &pdfErr))
		assert.Equal(t, 3, pdfErr.PageNumber)
	})

	t.Run("bad geometry", func(t *testing.T) {
		op := checkbox(1, true)
		op.Rect.W = -1
		_, err := Export(g, []oplog.Operation{op}, Options{})
		require.Error(t, err)
		assert.True(t, pdferrors.IsReference(err))
	})

	t.Run("text outside WinAnsi", func(t *testing.T) {
		op := oplog.Operation{ID: 7, Page: 1, Rect: oplog.Rect{W: 10, H: 10}, Payload: oplog.TextBox{Text: "日本"}}
		_, err := Export(g, []oplog.Operation{op}, Options{Mode: ModeFlatten})
		require.Error(t, err)
		assert.True(t, pdferrors.IsEncoding(err))
		var pdfErr *pdferrors.PDFError
		require.True(t, errors.As(err, &pdfErr))
		assert.Equal(t, 2, pdfErr.PageNumber)
		assert.Contains(t, err.Error(), "operation 7")
	})

	t.Run("options", func(t *testing.T) {
		_, err := Export(g, nil, Options{Scale: -1})
		assert.Error(t, err)
		_, err = Export(g, nil, Options{Font: "Comic Sans"})
		assert.Error(t, err)
	})
}

func TestExport_SourceUnchanged(t *testing.T) {
	g := parse(t, pdftest.TextPDF("Hello"))
	before, err := custom.Serialize(g)
	require.NoError(t, err)

	_, err = Export(g, []oplog.Operation{checkbox(1, true)}, Options{Mode: ModeFlatten})
	require.NoError(t, err)
	_, err = Export(g, []oplog.Operation{checkbox(1, true)}, Options{Mode: ModeOverlay})
	require.NoError(t, err)

	after, err := custom.Serialize(g)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeOverlay, "overlay": ModeOverlay, "flatten": ModeFlatten} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("burn")
	assert.Error(t, err)
	assert.Equal(t, "flatten", ModeFlatten.String())
}
