package export

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"seehuhn.de/go/geom/rect"

	"github.com/a3tai/mcp-pdf-editor/internal/pdf/custom"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/oplog"
)

const (
	defaultFontSize = 12.0
	lineSpacing     = 1.2

	// ZapfDingbats glyph a20 (code '4') is a check mark of this width and height per unit size
	checkGlyph       = "4"
	checkGlyphWidth  = 0.846
	checkGlyphHeight = 0.692
)

// Resource names used by generated content
const (
	resourcePrefix = "Ed"
	checkFont      = "ZapfDingbats"
	gsPrefix       = resourcePrefix + "GS"
)

// fontResource is the resource name generated content uses for a standard font
func fontResource(baseFont string) string {
	return resourcePrefix + strings.ReplaceAll(baseFont, "-", "")
}

// encodeLines converts text to WinAnsi and splits it into lines
func encodeLines(text string) ([]string, error) {
	encoded, err := charmap.Windows1252.NewEncoder().String(text)
	if err != nil {
		return nil, err
	}
	encoded = strings.ReplaceAll(encoded, "\r\n", "\n")
	return strings.Split(encoded, "\n"), nil
}

// contentBuilder writes content stream operators
type contentBuilder struct {
	buf      bytes.Buffer
	textFont string
	// fonts and opacities collect the resources the content refers to
	fonts     map[string]bool
	opacities map[string]float64
}

func newContentBuilder(textFont string) *contentBuilder {
	return &contentBuilder{
		textFont:  textFont,
		fonts:     make(map[string]bool),
		opacities: make(map[string]float64),
	}
}

func (b *contentBuilder) op(operator string, operands ...float64) {
	for _, v := range operands {
		b.buf.WriteString(custom.FormatReal(v))
		b.buf.WriteByte(' ')
	}
	b.buf.WriteString(operator)
	b.buf.WriteByte('\n')
}

func (b *contentBuilder) name(name, operator string, operands ...float64) {
	b.buf.WriteString("/" + custom.EscapeName(name) + " ")
	b.op(operator, operands...)
}

func (b *contentBuilder) show(text string) {
	b.buf.WriteString("(" + custom.EscapeLiteral(text) + ") Tj\n")
}

func (b *contentBuilder) fillColor(c oplog.Color) {
	b.op("rg", c[0], c[1], c[2])
}

func (b *contentBuilder) fillRect(r rect.Rect) {
	b.op("re", r.LLx, r.LLy, r.Dx(), r.Dy())
	b.op("f")
}

// opacityState returns the graphics state name for a fill and stroke alpha
func (b *contentBuilder) opacityState(alpha float64) string {
	name := gsPrefix + strings.ReplaceAll(custom.FormatReal(alpha*100), ".", "_")
	b.opacities[name] = alpha
	return name
}

// Bytes returns the content written so far
func (b *contentBuilder) Bytes() []byte {
	return b.buf.Bytes()
}

// draw writes the operators for one operation, wrapped in q/Q.
// Coordinates are PDF user space.
func (b *contentBuilder) draw(p placedOp, scale float64) {
	r := p.rect
	b.op("q")
	switch v := p.op.Payload.(type) {
	case oplog.Whiteout:
		b.fillColor(v.Color)
		b.fillRect(r)
	case oplog.Highlight:
		b.name(b.opacityState(v.Opacity), "gs")
		b.fillColor(v.Color)
		b.fillRect(r)
	case oplog.Underline:
		thickness := v.Thickness / scale
		b.fillColor(v.Color)
		b.fillRect(rect.Rect{LLx: r.LLx, LLy: r.LLy, URx: r.URx, URy: r.LLy + thickness})
	case oplog.Checkbox:
		if v.Checked {
			b.check(r)
		}
	case oplog.TextBox:
		b.text(r, p.text, v.Style, scale)
	case oplog.ReplaceText:
		b.fillColor(oplog.White)
		b.fillRect(r)
		b.text(r, p.text, v.Style, scale)
	}
	b.op("Q")
}

// text sets lines top-down from the upper-left corner of r
func (b *contentBuilder) text(r rect.Rect, lines []string, style oplog.Style, scale float64) {
	size := style.FontSize / scale
	if size == 0 {
		size = defaultFontSize
	}
	b.fillColor(style.Color)
	b.op("BT")
	b.fonts[b.textFont] = true
	b.name(fontResource(b.textFont), "Tf", size)
	b.op("TL", size*lineSpacing)
	b.op("Td", r.LLx, r.URy-size)
	for i, line := range lines {
		if i > 0 {
			b.op("T*")
		}
		b.show(line)
	}
	b.op("ET")
}

// check centers a check mark in r, sized to fit
func (b *contentBuilder) check(r rect.Rect) {
	size := 0.8 * min(r.Dx()/checkGlyphWidth, r.Dy()/checkGlyphHeight)
	if size <= 0 {
		return
	}
	x := r.LLx + (r.Dx()-size*checkGlyphWidth)/2
	y := r.LLy + (r.Dy()-size*checkGlyphHeight)/2
	b.op("rg", 0, 0, 0)
	b.op("BT")
	b.fonts[checkFont] = true
	b.name(fontResource(checkFont), "Tf", size)
	b.op("Td", x, y)
	b.show(checkGlyph)
	b.op("ET")
}
