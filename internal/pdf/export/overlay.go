package export

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"seehuhn.de/go/geom/rect"

	"github.com/a3tai/mcp-pdf-editor/internal/pdf/custom"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/oplog"
)

// annotPrint is the annotation flag that keeps an annotation visible when printed
const annotPrint = 4

// overlayPage adds one annotation per operation. Each carries an appearance
// stream drawn by the same generator flatten uses.
func (e *exporter) overlayPage(page custom.PageInfo, ops []placedOp) error {
	annots := e.annotations(page)
	for _, p := range ops {
		ap, err := e.appearance(p)
		if err != nil {
			return err
		}
		annot := e.annotation(page, p)
		apDict := custom.NewDictionary()
		apDict.Set("N", custom.NewRef(ap))
		annot.Set("AP", apDict)
		annots.Add(custom.NewRef(e.graph.Add(annot)))
	}
	page.Dict.Set("Annots", annots)
	return nil
}

// appearance builds the form XObject an annotation displays. Its BBox equals
// the annotation rectangle, so page coordinates can be used unchanged.
func (e *exporter) appearance(p placedOp) (custom.ObjectID, error) {
	b := newContentBuilder(e.opts.Font)
	b.draw(p, e.opts.Scale)

	res := custom.NewDictionary()
	if err := e.addResources(res, b); err != nil {
		return custom.ObjectID{}, err
	}

	dict := custom.NewDictionary()
	dict.Set("Type", custom.NewName("XObject"))
	dict.Set("Subtype", custom.NewName("Form"))
	dict.Set("BBox", rectArray(p.rect))
	dict.Set("Resources", res)
	stream, err := custom.NewFlateStream(dict, b.Bytes())
	if err != nil {
		return custom.ObjectID{}, err
	}
	return e.graph.Add(stream), nil
}

// annotation returns the annotation dictionary for one operation, without its appearance
func (e *exporter) annotation(page custom.PageInfo, p placedOp) *custom.Dictionary {
	annot := custom.NewDictionary()
	annot.Set("Type", custom.NewName("Annot"))
	annot.Set("Rect", rectArray(p.rect))
	annot.Set("NM", custom.NewLiteral(annotationName(e.opts.Tag, p.op.ID)))
	annot.Set("P", custom.NewRef(page.ID))
	annot.Set("F", custom.NewInt(annotPrint))

	switch v := p.op.Payload.(type) {
	case oplog.TextBox:
		annot.Set("Subtype", custom.NewName("FreeText"))
		annot.Set("Contents", textString(v.Text))
		annot.Set("DA", custom.NewLiteral(e.defaultAppearance(v.Style)))
	case oplog.ReplaceText:
		annot.Set("Subtype", custom.NewName("FreeText"))
		annot.Set("Contents", textString(v.Text))
		annot.Set("DA", custom.NewLiteral(e.defaultAppearance(v.Style)))
	case oplog.Whiteout:
		annot.Set("Subtype", custom.NewName("Square"))
		annot.Set("C", colorArray(v.Color))
		annot.Set("IC", colorArray(v.Color))
		annot.Set("BS", noBorder())
	case oplog.Highlight:
		annot.Set("Subtype", custom.NewName("Highlight"))
		annot.Set("C", colorArray(v.Color))
		annot.Set("CA", custom.NewReal(v.Opacity))
		annot.Set("QuadPoints", quadPoints(p.rect))
	case oplog.Underline:
		annot.Set("Subtype", custom.NewName("Underline"))
		annot.Set("C", colorArray(v.Color))
		annot.Set("QuadPoints", quadPoints(p.rect))
	case oplog.Checkbox:
		annot.Set("Subtype", custom.NewName("Square"))
		annot.Set("BS", noBorder())
		state := "Off"
		if v.Checked {
			state = "Yes"
		}
		annot.Set("Contents", custom.NewLiteral(state))
	}
	return annot
}

func (e *exporter) defaultAppearance(style oplog.Style) string {
	size := style.FontSize / e.opts.Scale
	if size == 0 {
		size = defaultFontSize
	}
	b := newContentBuilder(e.opts.Font)
	b.fillColor(style.Color)
	b.name(fontResource(e.opts.Font), "Tf", size)
	return string(b.Bytes()[:len(b.Bytes())-1])
}

// textString encodes s as a PDF text string: literal when ASCII, UTF-16BE with a BOM otherwise
func textString(s string) *custom.String {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return custom.NewLiteral(s)
	}
	encoded, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().String(s)
	if err != nil {
		return custom.NewLiteral(s)
	}
	return &custom.String{Value: encoded, IsHex: true}
}

func rectArray(r rect.Rect) *custom.Array {
	return custom.NewRealArray(r.LLx, r.LLy, r.URx, r.URy)
}

func colorArray(c oplog.Color) *custom.Array {
	return custom.NewRealArray(c[0], c[1], c[2])
}

// quadPoints lists the corners in the order viewers expect: upper-left, upper-right, lower-left, lower-right
func quadPoints(r rect.Rect) *custom.Array {
	return custom.NewRealArray(r.LLx, r.URy, r.URx, r.URy, r.LLx, r.LLy, r.URx, r.LLy)
}

func noBorder() *custom.Dictionary {
	bs := custom.NewDictionary()
	bs.Set("W", custom.NewInt(0))
	return bs
}
