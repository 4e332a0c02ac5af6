package custom

import (
	"bytes"

	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
)

// PageContent returns the decoded content of a page. The streams of a
// /Contents array are joined with a newline, as a consumer would read them.
func (g *Graph) PageContent(page PageInfo) ([]byte, error) {
	contents, err := g.Resolve(page.Dict.Get("Contents"))
	if err != nil {
		return nil, err
	}

	var streams []PDFObject
	switch v := contents.(type) {
	case *Null:
		return nil, nil
	case *Stream:
		streams = []PDFObject{v}
	case *Array:
		streams = v.Elements
	default:
		return nil, pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidStructure, "page /Contents is a %s", contents.Type()).
			WithObject(page.ID.Number, page.ID.Generation).WithPage(page.Number)
	}

	var buf bytes.Buffer
	for i, elem := range streams {
		resolved, err := g.Resolve(elem)
		if err != nil {
			return nil, err
		}
		stream, ok := resolved.(*Stream)
		if !ok {
			return nil, pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidStructure, "page /Contents element is a %s", resolved.Type()).
				WithObject(page.ID.Number, page.ID.Generation).WithPage(page.Number)
		}
		data, err := DecodeStream(stream)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}
