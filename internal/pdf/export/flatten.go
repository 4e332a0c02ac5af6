package export

import (
	"bytes"

	"github.com/a3tai/mcp-pdf-editor/internal/pdf/custom"
)

// flattenPage appends the operations' drawing to the page content. The
// existing content is bracketed by q/Q so state it leaves behind cannot
// leak into the appended drawing.
func (e *exporter) flattenPage(page custom.PageInfo, ops []placedOp) error {
	e.graph.MaterializeInherited(page)

	b := newContentBuilder(e.opts.Font)
	for _, p := range ops {
		b.draw(p, e.opts.Scale)
	}

	if err := e.addResources(e.pageResources(page), b); err != nil {
		return err
	}

	existing, err := e.contentRefs(page)
	if err != nil {
		return err
	}

	var data bytes.Buffer
	contents := custom.NewArray()
	if len(existing) > 0 {
		contents.Add(custom.NewRef(e.prefixStream()))
		for _, ref := range existing {
			contents.Add(ref)
		}
		data.WriteString("Q\n")
	}
	data.Write(b.Bytes())

	stream, err := custom.NewFlateStream(nil, data.Bytes())
	if err != nil {
		return err
	}
	contents.Add(custom.NewRef(e.graph.Add(stream)))
	page.Dict.Set("Contents", contents)
	return nil
}

// contentRefs returns the page's current content streams as references
func (e *exporter) contentRefs(page custom.PageInfo) ([]custom.PDFObject, error) {
	contents := page.Dict.Get("Contents")
	resolved, err := e.graph.Resolve(contents)
	if err != nil {
		return nil, err
	}
	switch v := resolved.(type) {
	case *custom.Stream:
		if _, ok := contents.(*custom.IndirectRef); ok {
			return []custom.PDFObject{contents}, nil
		}
		// a direct stream is not valid PDF, but keep it by giving it an ID
		return []custom.PDFObject{custom.NewRef(e.graph.Add(v))}, nil
	case *custom.Array:
		return append([]custom.PDFObject(nil), v.Elements...), nil
	}
	return nil, nil
}

// prefixStream returns the shared stream that saves the graphics state
func (e *exporter) prefixStream() custom.ObjectID {
	if !e.prefix.IsValid() {
		e.prefix = e.graph.Add(&custom.Stream{Dict: custom.NewDictionary(), Data: []byte("q\n")})
	}
	return e.prefix
}
