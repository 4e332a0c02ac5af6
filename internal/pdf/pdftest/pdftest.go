// Package pdftest builds small, well-formed PDF files for tests. Offsets in
// the cross-reference section are computed from the generated bytes.
package pdftest

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"strings"
)

// Page describes one generated page
type Page struct {
	Text       string // drawn with Helvetica at 24pt near the top of the page
	ImageBytes int    // size of a private image XObject; 0 for none
}

// Options controls the file layout
type Options struct {
	// Nested groups pages under intermediate /Pages nodes and moves the
	// font resources and media box to the root, so pages inherit them.
	Nested bool
	// XRefStream stores non-stream objects in an object stream indexed by a
	// compressed cross-reference stream instead of a classic table.
	XRefStream bool
}

type object struct {
	num    int
	body   string // dictionary or other direct syntax
	stream []byte // stream data when non-nil
}

// TextPDF returns a document with one page per text
func TextPDF(texts ...string) []byte {
	pages := make([]Page, len(texts))
	for i, text := range texts {
		pages[i] = Page{Text: text}
	}
	return Build(pages, Options{})
}

// NumberedPDF returns an n-page document whose pages read "Page 1", "Page 2", ...
func NumberedPDF(n int) []byte {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{Text: fmt.Sprintf("Page %d", i+1)}
	}
	return Build(pages, Options{})
}

// Build generates a PDF with the given pages
func Build(pages []Page, opts Options) []byte {
	var objects []*object
	add := func(body string, stream []byte) *object {
		o := &object{num: len(objects) + 1, body: body, stream: stream}
		objects = append(objects, o)
		return o
	}

	catalog := add("", nil)
	root := add("", nil)
	font := add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>", nil)

	var pageNums []int
	for _, p := range pages {
		content := fmt.Sprintf("BT\n/F1 24 Tf\n72 700 Td\n(%s) Tj\nET\n", escape(p.Text))
		resources := ""
		if p.ImageBytes > 0 {
			img := add(fmt.Sprintf("<< /Type /XObject /Subtype /Image /Width %d /Height 1 /ColorSpace /DeviceGray /BitsPerComponent 8 /Length %d >>",
				p.ImageBytes, p.ImageBytes), imageData(p.ImageBytes, len(pageNums)))
			content += "q\n200 0 0 20 72 500 cm\n/Im1 Do\nQ\n"
			resources = fmt.Sprintf(" /Resources << /Font << /F1 %d 0 R >> /XObject << /Im1 %d 0 R >> >>", font.num, img.num)
		} else if !opts.Nested {
			resources = fmt.Sprintf(" /Resources << /Font << /F1 %d 0 R >> >>", font.num)
		}
		contents := add(fmt.Sprintf("<< /Length %d >>", len(content)), []byte(content))

		mediaBox := " /MediaBox [0 0 612 792]"
		if opts.Nested {
			mediaBox = ""
		}
		page := add(fmt.Sprintf("<< /Type /Page /Parent %%d 0 R%s /Contents %d 0 R%s >>", mediaBox, contents.num, resources), nil)
		pageNums = append(pageNums, page.num)
	}

	rootExtra := ""
	if opts.Nested {
		rootExtra = fmt.Sprintf(" /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >>", font.num)
		var groups []int
		for start := 0; start < len(pageNums); start += 3 {
			end := min(start+3, len(pageNums))
			group := add("", nil)
			for _, num := range pageNums[start:end] {
				setParent(objects[num-1], group.num)
			}
			group.body = fmt.Sprintf("<< /Type /Pages /Parent %d 0 R /Kids [%s] /Count %d >>",
				root.num, refs(pageNums[start:end]), end-start)
			groups = append(groups, group.num)
		}
		root.body = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d%s >>", refs(groups), len(pageNums), rootExtra)
	} else {
		for _, num := range pageNums {
			setParent(objects[num-1], root.num)
		}
		root.body = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", refs(pageNums), len(pageNums))
	}
	catalog.body = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", root.num)

	if opts.XRefStream {
		return writeWithXRefStream(objects, catalog.num)
	}
	return writeClassic(objects, catalog.num)
}

func setParent(o *object, parent int) {
	o.body = fmt.Sprintf(o.body, parent)
}

func writeClassic(objects []*object, rootNum int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xE2\xE3\xCF\xD3\n")

	offsets := make([]int, len(objects))
	for i, o := range objects {
		offsets[i] = buf.Len()
		writeObject(&buf, o)
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, rootNum, xrefStart)
	return buf.Bytes()
}

func writeWithXRefStream(objects []*object, rootNum int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n%\xE2\xE3\xCF\xD3\n")

	objStmNum := len(objects) + 1
	xrefNum := len(objects) + 2
	size := xrefNum + 1

	type entry struct {
		kind  byte
		field uint32
		index uint16
	}
	entries := make([]entry, size)
	entries[0] = entry{kind: 0, index: 0xFFFF}

	// Non-stream objects go into the object stream
	var header, body bytes.Buffer
	compressed := 0
	for _, o := range objects {
		if o.stream != nil {
			continue
		}
		fmt.Fprintf(&header, "%d %d ", o.num, body.Len())
		body.WriteString(o.body)
		body.WriteString("\n")
		entries[o.num] = entry{kind: 2, field: uint32(objStmNum), index: uint16(compressed)}
		compressed++
	}

	for _, o := range objects {
		if o.stream == nil {
			continue
		}
		entries[o.num] = entry{kind: 1, field: uint32(buf.Len())}
		writeObject(&buf, o)
	}

	objStmData := deflate(append(header.Bytes(), body.Bytes()...))
	entries[objStmNum] = entry{kind: 1, field: uint32(buf.Len())}
	writeObject(&buf, &object{
		num: objStmNum,
		body: fmt.Sprintf("<< /Type /ObjStm /N %d /First %d /Filter /FlateDecode /Length %d >>",
			compressed, header.Len(), len(objStmData)),
		stream: objStmData,
	})

	xrefStart := buf.Len()
	entries[xrefNum] = entry{kind: 1, field: uint32(xrefStart)}

	var rows bytes.Buffer
	for _, e := range entries {
		rows.WriteByte(e.kind)
		_ = binary.Write(&rows, binary.BigEndian, e.field)
		_ = binary.Write(&rows, binary.BigEndian, e.index)
	}
	xrefData := deflate(rows.Bytes())
	writeObject(&buf, &object{
		num: xrefNum,
		body: fmt.Sprintf("<< /Type /XRef /Size %d /W [1 4 2] /Root %d 0 R /Filter /FlateDecode /Length %d >>",
			size, rootNum, len(xrefData)),
		stream: xrefData,
	})

	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefStart)
	return buf.Bytes()
}

func writeObject(buf *bytes.Buffer, o *object) {
	fmt.Fprintf(buf, "%d 0 obj\n%s", o.num, o.body)
	if o.stream != nil {
		buf.WriteString("\nstream\n")
		buf.Write(o.stream)
		buf.WriteString("\nendstream")
	}
	buf.WriteString("\nendobj\n")
}

func deflate(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, _ = w.Write(data)
	_ = w.Close()
	return buf.Bytes()
}

func imageData(n, seed int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte((i*31 + seed*17) % 251)
	}
	return data
}

func refs(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprintf("%d 0 R", n)
	}
	return strings.Join(parts, " ")
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
