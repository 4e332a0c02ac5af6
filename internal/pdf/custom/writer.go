package custom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
)

// binaryMarker follows the header so transfer tools treat the file as binary
const binaryMarker = "%\xE2\xE3\xCF\xD3\n"

// Serialize writes the graph as a complete PDF file with a classic cross-reference table
func Serialize(g *Graph) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := g.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo writes the graph to w. The graph is validated first so a broken
// graph never produces output.
func (g *Graph) WriteTo(w io.Writer) (int64, error) {
	if err := g.Validate(); err != nil {
		return 0, err
	}

	ids := g.IDs()
	for i := 1; i < len(ids); i++ {
		if ids[i].Number == ids[i-1].Number {
			return 0, pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidStructure,
				"object number used with two generations").WithObject(ids[i].Number, ids[i].Generation)
		}
	}

	version := PDFVersion17
	if g.Version > version {
		version = g.Version
	}

	var buf bytes.Buffer
	buf.WriteString(PDFHeaderPattern + version + "\n")
	buf.WriteString(binaryMarker)

	size := g.MaxObjectNumber() + 1
	offsets := make([]int64, size)
	generations := make([]int64, size)
	inUse := make([]bool, size)

	for _, id := range ids {
		offsets[id.Number] = int64(buf.Len())
		generations[id.Number] = id.Generation
		inUse[id.Number] = true

		fmt.Fprintf(&buf, "%d %d obj\n", id.Number, id.Generation)
		writeObject(&buf, g.objects[id])
		buf.WriteString("\nendobj\n")
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", size)
	buf.WriteString("0000000000 65535 f \n")
	for n := int64(1); n < size; n++ {
		if inUse[n] {
			fmt.Fprintf(&buf, "%010d %05d n \n", offsets[n], generations[n])
		} else {
			buf.WriteString("0000000000 00001 f \n")
		}
	}

	trailer := NewDictionary()
	trailer.Set("Size", NewInt(size))
	for _, key := range []string{"Root", "Info", "ID"} {
		if g.Trailer.Has(key) {
			trailer.Set(key, g.Trailer.Get(key))
		}
	}
	buf.WriteString("trailer\n")
	writeObject(&buf, trailer)
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// writeObject writes the PDF syntax for obj
func writeObject(buf *bytes.Buffer, obj PDFObject) {
	switch v := obj.(type) {
	case nil:
		buf.WriteString("null")
	case *String:
		if v.IsHex {
			fmt.Fprintf(buf, "<%X>", v.Value)
		} else {
			buf.WriteByte('(')
			buf.WriteString(EscapeLiteral(v.Value))
			buf.WriteByte(')')
		}
	case *Name:
		buf.WriteByte('/')
		buf.WriteString(EscapeName(v.Value))
	case *Array:
		buf.WriteByte('[')
		for i, elem := range v.Elements {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writeObject(buf, elem)
		}
		buf.WriteByte(']')
	case *Dictionary:
		buf.WriteString("<<")
		for _, key := range v.Keys {
			buf.WriteByte('/')
			buf.WriteString(EscapeName(key.Value))
			buf.WriteByte(' ')
			writeObject(buf, v.Values[key.Value])
		}
		buf.WriteString(">>")
	case *Stream:
		dict := DeepCopy(v.Dict).(*Dictionary)
		dict.Set("Length", NewInt(int64(len(v.Data))))
		writeObject(buf, dict)
		buf.WriteString("\nstream\n")
		buf.Write(v.Data)
		buf.WriteString("\nendstream")
	default:
		// Null, Bool, Number, IndirectRef and Keyword print their own syntax
		buf.WriteString(obj.String())
	}
}

// EscapeLiteral escapes s for use between the parentheses of a literal string.
// Delimiters and the backslash get a backslash; control characters and bytes
// outside printable ASCII are written as three-digit octal escapes.
func EscapeLiteral(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if c < 0x20 || c >= 0x7F {
				fmt.Fprintf(&b, `\%03o`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}

// EscapeName escapes a name's bytes with #xx where they are not regular printable characters
func EscapeName(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x21 || c > 0x7E || c == '#' || IsDelimiter(c) {
			fmt.Fprintf(&b, "#%02X", c)
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Encode returns the PDF syntax for a direct object. Streams include their data.
func Encode(obj PDFObject) []byte {
	var buf bytes.Buffer
	writeObject(&buf, obj)
	return buf.Bytes()
}
