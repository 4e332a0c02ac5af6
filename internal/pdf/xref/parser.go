package xref

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
)

// Table accumulates cross-reference entries across the Prev chain.
// Sections must be added newest first: an object number that is already
// present is never overwritten by an older section.
type Table struct {
	entries   map[int64]*XRefEntry
	prevChain []int64
}

// XRefEntry represents an entry in the cross-reference table
type XRefEntry struct {
	Type        EntryType // Free, InUse, Compressed
	Offset      int64     // Byte offset for InUse entries
	Generation  int64     // Generation number (0 for compressed)
	StreamNum   int64     // Object stream number for Compressed entries
	StreamIndex int       // Index within object stream (for compressed objects)
}

// EntryType represents the type of cross-reference entry
type EntryType int

const (
	EntryFree EntryType = iota
	EntryInUse
	EntryCompressed
)

func (t EntryType) String() string {
	switch t {
	case EntryFree:
		return "free"
	case EntryInUse:
		return "in-use"
	case EntryCompressed:
		return "compressed"
	default:
		return "unknown"
	}
}

// NewTable creates an empty cross-reference table
func NewTable() *Table {
	return &Table{
		entries: make(map[int64]*XRefEntry),
	}
}

// Add records an entry unless a newer section already defined the object number
func (t *Table) Add(objNum int64, entry *XRefEntry) {
	if _, exists := t.entries[objNum]; exists {
		return
	}
	t.entries[objNum] = entry
}

// Get returns the entry for an object number, or nil
func (t *Table) Get(objNum int64) *XRefEntry {
	return t.entries[objNum]
}

// Len returns the number of object numbers with an entry
func (t *Table) Len() int {
	return len(t.entries)
}

// InUse returns the sorted object numbers whose entry is in use or compressed
func (t *Table) InUse() []int64 {
	numbers := make([]int64, 0, len(t.entries))
	for objNum, entry := range t.entries {
		if entry.Type != EntryFree {
			numbers = append(numbers, objNum)
		}
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	return numbers
}

// Visit records a section offset and reports false if it was already seen,
// which guards against Prev chains that loop.
func (t *Table) Visit(offset int64) bool {
	for _, seen := range t.prevChain {
		if seen == offset {
			return false
		}
	}
	t.prevChain = append(t.prevChain, offset)
	return true
}

// PrevChain returns the section offsets in the order they were parsed
func (t *Table) PrevChain() []int64 {
	return t.prevChain
}

// IsTableAt reports whether a classic "xref" keyword starts at offset (after whitespace)
func IsTableAt(data []byte, offset int64) bool {
	if offset < 0 || offset >= int64(len(data)) {
		return false
	}
	rest := bytes.TrimLeft(data[offset:], " \t\r\n\f\x00")
	return bytes.HasPrefix(rest, []byte("xref"))
}

// ParseTable parses a classic cross-reference section starting at offset and
// adds its entries to t. It returns the offset just past the "trailer" keyword,
// where the trailer dictionary begins.
func (t *Table) ParseTable(data []byte, offset int64) (int64, error) {
	if offset < 0 || offset >= int64(len(data)) {
		return 0, corrupt(offset, "xref offset %d outside file of %d bytes", offset, len(data))
	}

	pos := skipSpace(data, int(offset))
	if !bytes.HasPrefix(data[pos:], []byte("xref")) {
		return 0, corrupt(int64(pos), "expected 'xref' keyword")
	}
	pos += len("xref")

	for {
		pos = skipSpace(data, pos)
		if pos >= len(data) {
			return 0, corrupt(int64(pos), "unexpected end of xref table")
		}
		if bytes.HasPrefix(data[pos:], []byte("trailer")) {
			return int64(pos + len("trailer")), nil
		}

		// Subsection header: start_num count
		line, next := readLine(data, pos)
		fields := bytes.Fields(line)
		if len(fields) != 2 {
			return 0, corrupt(int64(pos), "invalid xref subsection header %q", line)
		}
		startNum, err := strconv.ParseInt(string(fields[0]), 10, 64)
		if err != nil || startNum < 0 {
			return 0, corrupt(int64(pos), "invalid start number %q in xref subsection", fields[0])
		}
		count, err := strconv.ParseInt(string(fields[1]), 10, 64)
		if err != nil || count < 0 {
			return 0, corrupt(int64(pos), "invalid count %q in xref subsection", fields[1])
		}
		pos = next

		for i := int64(0); i < count; i++ {
			pos = skipSpace(data, pos)
			if pos >= len(data) {
				return 0, corrupt(int64(pos), "truncated xref subsection: %d of %d entries", i, count)
			}
			entryLine, next := readLine(data, pos)
			entry, err := parseXRefEntryLine(entryLine)
			if err != nil {
				return 0, corrupt(int64(pos), "object %d: %v", startNum+i, err)
			}
			t.Add(startNum+i, entry)
			pos = next
		}
	}
}

// parseXRefEntryLine parses a single "oooooooooo ggggg n" entry line
func parseXRefEntryLine(line []byte) (*XRefEntry, error) {
	parts := bytes.Fields(line)
	if len(parts) < 3 {
		return nil, fmt.Errorf("invalid xref entry format (expected 3 parts, got %d): %q", len(parts), line)
	}

	offset, err := strconv.ParseInt(string(parts[0]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid offset %q: %w", parts[0], err)
	}

	generation, err := strconv.ParseInt(string(parts[1]), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid generation %q: %w", parts[1], err)
	}

	entry := &XRefEntry{
		Offset:     offset,
		Generation: generation,
	}

	switch string(parts[2]) {
	case "n":
		entry.Type = EntryInUse
	case "f":
		entry.Type = EntryFree
	default:
		return nil, fmt.Errorf("unknown xref flag %q", parts[2])
	}

	return entry, nil
}

// AddStreamEntries decodes the binary rows of a cross-reference stream.
// widths is the /W array and index the flattened /Index array (pairs of
// first object number and count).
func (t *Table) AddStreamEntries(decoded []byte, widths []int, index []int64) error {
	if len(widths) != 3 {
		return corrupt(0, "xref stream /W must have 3 entries, got %d", len(widths))
	}
	rowSize := 0
	for _, w := range widths {
		if w < 0 || w > 8 {
			return corrupt(0, "invalid xref stream field width %d", w)
		}
		rowSize += w
	}
	if rowSize == 0 {
		return corrupt(0, "xref stream row size is zero")
	}
	if len(index)%2 != 0 {
		return corrupt(0, "xref stream /Index has odd length %d", len(index))
	}

	pos := 0
	for i := 0; i < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for n := int64(0); n < count; n++ {
			if pos+rowSize > len(decoded) {
				return corrupt(0, "truncated xref stream at object %d", first+n)
			}
			row := decoded[pos : pos+rowSize]
			pos += rowSize

			fieldType := int64(1) // default when the first width is zero
			if widths[0] > 0 {
				fieldType = readField(row[:widths[0]])
			}
			f2 := readField(row[widths[0] : widths[0]+widths[1]])
			f3 := readField(row[widths[0]+widths[1]:])

			var entry *XRefEntry
			switch fieldType {
			case 0:
				entry = &XRefEntry{Type: EntryFree, Generation: f3}
			case 1:
				entry = &XRefEntry{Type: EntryInUse, Offset: f2, Generation: f3}
			case 2:
				entry = &XRefEntry{Type: EntryCompressed, StreamNum: f2, StreamIndex: int(f3)}
			default:
				// Unknown types are treated as references to the null object
				entry = &XRefEntry{Type: EntryFree}
			}
			t.Add(first+n, entry)
		}
	}
	return nil
}

// FindStartXRef locates the offset recorded after the last startxref keyword
func FindStartXRef(data []byte) (int64, error) {
	tail := data
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
	}
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, corrupt(int64(len(data)), "startxref keyword not found")
	}
	rest := bytes.Fields(tail[idx+len("startxref"):])
	if len(rest) == 0 {
		return 0, corrupt(int64(len(data)), "missing offset after startxref")
	}
	offset, err := strconv.ParseInt(string(rest[0]), 10, 64)
	if err != nil || offset < 0 || offset >= int64(len(data)) {
		return 0, corrupt(int64(len(data)), "invalid startxref offset %q", rest[0])
	}
	return offset, nil
}

func readField(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func skipSpace(data []byte, pos int) int {
	for pos < len(data) {
		switch data[pos] {
		case ' ', '\t', '\r', '\n', '\f', 0:
			pos++
		default:
			return pos
		}
	}
	return pos
}

// readLine returns the bytes up to the next EOL and the position after it
func readLine(data []byte, pos int) ([]byte, int) {
	end := pos
	for end < len(data) && data[end] != '\n' && data[end] != '\r' {
		end++
	}
	next := end
	if next < len(data) && data[next] == '\r' {
		next++
	}
	if next < len(data) && data[next] == '\n' {
		next++
	}
	return data[pos:end], next
}

func corrupt(offset int64, format string, args ...any) error {
	e := pdferrors.NewPDFErrorf(pdferrors.ErrorTypeCorruptedXRef, format, args...)
	e.Offset = offset
	return e
}
