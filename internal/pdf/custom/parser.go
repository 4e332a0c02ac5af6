package custom

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/xref"
)

// headerSearchLimit is how far into the file the %PDF- marker may appear
const headerSearchLimit = 1024

// CustomPDFParser turns the bytes of a PDF file into a Graph
type CustomPDFParser struct {
	data    []byte
	lexer   *PDFLexer
	version string
	xref    *xref.Table
	trailer *Dictionary

	objects map[int64]PDFObject
	gens    map[int64]int64
	loading map[int64]bool
	objStms map[int64]*objectStream
}

// objectStream holds a decoded /ObjStm and the offsets of its members
type objectStream struct {
	data    []byte
	offsets map[int64]int64
	order   []int64
}

// NewCustomPDFParser creates a new PDF parser over data. The parser copies
// everything it keeps, so data may be unmapped once parsing is done.
func NewCustomPDFParser(data []byte) *CustomPDFParser {
	return &CustomPDFParser{
		data:    data,
		lexer:   NewPDFLexer(data, 0),
		xref:    xref.NewTable(),
		objects: make(map[int64]PDFObject),
		gens:    make(map[int64]int64),
		loading: make(map[int64]bool),
		objStms: make(map[int64]*objectStream),
	}
}

// Parse parses data into a validated graph. Any structural defect fails the
// whole parse; a partially loaded graph is never returned.
func Parse(data []byte) (*Graph, error) {
	return NewCustomPDFParser(data).Parse()
}

// Parse parses the PDF document structure
func (p *CustomPDFParser) Parse() (*Graph, error) {
	if err := p.parseHeader(); err != nil {
		return nil, err
	}

	startXRef, err := xref.FindStartXRef(p.data)
	if err != nil {
		return nil, err
	}

	if err := p.parseXRefChain(startXRef); err != nil {
		return nil, err
	}

	if p.trailer.Has("Encrypt") {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeUnsupportedFeature,
			"encrypted documents are not supported")
	}

	if err := p.loadAllObjects(); err != nil {
		return nil, err
	}

	g := p.buildGraph()
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// parseHeader locates %PDF-x.y within the first kilobyte
func (p *CustomPDFParser) parseHeader() error {
	limit := len(p.data)
	if limit > headerSearchLimit {
		limit = headerSearchLimit
	}
	idx := bytes.Index(p.data[:limit], []byte(PDFHeaderPattern))
	if idx < 0 {
		return pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidHeader, "missing %PDF- header")
	}

	rest := p.data[idx+len(PDFHeaderPattern):]
	end := 0
	for end < len(rest) && (isDigit(rest[end]) || rest[end] == '.') {
		end++
	}
	version := string(rest[:end])
	if len(version) < 3 || version[1] != '.' {
		e := pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidHeader, "invalid PDF version %q", version)
		e.Offset = int64(idx)
		return e
	}
	p.version = version
	return nil
}

// parseXRefChain follows startxref and every /Prev link, newest section first
func (p *CustomPDFParser) parseXRefChain(offset int64) error {
	first := true
	for {
		if !p.xref.Visit(offset) {
			e := pdferrors.NewPDFError(pdferrors.ErrorTypeCorruptedXRef, "xref /Prev chain loops")
			e.Offset = offset
			return e
		}

		var (
			trailer *Dictionary
			err     error
		)
		if xref.IsTableAt(p.data, offset) {
			trailer, err = p.parseClassicSection(offset)
		} else {
			trailer, err = p.parseXRefStream(offset)
		}
		if err != nil {
			return err
		}

		if first {
			p.trailer = trailer
			first = false
		}

		// Hybrid files point at an xref stream holding the compressed entries
		if stmOffset := trailer.GetInt("XRefStm"); stmOffset > 0 && p.xref.Visit(stmOffset) {
			if _, err := p.parseXRefStream(stmOffset); err != nil {
				return err
			}
		}

		prev := trailer.Get("Prev")
		if prev.Type() != TypeNumber {
			return nil
		}
		offset = prev.(*Number).Int()
	}
}

func (p *CustomPDFParser) parseClassicSection(offset int64) (*Dictionary, error) {
	trailerPos, err := p.xref.ParseTable(p.data, offset)
	if err != nil {
		return nil, err
	}

	p.lexer.Seek(trailerPos)
	obj, err := p.parseObject()
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeCorruptedXRef, err).
			WithContext("parsing trailer dictionary")
	}
	dict, ok := obj.(*Dictionary)
	if !ok {
		e := pdferrors.NewPDFError(pdferrors.ErrorTypeCorruptedXRef, "trailer must be a dictionary")
		e.Offset = trailerPos
		return nil, e
	}
	return dict, nil
}

func (p *CustomPDFParser) parseXRefStream(offset int64) (*Dictionary, error) {
	if offset < 0 || offset >= int64(len(p.data)) {
		e := pdferrors.NewPDFErrorf(pdferrors.ErrorTypeCorruptedXRef, "xref offset %d outside file", offset)
		e.Offset = offset
		return nil, e
	}

	p.lexer.Seek(offset)
	_, obj, err := p.parseIndirectObject()
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeCorruptedXRef, err).
			WithContext("expected xref table or xref stream")
	}
	stream, ok := obj.(*Stream)
	if !ok || stream.Dict.GetName("Type") != "XRef" {
		e := pdferrors.NewPDFError(pdferrors.ErrorTypeCorruptedXRef, "object at startxref is not an xref stream")
		e.Offset = offset
		return nil, e
	}

	decoded, err := DecodeStream(stream)
	if err != nil {
		return nil, err
	}

	wValues, ok := stream.Dict.GetArray("W").Floats()
	if !ok || len(wValues) != 3 {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeCorruptedXRef, "xref stream has invalid /W")
	}
	widths := make([]int, 3)
	for i, w := range wValues {
		widths[i] = int(w)
	}

	var index []int64
	if idx, ok := stream.Dict.GetArray("Index").Floats(); ok && len(idx) > 0 {
		for _, v := range idx {
			index = append(index, int64(v))
		}
	} else {
		index = []int64{0, stream.Dict.GetInt("Size")}
	}

	if err := p.xref.AddStreamEntries(decoded, widths, index); err != nil {
		return nil, err
	}
	return stream.Dict, nil
}

// loadAllObjects loads every in-use and compressed object named by the xref chain
func (p *CustomPDFParser) loadAllObjects() error {
	for _, num := range p.xref.InUse() {
		if _, err := p.loadObject(num); err != nil {
			return err
		}
	}
	return nil
}

// loadObject returns object num, loading it on first use. It recurses for
// indirect stream lengths and for the object streams holding compressed objects.
func (p *CustomPDFParser) loadObject(num int64) (PDFObject, error) {
	if obj, ok := p.objects[num]; ok {
		return obj, nil
	}
	if p.loading[num] {
		return nil, pdferrors.NewPDFErrorWithLocation(pdferrors.ErrorTypeCircularReference,
			"object depends on itself while loading", 0, num, 0)
	}
	p.loading[num] = true
	defer delete(p.loading, num)

	entry := p.xref.Get(num)
	if entry == nil || entry.Type == xref.EntryFree {
		return &Null{}, nil
	}

	var (
		obj PDFObject
		gen int64
		err error
	)
	switch entry.Type {
	case xref.EntryInUse:
		obj, gen, err = p.loadUncompressed(num, entry)
	case xref.EntryCompressed:
		obj, err = p.loadCompressed(num, entry)
	}
	if err != nil {
		return nil, err
	}

	p.objects[num] = obj
	p.gens[num] = gen
	return obj, nil
}

func (p *CustomPDFParser) loadUncompressed(num int64, entry *xref.XRefEntry) (PDFObject, int64, error) {
	if entry.Offset <= 0 || entry.Offset >= int64(len(p.data)) {
		return nil, 0, pdferrors.NewPDFErrorWithLocation(pdferrors.ErrorTypeCorruptedXRef,
			"xref offset outside file", entry.Offset, num, entry.Generation)
	}

	saved := p.lexer.Position()
	defer p.lexer.Seek(saved)

	p.lexer.Seek(entry.Offset)
	id, obj, err := p.parseIndirectObject()
	if err != nil {
		return nil, 0, pdferrors.WrapError(pdferrors.ErrorTypeMalformedObject, err).
			WithObject(num, entry.Generation)
	}
	if id.Number != num {
		return nil, 0, pdferrors.NewPDFErrorWithLocation(pdferrors.ErrorTypeCorruptedXRef,
			fmt.Sprintf("xref points at object %d", id.Number), entry.Offset, num, entry.Generation)
	}
	return obj, id.Generation, nil
}

func (p *CustomPDFParser) loadCompressed(num int64, entry *xref.XRefEntry) (PDFObject, error) {
	stm, err := p.objectStream(entry.StreamNum)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeMalformedObject, err).WithObject(num, 0)
	}
	offset, ok := stm.offsets[num]
	if !ok {
		return nil, pdferrors.NewPDFErrorWithLocation(pdferrors.ErrorTypeMalformedObject,
			fmt.Sprintf("object not found in object stream %d", entry.StreamNum), 0, num, 0)
	}

	sub := &CustomPDFParser{
		data:    stm.data,
		lexer:   NewPDFLexer(stm.data, offset),
		xref:    p.xref,
		objects: p.objects,
		gens:    p.gens,
		loading: p.loading,
		objStms: p.objStms,
	}
	obj, err := sub.parseObject()
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeMalformedObject, err).WithObject(num, 0)
	}
	return obj, nil
}

// objectStream decodes /ObjStm number num and indexes its members
func (p *CustomPDFParser) objectStream(num int64) (*objectStream, error) {
	if stm, ok := p.objStms[num]; ok {
		return stm, nil
	}

	obj, err := p.loadObject(num)
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*Stream)
	if !ok || stream.Dict.GetName("Type") != "ObjStm" {
		return nil, pdferrors.NewPDFErrorWithLocation(pdferrors.ErrorTypeMalformedObject,
			"compressed object refers to something that is not an object stream", 0, num, 0)
	}

	decoded, err := DecodeStream(stream)
	if err != nil {
		return nil, err
	}

	n := stream.Dict.GetInt("N")
	first := stream.Dict.GetInt("First")
	if first < 0 || first > int64(len(decoded)) {
		return nil, pdferrors.NewPDFErrorWithLocation(pdferrors.ErrorTypeMalformedObject,
			"object stream /First outside data", 0, num, 0)
	}

	stm := &objectStream{data: decoded, offsets: make(map[int64]int64, n)}
	lexer := NewPDFLexer(decoded[:first], 0)
	for i := int64(0); i < n; i++ {
		numTok, err1 := lexer.NextToken()
		offTok, err2 := lexer.NextToken()
		objNum, ok1 := ParseInt(numTok)
		off, ok2 := ParseInt(offTok)
		if err1 != nil || err2 != nil || !ok1 || !ok2 {
			return nil, pdferrors.NewPDFErrorWithLocation(pdferrors.ErrorTypeMalformedObject,
				fmt.Sprintf("object stream header truncated at entry %d", i), 0, num, 0)
		}
		stm.offsets[objNum] = first + off
		stm.order = append(stm.order, objNum)
	}

	p.objStms[num] = stm
	return stm, nil
}

// buildGraph assembles the loaded objects into a graph. Cross-reference and
// object streams are storage artifacts and are left out; references to
// objects that do not exist read as null.
func (p *CustomPDFParser) buildGraph() *Graph {
	g := NewGraph()
	g.Version = p.version

	for num, obj := range p.objects {
		if _, isNull := obj.(*Null); isNull {
			continue
		}
		if stream, ok := obj.(*Stream); ok {
			switch stream.Dict.GetName("Type") {
			case "XRef", "ObjStm":
				continue
			}
		}
		g.Set(ObjectID{Number: num, Generation: p.gens[num]}, obj)
	}

	g.Trailer = NewDictionary()
	for _, key := range []string{"Root", "Info", "ID"} {
		if v := p.trailer.Get(key); v.Type() != TypeNull {
			g.Trailer.Set(key, v)
		}
	}

	for _, id := range g.IDs() {
		obj, _ := g.Object(id)
		g.Set(id, nullDangling(g, obj))
	}
	g.Trailer = nullDangling(g, g.Trailer).(*Dictionary)

	return g
}

// nullDangling replaces references to missing objects with null, which is
// how PDF defines them
func nullDangling(g *Graph, obj PDFObject) PDFObject {
	switch v := obj.(type) {
	case *IndirectRef:
		if !g.Has(v.ObjectID) {
			return &Null{}
		}
	case *Array:
		for i, elem := range v.Elements {
			v.Elements[i] = nullDangling(g, elem)
		}
	case *Dictionary:
		for _, key := range v.Keys {
			v.Values[key.Value] = nullDangling(g, v.Values[key.Value])
		}
	case *Stream:
		nullDangling(g, v.Dict)
	}
	return obj
}

// parseIndirectObject parses "N G obj ... endobj" at the lexer position
func (p *CustomPDFParser) parseIndirectObject() (ObjectID, PDFObject, error) {
	numToken, err := p.lexer.NextToken()
	if err != nil {
		return ObjectID{}, nil, err
	}
	objNum, ok := ParseInt(numToken)
	if !ok {
		return ObjectID{}, nil, lexError(numToken.Pos, "expected object number, got %q", numToken.Value)
	}

	genToken, err := p.lexer.NextToken()
	if err != nil {
		return ObjectID{}, nil, err
	}
	generation, ok := ParseInt(genToken)
	if !ok {
		return ObjectID{}, nil, lexError(genToken.Pos, "expected generation number, got %q", genToken.Value)
	}

	objToken, err := p.lexer.NextToken()
	if err != nil {
		return ObjectID{}, nil, err
	}
	if objToken.Type != TokenObjStart {
		return ObjectID{}, nil, lexError(objToken.Pos, "expected 'obj' keyword")
	}

	obj, err := p.parseObject()
	if err != nil {
		return ObjectID{}, nil, err
	}

	// endobj is frequently missing in damaged files; the object itself is complete
	saved := p.lexer.Position()
	if tok, err := p.lexer.NextToken(); err != nil || tok.Type != TokenObjEnd {
		p.lexer.Seek(saved)
	}

	return ObjectID{Number: objNum, Generation: generation}, obj, nil
}

// parseObject parses a PDF object of any type
func (p *CustomPDFParser) parseObject() (PDFObject, error) {
	token, err := p.lexer.NextToken()
	if err != nil {
		return nil, err
	}
	return p.parseTokenAsObject(token)
}

// parseTokenAsObject converts a pre-read token into a PDF object
func (p *CustomPDFParser) parseTokenAsObject(token Token) (PDFObject, error) {
	switch token.Type {
	case TokenKeyword:
		switch token.Value {
		case "null":
			return &Null{}, nil
		case "true":
			return &Bool{Value: true}, nil
		case "false":
			return &Bool{Value: false}, nil
		default:
			return nil, lexError(token.Pos, "unexpected keyword %q", token.Value)
		}

	case TokenNumber:
		return p.parseNumberOrRef(token)

	case TokenString:
		return &String{Value: token.Value}, nil

	case TokenHexString:
		return &String{Value: token.Value, IsHex: true}, nil

	case TokenName:
		return &Name{Value: token.Value}, nil

	case TokenArrayStart:
		return p.parseArray()

	case TokenDictStart:
		return p.parseDictionary()

	case TokenEOF:
		return nil, lexError(token.Pos, "unexpected end of data")

	default:
		return nil, lexError(token.Pos, "unexpected token %s", token.Type)
	}
}

// parseNumber parses a numeric object
func parseNumber(token Token) (*Number, error) {
	if strings.Contains(token.Value, ".") {
		val, err := strconv.ParseFloat(token.Value, 64)
		if err != nil {
			return nil, lexError(token.Pos, "invalid real number %q", token.Value)
		}
		return NewReal(val), nil
	}
	val, err := strconv.ParseInt(token.Value, 10, 64)
	if err != nil {
		return nil, lexError(token.Pos, "invalid integer %q", token.Value)
	}
	return NewInt(val), nil
}

// parseNumberOrRef parses a number, or "N G R" when the next two tokens complete a reference
func (p *CustomPDFParser) parseNumberOrRef(numToken Token) (PDFObject, error) {
	num, err := parseNumber(numToken)
	if err != nil {
		return nil, err
	}
	if !num.IsInt() || num.Int() < 0 {
		return num, nil
	}

	saved := p.lexer.Position()
	genToken, err := p.lexer.NextToken()
	if err == nil {
		if generation, ok := ParseInt(genToken); ok && generation >= 0 {
			if rTok, err := p.lexer.NextToken(); err == nil && rTok.Type == TokenIndirectRef {
				return NewRef(ObjectID{Number: num.Int(), Generation: generation}), nil
			}
		}
	}

	p.lexer.Seek(saved)
	return num, nil
}

// parseArray parses a PDF array object
func (p *CustomPDFParser) parseArray() (PDFObject, error) {
	array := &Array{Elements: make([]PDFObject, 0)}

	for {
		token, err := p.lexer.NextToken()
		if err != nil {
			return nil, err
		}
		if token.Type == TokenArrayEnd {
			return array, nil
		}

		obj, err := p.parseTokenAsObject(token)
		if err != nil {
			return nil, err
		}
		array.Add(obj)
	}
}

// parseDictionary parses a PDF dictionary object, and the stream body that may follow it
func (p *CustomPDFParser) parseDictionary() (PDFObject, error) {
	dict := NewDictionary()

	for {
		token, err := p.lexer.NextToken()
		if err != nil {
			return nil, err
		}
		if token.Type == TokenDictEnd {
			break
		}
		if token.Type != TokenName {
			return nil, lexError(token.Pos, "expected name for dictionary key, got %s", token.Type)
		}

		value, err := p.parseObject()
		if err != nil {
			return nil, err
		}
		// A null value is equivalent to an absent key
		if value.Type() != TypeNull {
			dict.Set(token.Value, value)
		}
	}

	return p.checkForStream(dict)
}

// checkForStream checks if a dictionary is followed by stream data
func (p *CustomPDFParser) checkForStream(dict *Dictionary) (PDFObject, error) {
	saved := p.lexer.Position()
	token, err := p.lexer.NextToken()
	if err != nil || token.Type != TokenStreamStart {
		p.lexer.Seek(saved)
		return dict, nil
	}

	p.lexer.SkipStreamEOL()
	start := p.lexer.Position()

	length, ok := p.streamLength(dict)
	var data []byte
	if ok && start+length <= int64(len(p.data)) {
		p.lexer.Seek(start + length)
		end, err := p.lexer.NextToken()
		if err == nil && end.Type == TokenStreamEnd {
			data = p.data[start : start+length]
		}
	}

	if data == nil {
		// /Length is missing or wrong; fall back to the endstream keyword
		p.lexer.Seek(start)
		end := p.lexer.IndexFrom([]byte(EndStreamKeyword))
		if end < 0 {
			return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidStream, "stream has no endstream").
				WithLocation(start, 0, 0)
		}
		data = bytes.TrimSuffix(p.data[start:end], []byte("\n"))
		data = bytes.TrimSuffix(data, []byte("\r"))
		p.lexer.Seek(end + int64(len(EndStreamKeyword)))
	}

	return &Stream{
		Dict:   dict,
		Data:   append([]byte(nil), data...),
		Offset: start,
	}, nil
}

// streamLength reads /Length, loading the object when it is an indirect reference
func (p *CustomPDFParser) streamLength(dict *Dictionary) (int64, bool) {
	switch v := dict.Get("Length").(type) {
	case *Number:
		return v.Int(), v.Int() >= 0
	case *IndirectRef:
		obj, err := p.loadObject(v.ObjectID.Number)
		if err != nil {
			return 0, false
		}
		if num, ok := obj.(*Number); ok && num.Int() >= 0 {
			return num.Int(), true
		}
	}
	return 0, false
}

// GetVersion returns the PDF version
func (p *CustomPDFParser) GetVersion() string {
	return p.version
}
