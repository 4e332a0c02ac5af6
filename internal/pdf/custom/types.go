package custom

import (
	"fmt"
	"strconv"
	"strings"
)

// ObjectType represents the type of a PDF object
type ObjectType int

const (
	TypeNull ObjectType = iota
	TypeBool
	TypeNumber
	TypeString
	TypeName
	TypeArray
	TypeDictionary
	TypeStream
	TypeIndirectRef
	TypeKeyword
)

func (t ObjectType) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeName:
		return "name"
	case TypeArray:
		return "array"
	case TypeDictionary:
		return "dictionary"
	case TypeStream:
		return "stream"
	case TypeIndirectRef:
		return "indirect_ref"
	case TypeKeyword:
		return "keyword"
	default:
		return "unknown"
	}
}

// PDFObject is the base interface for all PDF objects
type PDFObject interface {
	Type() ObjectType
	String() string
}

// ObjectID represents a PDF object identifier
type ObjectID struct {
	Number     int64 // Object number
	Generation int64 // Generation number
}

func (id ObjectID) String() string {
	return fmt.Sprintf("%d %d", id.Number, id.Generation)
}

func (id ObjectID) IsValid() bool {
	return id.Number > 0 && id.Generation >= 0
}

// Null represents a PDF null object
type Null struct{}

func (n *Null) Type() ObjectType { return TypeNull }
func (n *Null) String() string   { return "null" }

// Bool represents a PDF boolean object
type Bool struct {
	Value bool
}

func (b *Bool) Type() ObjectType { return TypeBool }
func (b *Bool) String() string {
	if b.Value {
		return "true"
	}
	return "false"
}

// Number represents a PDF numeric object (integer or real)
type Number struct {
	Value interface{} // int64 or float64
}

// NewInt returns an integer number object
func NewInt(v int64) *Number { return &Number{Value: v} }

// NewReal returns a real number object
func NewReal(v float64) *Number { return &Number{Value: v} }

func (n *Number) Type() ObjectType { return TypeNumber }
func (n *Number) String() string {
	switch v := n.Value.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return FormatReal(v)
	default:
		return "0"
	}
}

func (n *Number) Int() int64 {
	switch v := n.Value.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func (n *Number) Float() float64 {
	switch v := n.Value.(type) {
	case int64:
		return float64(v)
	case float64:
		return v
	default:
		return 0.0
	}
}

// IsInt reports whether the number was written without a fractional part
func (n *Number) IsInt() bool {
	_, ok := n.Value.(int64)
	return ok
}

// FormatReal writes a real with at most 4 decimals and no trailing zeros.
// PDF has no exponent syntax, so strconv's 'g' format cannot be used.
func FormatReal(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}

// String represents a PDF string object. Value holds the decoded bytes;
// IsHex only selects the serialized form.
type String struct {
	Value string
	IsHex bool
}

// NewLiteral returns a literal string object
func NewLiteral(v string) *String { return &String{Value: v} }

func (s *String) Type() ObjectType { return TypeString }
func (s *String) String() string {
	if s.IsHex {
		return fmt.Sprintf("<%X>", s.Value)
	}
	return "(" + EscapeLiteral(s.Value) + ")"
}

// Name represents a PDF name object
type Name struct {
	Value string
}

// NewName returns a name object
func NewName(v string) *Name { return &Name{Value: v} }

func (n *Name) Type() ObjectType { return TypeName }
func (n *Name) String() string   { return "/" + EscapeName(n.Value) }

// Array represents a PDF array object
type Array struct {
	Elements []PDFObject
}

// NewArray returns an array holding elems
func NewArray(elems ...PDFObject) *Array {
	return &Array{Elements: elems}
}

// NewRealArray returns an array of real numbers, the shape of rectangles and colors
func NewRealArray(values ...float64) *Array {
	arr := &Array{Elements: make([]PDFObject, len(values))}
	for i, v := range values {
		arr.Elements[i] = NewReal(v)
	}
	return arr
}

func (a *Array) Type() ObjectType { return TypeArray }
func (a *Array) String() string {
	var parts []string
	for _, elem := range a.Elements {
		parts = append(parts, elem.String())
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (a *Array) Len() int {
	return len(a.Elements)
}

func (a *Array) Get(index int) PDFObject {
	if index >= 0 && index < len(a.Elements) {
		return a.Elements[index]
	}
	return &Null{}
}

func (a *Array) Add(obj PDFObject) {
	a.Elements = append(a.Elements, obj)
}

// Floats returns the numeric elements as float64; ok is false if any element is not a number
func (a *Array) Floats() (values []float64, ok bool) {
	values = make([]float64, 0, len(a.Elements))
	for _, elem := range a.Elements {
		num, isNum := elem.(*Number)
		if !isNum {
			return nil, false
		}
		values = append(values, num.Float())
	}
	return values, true
}

// Dictionary represents a PDF dictionary object
type Dictionary struct {
	Keys   []Name // Maintains insertion order
	Values map[string]PDFObject
}

func NewDictionary() *Dictionary {
	return &Dictionary{
		Keys:   make([]Name, 0),
		Values: make(map[string]PDFObject),
	}
}

func (d *Dictionary) Type() ObjectType { return TypeDictionary }
func (d *Dictionary) String() string {
	var parts []string
	for _, key := range d.Keys {
		value := d.Values[key.Value]
		parts = append(parts, key.String()+" "+value.String())
	}
	return "<<" + strings.Join(parts, " ") + ">>"
}

func (d *Dictionary) Get(key string) PDFObject {
	if obj, exists := d.Values[key]; exists {
		return obj
	}
	return &Null{}
}

func (d *Dictionary) Set(key string, value PDFObject) {
	if _, exists := d.Values[key]; !exists {
		d.Keys = append(d.Keys, Name{Value: key})
	}
	d.Values[key] = value
}

func (d *Dictionary) Has(key string) bool {
	_, exists := d.Values[key]
	return exists
}

func (d *Dictionary) Remove(key string) {
	if _, exists := d.Values[key]; exists {
		delete(d.Values, key)
		for i, k := range d.Keys {
			if k.Value == key {
				d.Keys = append(d.Keys[:i], d.Keys[i+1:]...)
				break
			}
		}
	}
}

func (d *Dictionary) Len() int {
	return len(d.Keys)
}

// Convenience methods for common types
func (d *Dictionary) GetString(key string) string {
	if obj := d.Get(key); obj.Type() == TypeString {
		return obj.(*String).Value
	}
	return ""
}

func (d *Dictionary) GetInt(key string) int64 {
	if obj := d.Get(key); obj.Type() == TypeNumber {
		return obj.(*Number).Int()
	}
	return 0
}

func (d *Dictionary) GetFloat(key string) float64 {
	if obj := d.Get(key); obj.Type() == TypeNumber {
		return obj.(*Number).Float()
	}
	return 0.0
}

func (d *Dictionary) GetBool(key string) bool {
	if obj := d.Get(key); obj.Type() == TypeBool {
		return obj.(*Bool).Value
	}
	return false
}

func (d *Dictionary) GetName(key string) string {
	if obj := d.Get(key); obj.Type() == TypeName {
		return obj.(*Name).Value
	}
	return ""
}

func (d *Dictionary) GetArray(key string) *Array {
	if obj := d.Get(key); obj.Type() == TypeArray {
		return obj.(*Array)
	}
	return &Array{}
}

// GetRef returns the object ID stored under key, if the value is an indirect reference
func (d *Dictionary) GetRef(key string) (ObjectID, bool) {
	if ref, ok := d.Get(key).(*IndirectRef); ok {
		return ref.ObjectID, true
	}
	return ObjectID{}, false
}

// Stream represents a PDF stream object. Data holds the bytes as stored,
// still encoded with the filters named in the dictionary.
type Stream struct {
	Dict   *Dictionary
	Data   []byte
	Offset int64 // File offset where stream data starts
}

func (s *Stream) Type() ObjectType { return TypeStream }
func (s *Stream) String() string {
	return fmt.Sprintf("%s\nstream\n[%d bytes]\nendstream", s.Dict.String(), len(s.Data))
}

func (s *Stream) GetFilter() []string {
	filterObj := s.Dict.Get("Filter")
	if filterObj.Type() == TypeNull {
		return nil
	}

	var filters []string
	if filterObj.Type() == TypeName {
		filters = append(filters, filterObj.(*Name).Value)
	} else if filterObj.Type() == TypeArray {
		arr := filterObj.(*Array)
		for _, elem := range arr.Elements {
			if elem.Type() == TypeName {
				filters = append(filters, elem.(*Name).Value)
			}
		}
	}
	return filters
}

// IndirectRef represents an indirect object reference
type IndirectRef struct {
	ObjectID ObjectID
}

// NewRef returns a reference to id
func NewRef(id ObjectID) *IndirectRef { return &IndirectRef{ObjectID: id} }

func (r *IndirectRef) Type() ObjectType { return TypeIndirectRef }
func (r *IndirectRef) String() string   { return fmt.Sprintf("%s R", r.ObjectID.String()) }

// Keyword represents a PDF keyword/operator
type Keyword struct {
	Value string
}

func (k *Keyword) Type() ObjectType { return TypeKeyword }
func (k *Keyword) String() string   { return k.Value }

// Token represents a lexical token in PDF content
type Token struct {
	Type  TokenType
	Value string
	Pos   int64 // Position in input
}

// TokenType represents the type of a lexical token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenString
	TokenHexString
	TokenName
	TokenKeyword
	TokenArrayStart  // [
	TokenArrayEnd    // ]
	TokenDictStart   // <<
	TokenDictEnd     // >>
	TokenStreamStart // stream
	TokenStreamEnd   // endstream
	TokenObjStart    // obj
	TokenObjEnd      // endobj
	TokenIndirectRef // R
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenNumber:
		return "NUMBER"
	case TokenString:
		return "STRING"
	case TokenHexString:
		return "HEXSTRING"
	case TokenName:
		return "NAME"
	case TokenKeyword:
		return "KEYWORD"
	case TokenArrayStart:
		return "ARRAY_START"
	case TokenArrayEnd:
		return "ARRAY_END"
	case TokenDictStart:
		return "DICT_START"
	case TokenDictEnd:
		return "DICT_END"
	case TokenStreamStart:
		return "STREAM_START"
	case TokenStreamEnd:
		return "STREAM_END"
	case TokenObjStart:
		return "OBJ_START"
	case TokenObjEnd:
		return "OBJ_END"
	case TokenIndirectRef:
		return "INDIRECT_REF"
	default:
		return "UNKNOWN"
	}
}

// Constants for PDF parsing
const (
	PDFHeaderPattern = "%PDF-"
	PDFVersion17     = "1.7"

	ObjKeyword       = "obj"
	EndObjKeyword    = "endobj"
	StreamKeyword    = "stream"
	EndStreamKeyword = "endstream"
	XRefKeyword      = "xref"
	TrailerKeyword   = "trailer"
	StartXRefKeyword = "startxref"

	// PDF whitespace characters
	NullChar           = '\000'
	TabChar            = '\t'
	LineFeedChar       = '\n'
	FormFeedChar       = '\f'
	CarriageReturnChar = '\r'
	SpaceChar          = ' '

	// PDF delimiters
	LeftParen   = '('
	RightParen  = ')'
	LeftAngle   = '<'
	RightAngle  = '>'
	LeftSquare  = '['
	RightSquare = ']'
	LeftCurly   = '{'
	RightCurly  = '}'
	Solidus     = '/'
	PercentSign = '%'
)

// IsWhitespace checks if a character is PDF whitespace
func IsWhitespace(ch byte) bool {
	return ch == NullChar || ch == TabChar || ch == LineFeedChar ||
		ch == FormFeedChar || ch == CarriageReturnChar || ch == SpaceChar
}

// IsDelimiter checks if a character is a PDF delimiter
func IsDelimiter(ch byte) bool {
	return ch == LeftParen || ch == RightParen || ch == LeftAngle || ch == RightAngle ||
		ch == LeftSquare || ch == RightSquare || ch == LeftCurly || ch == RightCurly ||
		ch == Solidus || ch == PercentSign
}

// IsRegular checks if a character is a regular character (not whitespace or delimiter)
func IsRegular(ch byte) bool {
	return !IsWhitespace(ch) && !IsDelimiter(ch)
}
