package custom

import (
	"bytes"
	"strconv"

	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
)

// PDFLexer tokenizes PDF syntax held in memory. Working over a byte slice
// gives the parser random access for xref offsets and stream bodies.
type PDFLexer struct {
	data []byte
	pos  int
}

// NewPDFLexer creates a new PDF lexer positioned at offset
func NewPDFLexer(data []byte, offset int64) *PDFLexer {
	return &PDFLexer{data: data, pos: int(offset)}
}

// Position returns the current offset into the input
func (l *PDFLexer) Position() int64 {
	return int64(l.pos)
}

// Seek moves the lexer to offset
func (l *PDFLexer) Seek(offset int64) {
	l.pos = int(offset)
}

// HasNext returns true if there are more characters to read
func (l *PDFLexer) HasNext() bool {
	return l.pos < len(l.data)
}

// skipWhitespaceAndComments skips whitespace and % comments
func (l *PDFLexer) skipWhitespaceAndComments() {
	for l.pos < len(l.data) {
		ch := l.data[l.pos]
		switch {
		case IsWhitespace(ch):
			l.pos++
		case ch == PercentSign:
			for l.pos < len(l.data) && l.data[l.pos] != LineFeedChar && l.data[l.pos] != CarriageReturnChar {
				l.pos++
			}
		default:
			return
		}
	}
}

// NextToken returns the next token from the input
func (l *PDFLexer) NextToken() (Token, error) {
	l.skipWhitespaceAndComments()
	if l.pos >= len(l.data) {
		return Token{Type: TokenEOF, Pos: int64(l.pos)}, nil
	}

	start := int64(l.pos)
	ch := l.data[l.pos]

	switch ch {
	case LeftParen:
		return l.readLiteralString()
	case LeftAngle:
		if l.peekAt(1) == LeftAngle {
			l.pos += 2
			return Token{Type: TokenDictStart, Value: "<<", Pos: start}, nil
		}
		return l.readHexString()
	case RightAngle:
		if l.peekAt(1) == RightAngle {
			l.pos += 2
			return Token{Type: TokenDictEnd, Value: ">>", Pos: start}, nil
		}
		return Token{}, lexError(start, "unexpected '>'")
	case LeftSquare:
		l.pos++
		return Token{Type: TokenArrayStart, Value: "[", Pos: start}, nil
	case RightSquare:
		l.pos++
		return Token{Type: TokenArrayEnd, Value: "]", Pos: start}, nil
	case Solidus:
		return l.readName()
	case RightParen, LeftCurly, RightCurly:
		l.pos++
		return Token{Type: TokenKeyword, Value: string(ch), Pos: start}, nil
	default:
		if isDigit(ch) || ch == '+' || ch == '-' || ch == '.' {
			return l.readNumber()
		}
		return l.readKeyword()
	}
}

func (l *PDFLexer) peekAt(n int) byte {
	if l.pos+n < len(l.data) {
		return l.data[l.pos+n]
	}
	return 0
}

// readLiteralString reads a literal string enclosed in parentheses
func (l *PDFLexer) readLiteralString() (Token, error) {
	start := int64(l.pos)
	var buffer bytes.Buffer

	l.pos++ // Skip opening parenthesis
	depth := 1

	for l.pos < len(l.data) {
		ch := l.data[l.pos]
		l.pos++

		switch ch {
		case LeftParen:
			depth++
			buffer.WriteByte(ch)
		case RightParen:
			depth--
			if depth == 0 {
				return Token{Type: TokenString, Value: buffer.String(), Pos: start}, nil
			}
			buffer.WriteByte(ch)
		case CarriageReturnChar:
			// An unescaped EOL of any form reads as a single LF
			if l.pos < len(l.data) && l.data[l.pos] == LineFeedChar {
				l.pos++
			}
			buffer.WriteByte(LineFeedChar)
		case '\\':
			if l.pos >= len(l.data) {
				break
			}
			esc := l.data[l.pos]
			l.pos++
			switch esc {
			case 'n':
				buffer.WriteByte('\n')
			case 'r':
				buffer.WriteByte('\r')
			case 't':
				buffer.WriteByte('\t')
			case 'b':
				buffer.WriteByte('\b')
			case 'f':
				buffer.WriteByte('\f')
			case '(', ')', '\\':
				buffer.WriteByte(esc)
			case LineFeedChar:
				// Line continuation
			case CarriageReturnChar:
				if l.pos < len(l.data) && l.data[l.pos] == LineFeedChar {
					l.pos++
				}
			default:
				if esc >= '0' && esc <= '7' {
					val := int(esc - '0')
					for i := 0; i < 2 && l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '7'; i++ {
						val = val*8 + int(l.data[l.pos]-'0')
						l.pos++
					}
					buffer.WriteByte(byte(val))
				} else {
					// Unknown escapes drop the backslash
					buffer.WriteByte(esc)
				}
			}
		default:
			buffer.WriteByte(ch)
		}
	}

	return Token{}, lexError(start, "unterminated literal string")
}

// readHexString reads a hexadecimal string enclosed in angle brackets and decodes it
func (l *PDFLexer) readHexString() (Token, error) {
	start := int64(l.pos)
	var buffer bytes.Buffer

	l.pos++ // Skip opening angle bracket

	var hi byte
	odd := false
	for l.pos < len(l.data) {
		ch := l.data[l.pos]
		l.pos++
		if ch == RightAngle {
			if odd {
				// A missing final digit is taken as 0
				buffer.WriteByte(hi << 4)
			}
			return Token{Type: TokenHexString, Value: buffer.String(), Pos: start}, nil
		}
		if IsWhitespace(ch) {
			continue
		}
		v, ok := hexValue(ch)
		if !ok {
			return Token{}, lexError(int64(l.pos-1), "invalid hex digit %q in hex string", ch)
		}
		if odd {
			buffer.WriteByte(hi<<4 | v)
		} else {
			hi = v
		}
		odd = !odd
	}

	return Token{}, lexError(start, "unterminated hex string")
}

// readName reads a name object starting with /
func (l *PDFLexer) readName() (Token, error) {
	start := int64(l.pos)
	var buffer bytes.Buffer

	l.pos++ // Skip the solidus

	for l.pos < len(l.data) && IsRegular(l.data[l.pos]) {
		ch := l.data[l.pos]
		if ch == '#' && l.pos+2 < len(l.data) {
			h1, ok1 := hexValue(l.data[l.pos+1])
			h2, ok2 := hexValue(l.data[l.pos+2])
			if ok1 && ok2 {
				buffer.WriteByte(h1<<4 | h2)
				l.pos += 3
				continue
			}
		}
		buffer.WriteByte(ch)
		l.pos++
	}

	return Token{Type: TokenName, Value: buffer.String(), Pos: start}, nil
}

// readNumber reads a numeric value (integer or real)
func (l *PDFLexer) readNumber() (Token, error) {
	start := l.pos

	if l.data[l.pos] == '+' || l.data[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.data) && isDigit(l.data[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.data) && l.data[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.data) && isDigit(l.data[l.pos]) {
			l.pos++
		}
	}

	return Token{Type: TokenNumber, Value: string(l.data[start:l.pos]), Pos: int64(start)}, nil
}

// readKeyword reads a keyword or identifier
func (l *PDFLexer) readKeyword() (Token, error) {
	start := l.pos
	for l.pos < len(l.data) && IsRegular(l.data[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		l.pos++
		return Token{}, lexError(int64(start), "unexpected character %q", l.data[start])
	}

	keyword := string(l.data[start:l.pos])
	tok := Token{Type: TokenKeyword, Value: keyword, Pos: int64(start)}

	switch keyword {
	case "R":
		tok.Type = TokenIndirectRef
	case ObjKeyword:
		tok.Type = TokenObjStart
	case EndObjKeyword:
		tok.Type = TokenObjEnd
	case StreamKeyword:
		tok.Type = TokenStreamStart
	case EndStreamKeyword:
		tok.Type = TokenStreamEnd
	}
	return tok, nil
}

// ReadBytes returns the next n bytes and advances past them
func (l *PDFLexer) ReadBytes(n int) ([]byte, error) {
	if n < 0 || l.pos+n > len(l.data) {
		return nil, lexError(int64(l.pos), "need %d bytes, %d available", n, len(l.data)-l.pos)
	}
	b := l.data[l.pos : l.pos+n]
	l.pos += n
	return b, nil
}

// SkipStreamEOL skips the single EOL that must follow the stream keyword
func (l *PDFLexer) SkipStreamEOL() {
	if l.pos < len(l.data) && l.data[l.pos] == CarriageReturnChar {
		l.pos++
	}
	if l.pos < len(l.data) && l.data[l.pos] == LineFeedChar {
		l.pos++
	}
}

// IndexFrom returns the offset of the next occurrence of needle at or after the current position
func (l *PDFLexer) IndexFrom(needle []byte) int64 {
	idx := bytes.Index(l.data[l.pos:], needle)
	if idx < 0 {
		return -1
	}
	return int64(l.pos + idx)
}

// ParseInt parses an integer token value
func ParseInt(tok Token) (int64, bool) {
	if tok.Type != TokenNumber {
		return 0, false
	}
	v, err := strconv.ParseInt(tok.Value, 10, 64)
	return v, err == nil
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func hexValue(ch byte) (byte, bool) {
	switch {
	case ch >= '0' && ch <= '9':
		return ch - '0', true
	case ch >= 'a' && ch <= 'f':
		return ch - 'a' + 10, true
	case ch >= 'A' && ch <= 'F':
		return ch - 'A' + 10, true
	}
	return 0, false
}

func lexError(pos int64, format string, args ...any) error {
	e := pdferrors.NewPDFErrorf(pdferrors.ErrorTypeMalformedObject, format, args...)
	e.Offset = pos
	return e
}
