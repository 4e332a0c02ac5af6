package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// PDFError represents a PDF processing error with enough context to render an actionable message
type PDFError struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	Context     string    `json:"context,omitempty"`
	Offset      int64     `json:"offset,omitempty"`
	ObjectNum   int64     `json:"object_num,omitempty"`
	GenNum      int64     `json:"generation_num,omitempty"`
	PageNumber  int       `json:"page_number,omitempty"`
	DocIndex    int       `json:"doc_index"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
	FilePath    string    `json:"file_path,omitempty"`
	Err         error     `json:"-"`
}

// ErrorType represents different categories of PDF errors
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeInvalidHeader
	ErrorTypeCorruptedXRef
	ErrorTypeMalformedObject
	ErrorTypeInvalidStream
	ErrorTypeMissingObject
	ErrorTypeCircularReference
	ErrorTypeInvalidEncoding
	ErrorTypeUnsupportedFeature
	ErrorTypeInvalidFilter
	ErrorTypeInvalidStructure
	ErrorTypeInvalidPage
	ErrorTypeInvalidOperation
	ErrorTypeIdentifierSpaceExhausted
	ErrorTypeInvalidState
)

// Category groups error types into the handling classes callers act on
type Category int

const (
	CategoryUnknown Category = iota
	CategoryStructural
	CategoryReference
	CategoryIdentifierSpace
	CategoryState
	CategoryEncoding
)

func (c Category) String() string {
	switch c {
	case CategoryStructural:
		return "StructuralParseError"
	case CategoryReference:
		return "ReferenceError"
	case CategoryIdentifierSpace:
		return "IdentifierSpaceExhausted"
	case CategoryState:
		return "StateError"
	case CategoryEncoding:
		return "EncodingError"
	default:
		return "UnknownError"
	}
}

// ErrorSeverity indicates how critical an error is
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
	SeverityFatal
)

// Error implements the error interface
func (e *PDFError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Type.String(), e.Message)

	var loc []string
	if e.DocIndex >= 0 {
		loc = append(loc, fmt.Sprintf("document %d", e.DocIndex))
	}
	if e.PageNumber > 0 {
		loc = append(loc, fmt.Sprintf("page %d", e.PageNumber))
	}
	if e.ObjectNum > 0 {
		loc = append(loc, fmt.Sprintf("object %d %d", e.ObjectNum, e.GenNum))
	}
	if e.Offset > 0 {
		loc = append(loc, fmt.Sprintf("offset %d", e.Offset))
	}
	if len(loc) > 0 {
		b.WriteString(" (" + strings.Join(loc, ", ") + ")")
	}
	if e.Context != "" {
		b.WriteString(": " + e.Context)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any
func (e *PDFError) Unwrap() error {
	return e.Err
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeInvalidHeader:
		return "INVALID_HEADER"
	case ErrorTypeCorruptedXRef:
		return "CORRUPTED_XREF"
	case ErrorTypeMalformedObject:
		return "MALFORMED_OBJECT"
	case ErrorTypeInvalidStream:
		return "INVALID_STREAM"
	case ErrorTypeMissingObject:
		return "MISSING_OBJECT"
	case ErrorTypeCircularReference:
		return "CIRCULAR_REFERENCE"
	case ErrorTypeInvalidEncoding:
		return "INVALID_ENCODING"
	case ErrorTypeUnsupportedFeature:
		return "UNSUPPORTED_FEATURE"
	case ErrorTypeInvalidFilter:
		return "INVALID_FILTER"
	case ErrorTypeInvalidStructure:
		return "INVALID_STRUCTURE"
	case ErrorTypeInvalidPage:
		return "INVALID_PAGE"
	case ErrorTypeInvalidOperation:
		return "INVALID_OPERATION"
	case ErrorTypeIdentifierSpaceExhausted:
		return "IDENTIFIER_SPACE_EXHAUSTED"
	case ErrorTypeInvalidState:
		return "INVALID_STATE"
	default:
		return "UNKNOWN"
	}
}

// Category returns the handling class for the error type
func (et ErrorType) Category() Category {
	switch et {
	case ErrorTypeInvalidHeader, ErrorTypeCorruptedXRef, ErrorTypeMalformedObject,
		ErrorTypeInvalidStream, ErrorTypeCircularReference, ErrorTypeInvalidStructure,
		ErrorTypeUnsupportedFeature, ErrorTypeInvalidFilter:
		return CategoryStructural
	case ErrorTypeMissingObject, ErrorTypeInvalidPage, ErrorTypeInvalidOperation:
		return CategoryReference
	case ErrorTypeIdentifierSpaceExhausted:
		return CategoryIdentifierSpace
	case ErrorTypeInvalidState:
		return CategoryState
	case ErrorTypeInvalidEncoding:
		return CategoryEncoding
	default:
		return CategoryUnknown
	}
}

// GetSeverity returns the severity level for a given error type
func (et ErrorType) GetSeverity() ErrorSeverity {
	switch et.Category() {
	case CategoryStructural, CategoryIdentifierSpace:
		return SeverityCritical
	case CategoryReference, CategoryEncoding:
		return SeverityError
	case CategoryState:
		return SeverityInfo
	default:
		return SeverityError
	}
}

// IsRecoverable reports whether the caller can continue using its in-memory state after the error
func (et ErrorType) IsRecoverable() bool {
	switch et.Category() {
	case CategoryReference, CategoryState, CategoryEncoding:
		return true // Rejected at the boundary, nothing was changed
	default:
		return false
	}
}

// NewPDFError creates a new PDFError
func NewPDFError(errorType ErrorType, message string) *PDFError {
	return &PDFError{
		Type:        errorType,
		Message:     message,
		DocIndex:    -1,
		Recoverable: errorType.IsRecoverable(),
		Timestamp:   time.Now(),
	}
}

// NewPDFErrorf creates a new PDFError with a formatted message
func NewPDFErrorf(errorType ErrorType, format string, args ...any) *PDFError {
	return NewPDFError(errorType, fmt.Sprintf(format, args...))
}

// NewPDFErrorWithContext creates a new PDFError with additional context
func NewPDFErrorWithContext(errorType ErrorType, message, context string) *PDFError {
	e := NewPDFError(errorType, message)
	e.Context = context
	return e
}

// NewPDFErrorWithLocation creates a new PDFError with file location information
func NewPDFErrorWithLocation(errorType ErrorType, message string, offset int64, objNum, genNum int64) *PDFError {
	e := NewPDFError(errorType, message)
	e.Offset = offset
	e.ObjectNum = objNum
	e.GenNum = genNum
	return e
}

// WrapError wraps a standard error as a PDFError. An existing PDFError is returned unchanged.
func WrapError(errorType ErrorType, err error) *PDFError {
	var pe *PDFError
	if stderrors.As(err, &pe) {
		return pe
	}
	e := NewPDFError(errorType, err.Error())
	e.Err = err
	return e
}

// WithContext adds context to an existing PDFError
func (e *PDFError) WithContext(context string) *PDFError {
	e.Context = context
	return e
}

// WithLocation adds location information to an existing PDFError
func (e *PDFError) WithLocation(offset int64, objNum, genNum int64) *PDFError {
	e.Offset = offset
	e.ObjectNum = objNum
	e.GenNum = genNum
	return e
}

// WithObject adds an object identifier to an existing PDFError
func (e *PDFError) WithObject(objNum, genNum int64) *PDFError {
	e.ObjectNum = objNum
	e.GenNum = genNum
	return e
}

// WithFile adds file path information to an existing PDFError
func (e *PDFError) WithFile(filePath string) *PDFError {
	e.FilePath = filePath
	return e
}

// WithPage adds page number information to an existing PDFError
func (e *PDFError) WithPage(pageNumber int) *PDFError {
	e.PageNumber = pageNumber
	return e
}

// WithDocument records which input document of a multi-document request failed
func (e *PDFError) WithDocument(index int) *PDFError {
	e.DocIndex = index
	return e
}

// WithCause attaches the underlying error
func (e *PDFError) WithCause(err error) *PDFError {
	e.Err = err
	return e
}

// GetSeverity returns the severity of this specific error
func (e *PDFError) GetSeverity() ErrorSeverity {
	return e.Type.GetSeverity()
}

// Category returns the handling class of this error
func (e *PDFError) Category() Category {
	return e.Type.Category()
}

// IsCritical returns true if this error is critical or fatal
func (e *PDFError) IsCritical() bool {
	severity := e.GetSeverity()
	return severity == SeverityCritical || severity == SeverityFatal
}

// Is matches another PDFError of the same type, so sentinel values work with errors.Is
func (e *PDFError) Is(target error) bool {
	t, ok := target.(*PDFError)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Message == "" || t.Message == e.Message)
}

// CategoryOf returns the category of err, or CategoryUnknown if err is not a PDFError
func CategoryOf(err error) Category {
	var pe *PDFError
	if stderrors.As(err, &pe) {
		return pe.Category()
	}
	return CategoryUnknown
}

// IsStructural reports whether err is a StructuralParseError
func IsStructural(err error) bool { return CategoryOf(err) == CategoryStructural }

// IsReference reports whether err is a ReferenceError
func IsReference(err error) bool { return CategoryOf(err) == CategoryReference }

// IsIdentifierSpaceExhausted reports whether err signals identifier space exhaustion
func IsIdentifierSpaceExhausted(err error) bool { return CategoryOf(err) == CategoryIdentifierSpace }

// IsState reports whether err is a non-fatal StateError
func IsState(err error) bool { return CategoryOf(err) == CategoryState }

// IsEncoding reports whether err is an EncodingError
func IsEncoding(err error) bool { return CategoryOf(err) == CategoryEncoding }

// ErrorCollection manages multiple PDF errors
type ErrorCollection struct {
	Errors   []*PDFError `json:"errors"`
	Warnings []*PDFError `json:"warnings"`
	FilePath string      `json:"file_path,omitempty"`
}

// NewErrorCollection creates a new error collection
func NewErrorCollection(filePath string) *ErrorCollection {
	return &ErrorCollection{
		Errors:   make([]*PDFError, 0),
		Warnings: make([]*PDFError, 0),
		FilePath: filePath,
	}
}

// Add adds an error to the appropriate collection based on severity
func (ec *ErrorCollection) Add(err *PDFError) {
	if err.FilePath == "" && ec.FilePath != "" {
		err.FilePath = ec.FilePath
	}

	severity := err.GetSeverity()
	if severity == SeverityWarning || severity == SeverityInfo {
		ec.Warnings = append(ec.Warnings, err)
	} else {
		ec.Errors = append(ec.Errors, err)
	}
}

// HasErrors returns true if any non-warning errors were collected
func (ec *ErrorCollection) HasErrors() bool {
	return len(ec.Errors) > 0
}

// HasCriticalErrors returns true if any critical errors exist
func (ec *ErrorCollection) HasCriticalErrors() bool {
	for _, err := range ec.Errors {
		if err.IsCritical() {
			return true
		}
	}
	return false
}

// Count returns the total number of errors and warnings
func (ec *ErrorCollection) Count() (errors, warnings int) {
	return len(ec.Errors), len(ec.Warnings)
}

// First returns the first collected error, or nil
func (ec *ErrorCollection) First() error {
	if len(ec.Errors) == 0 {
		return nil
	}
	return ec.Errors[0]
}

// Summary returns a text summary of all errors and warnings
func (ec *ErrorCollection) Summary() string {
	errorCount, warningCount := ec.Count()
	if errorCount == 0 && warningCount == 0 {
		return "No errors or warnings"
	}

	summary := fmt.Sprintf("Found %d error(s) and %d warning(s)", errorCount, warningCount)

	if ec.HasCriticalErrors() {
		summary += " (including critical errors)"
	}

	return summary
}
