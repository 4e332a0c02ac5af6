package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestPDFError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *PDFError
		contains []string
		excludes []string
	}{
		{
			name:     "message only",
			err:      NewPDFError(ErrorTypeMalformedObject, "bad dictionary"),
			contains: []string{"[MALFORMED_OBJECT]", "bad dictionary"},
			excludes: []string{"document", "page", "offset"},
		},
		{
			name:     "with location",
			err:      NewPDFErrorWithLocation(ErrorTypeCorruptedXRef, "bad entry", 120, 7, 0),
			contains: []string{"object 7 0", "offset 120"},
		},
		{
			name:     "with document and page",
			err:      NewPDFError(ErrorTypeInvalidPage, "page out of range").WithDocument(1).WithPage(4),
			contains: []string{"document 1", "page 4"},
		},
		{
			name:     "with context and cause",
			err:      NewPDFErrorWithContext(ErrorTypeInvalidStream, "decode failed", "FlateDecode").WithCause(fmt.Errorf("unexpected EOF")),
			contains: []string{": FlateDecode", ": unexpected EOF"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(msg, want) {
					t.Errorf("Error() = %q, missing %q", msg, want)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(msg, unwanted) {
					t.Errorf("Error() = %q, should not contain %q", msg, unwanted)
				}
			}
		})
	}
}

func TestCategories(t *testing.T) {
	tests := []struct {
		errType     ErrorType
		category    Category
		recoverable bool
	}{
		{ErrorTypeInvalidHeader, CategoryStructural, false},
		{ErrorTypeCorruptedXRef, CategoryStructural, false},
		{ErrorTypeCircularReference, CategoryStructural, false},
		{ErrorTypeMissingObject, CategoryReference, true},
		{ErrorTypeInvalidPage, CategoryReference, true},
		{ErrorTypeIdentifierSpaceExhausted, CategoryIdentifierSpace, false},
		{ErrorTypeInvalidState, CategoryState, true},
		{ErrorTypeInvalidEncoding, CategoryEncoding, true},
		{ErrorTypeUnknown, CategoryUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.errType.String(), func(t *testing.T) {
			err := NewPDFError(tt.errType, "test")
			if got := err.Category(); got != tt.category {
				t.Errorf("Category() = %v, want %v", got, tt.category)
			}
			if err.Recoverable != tt.recoverable {
				t.Errorf("Recoverable = %v, want %v", err.Recoverable, tt.recoverable)
			}
		})
	}

	if CategoryStructural.String() != "StructuralParseError" {
		t.Errorf("unexpected category name %q", CategoryStructural.String())
	}
}

func TestCategoryHelpers(t *testing.T) {
	wrapped := fmt.Errorf("loading input: %w", NewPDFError(ErrorTypeCorruptedXRef, "no startxref"))

	if !IsStructural(wrapped) {
		t.Error("IsStructural should see through fmt.Errorf wrapping")
	}
	if IsReference(wrapped) {
		t.Error("IsReference should be false for a structural error")
	}
	if CategoryOf(stderrors.New("plain")) != CategoryUnknown {
		t.Error("plain errors should have unknown category")
	}
	if !IsState(NewPDFError(ErrorTypeInvalidState, "nothing to undo")) {
		t.Error("IsState should be true")
	}
	if !IsEncoding(NewPDFError(ErrorTypeInvalidEncoding, "glyph")) {
		t.Error("IsEncoding should be true")
	}
	if !IsIdentifierSpaceExhausted(NewPDFError(ErrorTypeIdentifierSpaceExhausted, "too many")) {
		t.Error("IsIdentifierSpaceExhausted should be true")
	}
}

func TestIs(t *testing.T) {
	sentinel := NewPDFError(ErrorTypeInvalidState, "nothing to undo")
	err := fmt.Errorf("undo: %w", NewPDFError(ErrorTypeInvalidState, "nothing to undo"))

	if !stderrors.Is(err, sentinel) {
		t.Error("errors.Is should match same type and message")
	}
	if stderrors.Is(err, NewPDFError(ErrorTypeInvalidState, "nothing to redo")) {
		t.Error("errors.Is should not match a different message")
	}
	if !stderrors.Is(err, &PDFError{Type: ErrorTypeInvalidState}) {
		t.Error("errors.Is should match on type when the target has no message")
	}
}

func TestWrapError(t *testing.T) {
	cause := stderrors.New("disk full")
	wrapped := WrapError(ErrorTypeUnknown, cause)
	if !stderrors.Is(wrapped, cause) {
		t.Error("wrapped error should unwrap to its cause")
	}

	original := NewPDFError(ErrorTypeInvalidPage, "page 9")
	if got := WrapError(ErrorTypeUnknown, fmt.Errorf("ctx: %w", original)); got != original {
		t.Error("WrapError should return an existing PDFError unchanged")
	}
}

func TestErrorCollection(t *testing.T) {
	ec := NewErrorCollection("input.pdf")
	if ec.HasErrors() || ec.First() != nil {
		t.Fatal("new collection should be empty")
	}
	if ec.Summary() != "No errors or warnings" {
		t.Errorf("unexpected summary %q", ec.Summary())
	}

	ec.Add(NewPDFError(ErrorTypeInvalidState, "nothing to redo"))
	ec.Add(NewPDFError(ErrorTypeCorruptedXRef, "bad table"))

	errCount, warnCount := ec.Count()
	if errCount != 1 || warnCount != 1 {
		t.Errorf("Count() = (%d, %d), want (1, 1)", errCount, warnCount)
	}
	if !ec.HasCriticalErrors() {
		t.Error("expected critical errors")
	}
	if ec.Errors[0].FilePath != "input.pdf" {
		t.Errorf("FilePath = %q, want input.pdf", ec.Errors[0].FilePath)
	}
	if !strings.Contains(ec.Summary(), "critical") {
		t.Errorf("summary %q should mention critical errors", ec.Summary())
	}
}
