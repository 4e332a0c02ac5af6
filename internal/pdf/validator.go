package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Validator checks produced or loaded documents with readers independent of
// the editing engine: pdfcpu for structure, ledongthuc/pdf for text.
type Validator struct {
	maxFileSize int64
}

// VerifyResult is the outcome of an independent validation
type VerifyResult struct {
	Valid   bool     `json:"valid"`
	Pages   int      `json:"pages"`
	Size    int64    `json:"size"`
	Message string   `json:"message,omitempty"`
	Texts   []string `json:"-"`
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// Verify validates data. A document that fails validation is reported in the
// result; the error is reserved for input that cannot be checked at all.
func (v *Validator) Verify(data []byte) (*VerifyResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("document is empty")
	}
	if int64(len(data)) > v.maxFileSize {
		return nil, fmt.Errorf("document too large: %d bytes (max: %d bytes)", len(data), v.maxFileSize)
	}

	result := &VerifyResult{Size: int64(len(data))}

	pages, err := validatedPageCount(data)
	if err != nil {
		result.Message = fmt.Sprintf("structure: %v", err)
		return result, nil
	}
	result.Pages = pages

	texts, err := pageTexts(data)
	if err != nil {
		result.Message = fmt.Sprintf("text: %v", err)
		return result, nil
	}
	if len(texts) != pages {
		result.Message = fmt.Sprintf("readers disagree on page count: %d and %d", pages, len(texts))
		return result, nil
	}
	result.Texts = texts
	result.Valid = true
	return result, nil
}

// ContainsText reports whether any page of a valid document contains needle
func (v *Validator) ContainsText(data []byte, needle string) (bool, error) {
	result, err := v.Verify(data)
	if err != nil {
		return false, err
	}
	if !result.Valid {
		return false, fmt.Errorf("invalid PDF: %s", result.Message)
	}
	for _, text := range result.Texts {
		if strings.Contains(text, needle) {
			return true, nil
		}
	}
	return false, nil
}

// validatedPageCount runs pdfcpu's relaxed validation
func validatedPageCount(data []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during validation: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return 0, err
	}
	return ctx.PageCount, nil
}

// pageTexts extracts the plain text of every page
func pageTexts(data []byte) (texts []string, err error) {
	// Add panic recovery for malformed content streams
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during text extraction: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	texts = make([]string, reader.NumPage())
	for i := range texts {
		page := reader.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", i+1, err)
		}
		texts[i] = text
	}
	return texts, nil
}
