// Package pagerange parses page selections such as "1-3,5,8-10".
package pagerange

import (
	"strconv"
	"strings"

	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
)

// PageRange is an inclusive run of 1-based page numbers. Start may be
// greater than End, in which case the run is descending.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether page lies within the range
func (r PageRange) Contains(page int) bool {
	lo, hi := r.Start, r.End
	if lo > hi {
		lo, hi = hi, lo
	}
	return page >= lo && page <= hi
}

// Count returns the number of pages in the range
func (r PageRange) Count() int {
	if r.Start > r.End {
		return r.Start - r.End + 1
	}
	return r.End - r.Start + 1
}

// Pages expands the range in its own direction
func (r PageRange) Pages() []int {
	pages := make([]int, 0, r.Count())
	step := 1
	if r.Start > r.End {
		step = -1
	}
	for p := r.Start; ; p += step {
		pages = append(pages, p)
		if p == r.End {
			break
		}
	}
	return pages
}

func (r PageRange) String() string {
	if r.Start == r.End {
		return strconv.Itoa(r.Start)
	}
	return strconv.Itoa(r.Start) + "-" + strconv.Itoa(r.End)
}

// Parse splits a comma separated selection into ranges without checking
// them against a document.
func Parse(expr string) ([]PageRange, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, invalid(expr, "empty page selection")
	}

	parts := strings.Split(expr, ",")
	ranges := make([]PageRange, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, invalid(expr, "empty element in page selection")
		}

		startText, endText, isRange := strings.Cut(part, "-")
		start, err := parsePage(expr, startText)
		if err != nil {
			return nil, err
		}
		end := start
		if isRange {
			if end, err = parsePage(expr, endText); err != nil {
				return nil, err
			}
		}
		ranges = append(ranges, PageRange{Start: start, End: end})
	}
	return ranges, nil
}

// ParseRange expands expr into the list of 1-based pages it selects, in
// the order written. Duplicates are kept. Every page must lie within
// 1..pageCount; nothing is clamped.
func ParseRange(expr string, pageCount int) ([]int, error) {
	ranges, err := Parse(expr)
	if err != nil {
		return nil, err
	}

	var pages []int
	for _, r := range ranges {
		for _, p := range []int{r.Start, r.End} {
			if p > pageCount {
				return nil, pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidPage,
					"page %d out of range (document has %d pages)", p, pageCount).
					WithContext("selection " + strconv.Quote(expr)).WithPage(p)
			}
		}
		pages = append(pages, r.Pages()...)
	}
	return pages, nil
}

func parsePage(expr, text string) (int, error) {
	text = strings.TrimSpace(text)
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, invalid(expr, "invalid page number %q", text)
	}
	if n < 1 {
		return 0, invalid(expr, "page numbers start at 1, got %d", n)
	}
	return n, nil
}

func invalid(expr, format string, args ...any) error {
	return pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidPage, format, args...).WithContext("selection " + strconv.Quote(expr))
}
