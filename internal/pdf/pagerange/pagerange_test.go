package pagerange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		name      string
		expr      string
		pageCount int
		want      []int
	}{
		{"single page", "4", 10, []int{4}},
		{"mixed", "1-3,5,8-10", 10, []int{1, 2, 3, 5, 8, 9, 10}},
		{"descending", "5-3", 10, []int{5, 4, 3}},
		{"order preserved", "9,2,4-5", 10, []int{9, 2, 4, 5}},
		{"duplicates kept", "2,2,1-2", 10, []int{2, 2, 1, 2}},
		{"whitespace", " 1 - 2 , 4 ", 4, []int{1, 2, 4}},
		{"degenerate range", "3-3", 3, []int{3}},
		{"last page", "10", 10, []int{10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRange(tt.expr, tt.pageCount)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRange_Errors(t *testing.T) {
	tests := []struct {
		name      string
		expr      string
		pageCount int
		page      int
	}{
		{"empty", "", 10, 0},
		{"blank", "   ", 10, 0},
		{"zero", "0", 10, 0},
		{"past end", "11", 10, 11},
		{"range past end", "8-12", 10, 12},
		{"descending past end", "12-8", 10, 12},
		{"trailing comma", "1,", 10, 0},
		{"letters", "a-b", 10, 0},
		{"open range", "3-", 10, 0},
		{"negative", "-2", 10, 0},
		{"double dash", "1-2-3", 10, 0},
		{"empty document", "1", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRange(tt.expr, tt.pageCount)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, pdferrors.IsReference(err), "want a reference error, got %v", err)

			var pdfErr *pdferrors.PDFError
			require.ErrorAs(t, err, &pdfErr)
			assert.Equal(t, tt.page, pdfErr.PageNumber)
		})
	}
}

func TestPageRange(t *testing.T) {
	up := PageRange{Start: 2, End: 5}
	assert.Equal(t, 4, up.Count())
	assert.Equal(t, []int{2, 3, 4, 5}, up.Pages())
	assert.True(t, up.Contains(2))
	assert.True(t, up.Contains(5))
	assert.False(t, up.Contains(6))
	assert.Equal(t, "2-5", up.String())

	down := PageRange{Start: 5, End: 2}
	assert.Equal(t, 4, down.Count())
	assert.Equal(t, []int{5, 4, 3, 2}, down.Pages())
	assert.True(t, down.Contains(3))
	assert.False(t, down.Contains(1))

	single := PageRange{Start: 7, End: 7}
	assert.Equal(t, 1, single.Count())
	assert.Equal(t, []int{7}, single.Pages())
	assert.Equal(t, "7", single.String())
}

func TestParse(t *testing.T) {
	ranges, err := Parse("1-3, 7 ,9-8")
	require.NoError(t, err)
	assert.Equal(t, []PageRange{{1, 3}, {7, 7}, {9, 8}}, ranges)
}
