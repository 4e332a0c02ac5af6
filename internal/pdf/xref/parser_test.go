package xref

import (
	"strings"
	"testing"

	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
)

// createTestXRefTable creates a sample xref table for testing
func createTestXRefTable() string {
	return `xref
0 6
0000000000 65535 f
0000000009 00000 n
0000000074 00000 n
0000000173 00000 n
0000000301 00000 n
0000000380 00000 n
trailer
<<
/Size 6
/Root 1 0 R
/Info 5 0 R
>>
startxref
0
%%EOF`
}

// createTestXRefTableWithSubsections creates a xref table split into two subsections
func createTestXRefTableWithSubsections() string {
	return `xref
0 3
0000000000 65535 f
0000000009 00000 n
0000000074 00000 n
3 2
0000000173 00000 n
0000000301 00001 n
trailer
<<
/Size 5
/Root 1 0 R
/Prev 100
>>
`
}

func TestParseTable(t *testing.T) {
	data := []byte(createTestXRefTable())
	table := NewTable()

	trailerPos, err := table.ParseTable(data, 0)
	if err != nil {
		t.Fatalf("ParseTable() unexpected error: %v", err)
	}

	if got := string(data[trailerPos-int64(len("trailer")) : trailerPos]); got != "trailer" {
		t.Errorf("trailer position points at %q", got)
	}
	if table.Len() != 6 {
		t.Errorf("Len() = %d, want 6", table.Len())
	}

	entry := table.Get(3)
	if entry == nil {
		t.Fatal("entry for object 3 missing")
	}
	if entry.Type != EntryInUse || entry.Offset != 173 {
		t.Errorf("entry 3 = %+v, want in-use at 173", entry)
	}

	if free := table.Get(0); free == nil || free.Type != EntryFree {
		t.Errorf("entry 0 should be free, got %+v", free)
	}

	inUse := table.InUse()
	want := []int64{1, 2, 3, 4, 5}
	if len(inUse) != len(want) {
		t.Fatalf("InUse() = %v, want %v", inUse, want)
	}
	for i := range want {
		if inUse[i] != want[i] {
			t.Errorf("InUse()[%d] = %d, want %d", i, inUse[i], want[i])
		}
	}
}

func TestParseTable_Subsections(t *testing.T) {
	data := []byte("%PDF-1.4\n" + createTestXRefTableWithSubsections())
	table := NewTable()

	if _, err := table.ParseTable(data, 9); err != nil {
		t.Fatalf("ParseTable() unexpected error: %v", err)
	}

	entry := table.Get(4)
	if entry == nil {
		t.Fatal("entry for object 4 missing")
	}
	if entry.Generation != 1 {
		t.Errorf("generation = %d, want 1", entry.Generation)
	}
}

func TestParseTable_NewestSectionWins(t *testing.T) {
	newer := "xref\n0 2\n0000000000 65535 f \n0000000500 00000 n \ntrailer\n"
	older := "xref\n0 2\n0000000000 65535 f \n0000000100 00000 n \ntrailer\n"
	table := NewTable()

	if _, err := table.ParseTable([]byte(newer), 0); err != nil {
		t.Fatalf("newer section: %v", err)
	}
	if _, err := table.ParseTable([]byte(older), 0); err != nil {
		t.Fatalf("older section: %v", err)
	}

	if got := table.Get(1).Offset; got != 500 {
		t.Errorf("offset = %d, want 500 from the newer section", got)
	}
}

func TestParseTable_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		offset int64
	}{
		{
			name:   "offset outside file",
			data:   "xref\n",
			offset: 100,
		},
		{
			name:   "missing keyword",
			data:   "1 0 obj\n<<>>\nendobj\n",
			offset: 0,
		},
		{
			name:   "malformed entry",
			data:   "xref\n0 2\n0000000000 65535 f \ninvalid entry here\ntrailer\n",
			offset: 0,
		},
		{
			name:   "truncated subsection",
			data:   "xref\n0 3\n0000000000 65535 f \n",
			offset: 0,
		},
		{
			name:   "bad subsection header",
			data:   "xref\n0 2 7\n",
			offset: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable().ParseTable([]byte(tt.data), tt.offset)
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if !pdferrors.IsStructural(err) {
				t.Errorf("expected structural error, got %v", err)
			}
		})
	}
}

func TestAddStreamEntries(t *testing.T) {
	// W [1 2 1], three rows: free, in-use at 0x0102 gen 0, compressed in stream 7 index 3
	decoded := []byte{
		0, 0x00, 0x00, 0xff,
		1, 0x01, 0x02, 0x00,
		2, 0x00, 0x07, 0x03,
	}
	table := NewTable()

	if err := table.AddStreamEntries(decoded, []int{1, 2, 1}, []int64{10, 3}); err != nil {
		t.Fatalf("AddStreamEntries() unexpected error: %v", err)
	}

	if e := table.Get(10); e == nil || e.Type != EntryFree {
		t.Errorf("object 10 should be free, got %+v", e)
	}
	if e := table.Get(11); e == nil || e.Type != EntryInUse || e.Offset != 0x0102 {
		t.Errorf("object 11 = %+v, want in-use at 258", e)
	}
	if e := table.Get(12); e == nil || e.Type != EntryCompressed || e.StreamNum != 7 || e.StreamIndex != 3 {
		t.Errorf("object 12 = %+v, want compressed in 7 at index 3", e)
	}
}

func TestAddStreamEntries_Truncated(t *testing.T) {
	err := NewTable().AddStreamEntries([]byte{1, 0, 0}, []int{1, 2, 1}, []int64{0, 1})
	if err == nil {
		t.Fatal("expected error for truncated stream")
	}
}

func TestFindStartXRef(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    int64
		wantErr bool
	}{
		{
			name: "simple",
			data: "%PDF-1.4\nxref\ntrailer\n<<>>\nstartxref\n9\n%%EOF",
			want: 9,
		},
		{
			name: "uses last occurrence",
			data: "%PDF-1.4\nstartxref\n1\n%%EOF\nmore data startxref\n12\n%%EOF\n",
			want: 12,
		},
		{
			name:    "missing keyword",
			data:    "%PDF-1.4\n%%EOF",
			wantErr: true,
		},
		{
			name:    "offset beyond file",
			data:    "%PDF-1.4\nstartxref\n99999\n%%EOF",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindStartXRef([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("FindStartXRef() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestVisit(t *testing.T) {
	table := NewTable()
	if !table.Visit(100) {
		t.Error("first visit should succeed")
	}
	if table.Visit(100) {
		t.Error("second visit of the same offset should be refused")
	}
	if got := table.PrevChain(); len(got) != 1 || got[0] != 100 {
		t.Errorf("PrevChain() = %v", got)
	}
}

func TestIsTableAt(t *testing.T) {
	data := []byte("%PDF-1.4\n  xref\n")
	if !IsTableAt(data, 9) {
		t.Error("expected xref table at offset 9")
	}
	if IsTableAt(data, 0) {
		t.Error("no xref table at offset 0")
	}
	if !strings.Contains(EntryCompressed.String(), "compressed") {
		t.Error("unexpected EntryType string")
	}
}
