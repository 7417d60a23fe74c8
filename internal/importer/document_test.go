package importer

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantHeaders []string
		wantRows    [][]string
	}{
		{
			name:        "unix line endings",
			input:       "name,email,course\nAna,ana@x.com,AI\n",
			wantHeaders: []string{"name", "email", "course"},
			wantRows:    [][]string{{"Ana", "ana@x.com", "AI"}},
		},
		{
			name:        "windows line endings",
			input:       "name,email\r\nAna,ana@x.com\r\nBo,bo@x.com",
			wantHeaders: []string{"name", "email"},
			wantRows:    [][]string{{"Ana", "ana@x.com"}, {"Bo", "bo@x.com"}},
		},
		{
			name:        "blank lines dropped",
			input:       "\n\n  \nname,email\n\n   \nAna,ana@x.com\n\n",
			wantHeaders: []string{"name", "email"},
			wantRows:    [][]string{{"Ana", "ana@x.com"}},
		},
		{
			name:        "fields trimmed",
			input:       " name , email \n  Ana ,  ana@x.com ",
			wantHeaders: []string{"name", "email"},
			wantRows:    [][]string{{"Ana", "ana@x.com"}},
		},
		{
			name:        "short row padded",
			input:       "name,email,course\nAna",
			wantHeaders: []string{"name", "email", "course"},
			wantRows:    [][]string{{"Ana", "", ""}},
		},
		{
			name:        "long row truncated",
			input:       "name,email\nAna,ana@x.com,AI,extra",
			wantHeaders: []string{"name", "email"},
			wantRows:    [][]string{{"Ana", "ana@x.com"}},
		},
		{
			name:        "quotes not interpreted",
			input:       "name,email\n\"Lee, Jon\",jon@x.com",
			wantHeaders: []string{"name", "email"},
			wantRows:    [][]string{{"\"Lee", "Jon\""}},
		},
		{
			name:        "headers only",
			input:       "name,email,course",
			wantHeaders: []string{"name", "email", "course"},
			wantRows:    [][]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if strings.Join(doc.Headers, "|") != strings.Join(tt.wantHeaders, "|") {
				t.Errorf("Headers = %q, want %q", doc.Headers, tt.wantHeaders)
			}
			if len(doc.Rows) != len(tt.wantRows) {
				t.Fatalf("len(Rows) = %d, want %d", len(doc.Rows), len(tt.wantRows))
			}
			for i := range tt.wantRows {
				if strings.Join(doc.Rows[i], "|") != strings.Join(tt.wantRows[i], "|") {
					t.Errorf("Rows[%d] = %q, want %q", i, doc.Rows[i], tt.wantRows[i])
				}
			}
		})
	}
}

func TestParse_RowWidthMatchesHeaders(t *testing.T) {
	input := "a,b,c,d\n1\n1,2\n1,2,3,4\n1,2,3,4,5,6\n,,,\n"
	doc, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(doc.Rows) != 5 {
		t.Fatalf("len(Rows) = %d, want 5", len(doc.Rows))
	}
	for i, row := range doc.Rows {
		if len(row) != len(doc.Headers) {
			t.Errorf("len(Rows[%d]) = %d, want %d", i, len(row), len(doc.Headers))
		}
	}
}

func TestParse_Empty(t *testing.T) {
	for _, input := range []string{"", "\n", "  \r\n \n\t"} {
		_, err := Parse(input)
		if !errors.Is(err, ErrEmptyDocument) {
			t.Errorf("Parse(%q) error = %v, want ErrEmptyDocument", input, err)
		}
	}
}

func TestParseReader(t *testing.T) {
	tests := []struct {
		name       string
		input      []byte
		max        int64
		wantHeader string
		wantErr    error
	}{
		{
			name:       "strips BOM",
			input:      append([]byte{0xEF, 0xBB, 0xBF}, []byte("name,email\nAna,a@x.io")...),
			max:        1024,
			wantHeader: "name",
		},
		{
			name:       "replaces invalid bytes",
			input:      []byte{'n', 0x80, 'm', 'e', ',', 'e', '\n', 'a', ',', 'b'},
			max:        1024,
			wantHeader: "n?me",
		},
		{
			name:       "keeps multibyte runes",
			input:      []byte("nämé,email\nA,b"),
			max:        1024,
			wantHeader: "nämé",
		},
		{
			name:    "too large",
			input:   []byte("name,email\nAna,ana@x.com"),
			max:     8,
			wantErr: ErrFileTooLarge,
		},
		{
			name:       "exactly at limit",
			input:      []byte("name"),
			max:        4,
			wantHeader: "name",
		},
		{
			name:       "no limit",
			input:      []byte("name"),
			max:        0,
			wantHeader: "name",
		},
		{
			name:    "only BOM",
			input:   []byte{0xEF, 0xBB, 0xBF},
			max:     1024,
			wantErr: ErrEmptyDocument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseReader(bytes.NewReader(tt.input), tt.max)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseReader() error = %v", err)
			}
			if doc.Headers[0] != tt.wantHeader {
				t.Errorf("Headers[0] = %q, want %q", doc.Headers[0], tt.wantHeader)
			}
		})
	}
}

func TestDocument_Preview(t *testing.T) {
	doc, err := Parse("name\na\nb\nc")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := len(doc.Preview(2)); got != 2 {
		t.Errorf("len(Preview(2)) = %d, want 2", got)
	}
	if got := len(doc.Preview(10)); got != 3 {
		t.Errorf("len(Preview(10)) = %d, want 3", got)
	}
	var nilDoc *Document
	if got := nilDoc.Preview(5); got != nil {
		t.Errorf("nil Preview = %v, want nil", got)
	}
}
