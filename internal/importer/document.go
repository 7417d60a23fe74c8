package importer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// ErrEmptyDocument is returned by Parse when the input has no non-blank lines.
	ErrEmptyDocument = errors.New("empty csv document")

	// ErrFileTooLarge is returned by ParseReader when the input exceeds its byte limit.
	ErrFileTooLarge = errors.New("csv file too large")
)

// Messages surfaced to the user as validation errors.
const (
	MsgEmptyFile = "Empty CSV file"
	MsgNoCSV     = "No CSV selected"
)

var (
	lineBreak = regexp.MustCompile(`\r?\n`)
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
)

// Document is a parsed CSV: a header row and data rows. Every row has
// exactly len(Headers) fields.
type Document struct {
	Headers []string
	Rows    [][]string
}

// Parse splits text into a Document.
//
// Lines end at \n or \r\n and blank lines are dropped. The first remaining
// line is the header row. Fields are split on commas with no quote handling
// and are whitespace-trimmed. Short rows are padded with empty fields and
// long rows are truncated to the header width.
func Parse(text string) (*Document, error) {
	var lines []string
	for _, line := range lineBreak.Split(text, -1) {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, ErrEmptyDocument
	}

	headers := splitFields(lines[0])
	rows := make([][]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		rows = append(rows, fitWidth(splitFields(line), len(headers)))
	}

	return &Document{Headers: headers, Rows: rows}, nil
}

// ParseReader reads r to completion and parses it. A leading UTF-8 BOM is
// skipped and invalid UTF-8 bytes are replaced with '?'. Inputs larger than
// maxBytes fail with ErrFileTooLarge; maxBytes <= 0 disables the limit.
func ParseReader(r io.Reader, maxBytes int64) (*Document, error) {
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, ErrFileTooLarge
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		data = sanitizeUTF8(data)
	}
	return Parse(string(data))
}

// Column returns the index of the first header equal to name, or -1.
func (d *Document) Column(name string) int {
	if d == nil || name == "" {
		return -1
	}
	for i, h := range d.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// HasHeader reports whether name is one of the document headers.
func (d *Document) HasHeader(name string) bool {
	return d.Column(name) >= 0
}

// Preview returns up to n leading rows.
func (d *Document) Preview(n int) [][]string {
	if d == nil {
		return nil
	}
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	return d.Rows[:n]
}

func splitFields(line string) []string {
	fields := strings.Split(line, ",")
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}

func fitWidth(fields []string, width int) []string {
	if len(fields) >= width {
		return fields[:width]
	}
	padded := make([]string, width)
	copy(padded, fields)
	return padded
}

// sanitizeUTF8 replaces each invalid byte with '?', keeping valid runes intact.
func sanitizeUTF8(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			out = append(out, '?')
		} else {
			out = append(out, data[:size]...)
		}
		data = data[size:]
	}
	return out
}
