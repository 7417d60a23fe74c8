package importer

import (
	"fmt"
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s has the local@domain.tld shape.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Validate checks m against d and returns every problem found, in order:
// one "<Field> column not mapped" per field whose header is missing from d,
// then one "Row N: invalid email" per data row whose email fails the shape
// check. Row numbers count the header as row 1. An unmapped email column
// reads as empty, so every row is reported. A nil result means valid.
func Validate(d *Document, m Mapping) []string {
	if d == nil {
		return []string{MsgNoCSV}
	}

	var errs []string
	for _, f := range Fields {
		if !d.HasHeader(m.Get(f)) {
			errs = append(errs, f.Label()+" column not mapped")
		}
	}

	emailCol := d.Column(m.Email)
	for i, row := range d.Rows {
		email := ""
		if emailCol >= 0 {
			email = row[emailCol]
		}
		if !ValidEmail(email) {
			errs = append(errs, fmt.Sprintf("Row %d: invalid email", i+2))
		}
	}

	return errs
}

// Check is the gate in front of a run: a missing document or one with no
// data rows yields MsgNoCSV alone, anything else goes through Validate.
func Check(d *Document, m Mapping) []string {
	if d == nil || len(d.Rows) == 0 {
		return []string{MsgNoCSV}
	}
	return Validate(d, m)
}

// ValidationError carries the messages that kept an import from starting.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "import validation failed: " + strings.Join(e.Errors, "; ")
}
