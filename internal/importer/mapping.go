package importer

import (
	"errors"
	"fmt"
)

// ErrUnknownField is returned when a mapping override names a field other
// than name, email or course.
var ErrUnknownField = errors.New("unknown mapping field")

// Field is a logical column the import needs.
type Field string

const (
	FieldName   Field = "name"
	FieldEmail  Field = "email"
	FieldCourse Field = "course"
)

// Fields lists the logical fields in mapping order.
var Fields = []Field{FieldName, FieldEmail, FieldCourse}

// Label is the capitalised field name used in messages.
func (f Field) Label() string {
	switch f {
	case FieldName:
		return "Name"
	case FieldEmail:
		return "Email"
	case FieldCourse:
		return "Course"
	}
	return string(f)
}

// ParseField converts a wire value to a Field.
func ParseField(s string) (Field, error) {
	for _, f := range Fields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Mapping associates each logical field with a header name. An empty
// string means unset.
type Mapping struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Course string `json:"course"`
}

// AutoMap proposes a mapping for headers. Each field takes the header that
// equals its name exactly (case-sensitive) and otherwise falls back to the
// header at position 0, 1 or 2 respectively.
func AutoMap(headers []string) Mapping {
	pick := func(f Field, fallback int) string {
		for _, h := range headers {
			if h == string(f) {
				return h
			}
		}
		if fallback < len(headers) {
			return headers[fallback]
		}
		return ""
	}

	return Mapping{
		Name:   pick(FieldName, 0),
		Email:  pick(FieldEmail, 1),
		Course: pick(FieldCourse, 2),
	}
}

// Get returns the header mapped to f.
func (m Mapping) Get(f Field) string {
	switch f {
	case FieldName:
		return m.Name
	case FieldEmail:
		return m.Email
	case FieldCourse:
		return m.Course
	}
	return ""
}

// Set maps f to header. The header is not checked against any document.
func (m *Mapping) Set(f Field, header string) error {
	switch f {
	case FieldName:
		m.Name = header
	case FieldEmail:
		m.Email = header
	case FieldCourse:
		m.Course = header
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	return nil
}

// Complete reports whether every field names a header present in d.
func (m Mapping) Complete(d *Document) bool {
	for _, f := range Fields {
		if !d.HasHeader(m.Get(f)) {
			return false
		}
	}
	return true
}
