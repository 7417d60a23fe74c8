// Package roster holds the student roster and everything computed over it:
// list filters, segments, the bulk action panel and CSV export.
//
// The roster is read-only. Bulk actions report what they would do and never
// change a student.
package roster

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Status is a student's enrollment status.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusCompleted:
		return true
	}
	return false
}

// Student is one roster entry.
type Student struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Email        string    `json:"email" yaml:"email"`
	Course       string    `json:"course" yaml:"course"`
	ProgressPct  int       `json:"progressPct" yaml:"progressPct"`
	LastActive   time.Time `json:"lastActive" yaml:"lastActive"`
	Status       Status    `json:"status" yaml:"status"`
	AvatarHue    int       `json:"avatarHue" yaml:"avatarHue"`
	CoursesCount int       `json:"coursesCount" yaml:"coursesCount"`
}

//go:embed seed.yaml
var seedYAML []byte

type seedFile struct {
	Students []Student `yaml:"students"`
}

// Seed returns the built-in roster.
func Seed() []Student {
	students, err := Load(bytes.NewReader(seedYAML))
	if err != nil {
		panic(fmt.Sprintf("roster: embedded seed: %v", err))
	}
	return students
}

// Load decodes a YAML roster document with a top-level students list.
func Load(r io.Reader) ([]Student, error) {
	var f seedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}

	seen := make(map[string]bool, len(f.Students))
	for i, s := range f.Students {
		if s.ID == "" {
			return nil, fmt.Errorf("roster entry %d: missing id", i)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("roster entry %d: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
		if !s.Status.Valid() {
			return nil, fmt.Errorf("roster entry %q: unknown status %q", s.ID, s.Status)
		}
	}
	return f.Students, nil
}

// LoadFile reads a YAML roster from path.
func LoadFile(path string) ([]Student, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Courses returns the distinct courses in first-seen order.
func Courses(students []Student) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range students {
		if !seen[s.Course] {
			seen[s.Course] = true
			out = append(out, s.Course)
		}
	}
	return out
}

// ByID indexes students by id.
func ByID(students []Student) map[string]Student {
	m := make(map[string]Student, len(students))
	for _, s := range students {
		m[s.ID] = s
	}
	return m
}
