package roster

import (
	"fmt"
	"strings"
	"time"
)

// All is the filter value that matches every course or status.
const All = "all"

// Filter narrows the student list. Empty fields and "all" match everything.
type Filter struct {
	Query  string
	Course string
	Status string
	From   time.Time
	To     time.Time
}

// Match reports whether s passes every set criterion. Query matches a
// case-insensitive substring of name or email; the date range is inclusive.
func (f Filter) Match(s Student) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(s.Name), q) && !strings.Contains(strings.ToLower(s.Email), q) {
			return false
		}
	}
	if f.Course != "" && f.Course != All && s.Course != f.Course {
		return false
	}
	if f.Status != "" && f.Status != All && string(s.Status) != f.Status {
		return false
	}
	return inRange(s.LastActive, f.From, f.To)
}

// Apply returns the students matching f, in roster order.
func Apply(students []Student, f Filter) []Student {
	out := make([]Student, 0, len(students))
	for _, s := range students {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

// ParseDate accepts RFC 3339 timestamps or YYYY-MM-DD dates (UTC). With
// endOfDay set, a bare date means the last instant of that day so an upper
// bound includes the whole day. An empty string yields the zero time.
func ParseDate(s string, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	if endOfDay {
		d = d.Add(24*time.Hour - time.Nanosecond)
	}
	return d, nil
}
