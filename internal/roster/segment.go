package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/coursedesk/internal/kv"
)

var (
	// ErrSegmentNotFound is returned for an unknown segment id.
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrDefaultSegment is returned when editing or deleting a built-in segment.
	ErrDefaultSegment = errors.New("default segments cannot be changed")

	// ErrInvalidRules is returned when segment rules cannot be evaluated.
	ErrInvalidRules = errors.New("invalid segment rules")
)

// SegmentType separates built-in segments from user-defined ones.
type SegmentType string

const (
	SegmentDefault SegmentType = "default"
	SegmentCustom  SegmentType = "custom"
)

// AnyCourse is the course rule that matches every course.
const AnyCourse = "any"

// ProgressRule compares progressPct against Value using Op (">=" or "<=").
type ProgressRule struct {
	Op    string `json:"op"`
	Value int    `json:"value"`
}

// DateRange bounds lastActive. Either side may be empty.
type DateRange struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// Rules is the conjunction a student must satisfy to be in a segment.
// Unset rules match everything.
type Rules struct {
	StatusEq   Status        `json:"statusEq,omitempty"`
	Course     string        `json:"course,omitempty"`
	Progress   *ProgressRule `json:"progress,omitempty"`
	LastActive *DateRange    `json:"lastActive,omitempty"`
}

// Validate checks that the rules can be evaluated.
func (r Rules) Validate() error {
	if r.StatusEq != "" && !r.StatusEq.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRules, r.StatusEq)
	}
	if r.Progress != nil && r.Progress.Op != ">=" && r.Progress.Op != "<=" {
		return fmt.Errorf("%w: progress op must be >= or <=, got %q", ErrInvalidRules, r.Progress.Op)
	}
	if r.LastActive != nil {
		if _, err := ParseDate(r.LastActive.From, false); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRules, err)
		}
		if _, err := ParseDate(r.LastActive.To, true); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRules, err)
		}
	}
	return nil
}

// Match reports whether s satisfies every rule. Rules with unparseable
// dates match nothing.
func (r Rules) Match(s Student) bool {
	if r.StatusEq != "" && s.Status != r.StatusEq {
		return false
	}
	if r.Course != "" && r.Course != AnyCourse && s.Course != r.Course {
		return false
	}
	if p := r.Progress; p != nil {
		switch p.Op {
		case ">=":
			if s.ProgressPct < p.Value {
				return false
			}
		case "<=":
			if s.ProgressPct > p.Value {
				return false
			}
		}
	}
	if d := r.LastActive; d != nil {
		from, err := ParseDate(d.From, false)
		if err != nil {
			return false
		}
		to, err := ParseDate(d.To, true)
		if err != nil {
			return false
		}
		if !inRange(s.LastActive, from, to) {
			return false
		}
	}
	return true
}

// Segment is a named rule set.
type Segment struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Type  SegmentType `json:"type"`
	Rules Rules       `json:"rules"`
}

// Members returns the students in the segment, in roster order.
func (seg Segment) Members(students []Student) []Student {
	out := make([]Student, 0, len(students))
	for _, s := range students {
		if seg.Rules.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// DefaultSegments are the built-in status segments.
func DefaultSegments() []Segment {
	return []Segment{
		{ID: "seg_active", Name: "Active", Type: SegmentDefault, Rules: Rules{StatusEq: StatusActive}},
		{ID: "seg_inactive", Name: "Inactive", Type: SegmentDefault, Rules: Rules{StatusEq: StatusInactive}},
		{ID: "seg_completed", Name: "Completed", Type: SegmentDefault, Rules: Rules{StatusEq: StatusCompleted}},
	}
}

// starterSegments seed the custom list the first time it is read.
func starterSegments() []Segment {
	return []Segment{
		{
			ID:    "seg_custom_ai_high",
			Name:  "AI • Progress ≥ 60%",
			Type:  SegmentCustom,
			Rules: Rules{Course: "AI Foundations", Progress: &ProgressRule{Op: ">=", Value: 60}},
		},
	}
}

// Segments manages custom segments persisted in a kv.Store as one JSON list.
type Segments struct {
	store kv.Store
	mu    sync.Mutex
}

// NewSegments returns a segment catalog over store.
func NewSegments(store kv.Store) *Segments {
	return &Segments{store: store}
}

// List returns the default segments followed by custom ones, newest first.
func (s *Segments) List(ctx context.Context) ([]Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	custom, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return append(DefaultSegments(), custom...), nil
}

// Get finds a segment by id.
func (s *Segments) Get(ctx context.Context, id string) (Segment, error) {
	all, err := s.List(ctx)
	if err != nil {
		return Segment{}, err
	}
	for _, seg := range all {
		if seg.ID == id {
			return seg, nil
		}
	}
	return Segment{}, ErrSegmentNotFound
}

// Create adds a custom segment. An empty name becomes "New segment" and
// empty rules default to any course.
func (s *Segments) Create(ctx context.Context, name string, rules Rules) (Segment, error) {
	if err := rules.Validate(); err != nil {
		return Segment{}, err
	}
	if strings.TrimSpace(name) == "" {
		name = "New segment"
	}
	if rules == (Rules{}) {
		rules.Course = AnyCourse
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	custom, err := s.load(ctx)
	if err != nil {
		return Segment{}, err
	}
	seg := Segment{ID: uuid.NewString(), Name: strings.TrimSpace(name), Type: SegmentCustom, Rules: rules}
	custom = append([]Segment{seg}, custom...)
	if err := s.save(ctx, custom); err != nil {
		return Segment{}, err
	}
	return seg, nil
}

// Update replaces the name and rules of a custom segment.
func (s *Segments) Update(ctx context.Context, id, name string, rules Rules) (Segment, error) {
	if isDefault(id) {
		return Segment{}, ErrDefaultSegment
	}
	if err := rules.Validate(); err != nil {
		return Segment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	custom, err := s.load(ctx)
	if err != nil {
		return Segment{}, err
	}
	for i := range custom {
		if custom[i].ID != id {
			continue
		}
		if n := strings.TrimSpace(name); n != "" {
			custom[i].Name = n
		}
		custom[i].Rules = rules
		if err := s.save(ctx, custom); err != nil {
			return Segment{}, err
		}
		return custom[i], nil
	}
	return Segment{}, ErrSegmentNotFound
}

// Delete removes a custom segment.
func (s *Segments) Delete(ctx context.Context, id string) error {
	if isDefault(id) {
		return ErrDefaultSegment
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	custom, err := s.load(ctx)
	if err != nil {
		return err
	}
	for i := range custom {
		if custom[i].ID == id {
			custom = append(custom[:i], custom[i+1:]...)
			return s.save(ctx, custom)
		}
	}
	return ErrSegmentNotFound
}

func (s *Segments) load(ctx context.Context) ([]Segment, error) {
	raw, err := s.store.Get(ctx, kv.SegmentsKey())
	if errors.Is(err, kv.ErrNotFound) {
		return starterSegments(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load segments: %w", err)
	}
	var custom []Segment
	if err := json.Unmarshal([]byte(raw), &custom); err != nil {
		return nil, fmt.Errorf("decode segments: %w", err)
	}
	return custom, nil
}

func (s *Segments) save(ctx context.Context, custom []Segment) error {
	if custom == nil {
		custom = []Segment{}
	}
	data, err := json.Marshal(custom)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	if err := s.store.Set(ctx, kv.SegmentsKey(), string(data)); err != nil {
		return fmt.Errorf("save segments: %w", err)
	}
	return nil
}

func isDefault(id string) bool {
	for _, seg := range DefaultSegments() {
		if seg.ID == id {
			return true
		}
	}
	return false
}
