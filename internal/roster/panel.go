package roster

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrEmptySelection is returned when an action is attempted with nothing selected.
	ErrEmptySelection = errors.New("no students selected")

	// ErrConfirmRequired is returned when remove is performed without confirmation.
	ErrConfirmRequired = errors.New("remove access requires confirmation")

	// ErrUnknownAction is returned for an action other than enroll, email or remove.
	ErrUnknownAction = errors.New("unknown bulk action")

	// ErrUnknownStudent is returned when toggling an id not on the roster.
	ErrUnknownStudent = errors.New("student not on roster")

	// ErrPanelNotFound is returned for an unknown panel id.
	ErrPanelNotFound = errors.New("bulk panel not found")
)

// Action is a bulk operation over the selection.
type Action string

const (
	ActionEnroll Action = "enroll"
	ActionEmail  Action = "email"
	ActionRemove Action = "remove"
)

// DefaultCourse is the enrollment target when none is chosen.
const DefaultCourse = "AI Foundations"

// EnrollCourses are the courses offered by the enroll action.
var EnrollCourses = []string{"AI Foundations", "Prompt Engineering", "Data Viz Mastery"}

// ActionRequest carries an action and its inputs. Subject and Body are
// accepted for email but never delivered.
type ActionRequest struct {
	Action  Action
	Course  string
	Subject string
	Body    string
	Confirm bool
}

// PanelState is a snapshot of a panel.
type PanelState struct {
	ID            string   `json:"id"`
	RosterSize    int      `json:"rosterSize"`
	SelectedIDs   []string `json:"selectedIds"`
	Count         int      `json:"count"`
	AllSelected   bool     `json:"allSelected"`
	PendingAction Action   `json:"pendingAction,omitempty"`
	ConfirmRemove bool     `json:"confirmRemove"`
	Banner        string   `json:"banner,omitempty"`
}

// Panel tracks a selection over a fixed roster and dispatches mock bulk actions.
type Panel struct {
	id     string
	roster []Student
	byID   map[string]Student

	mu            sync.Mutex
	selected      map[string]bool
	allSelected   bool
	pending       Action
	confirmRemove bool
	banner        string
}

// NewPanel creates a panel over roster with nothing selected.
func NewPanel(roster []Student) *Panel {
	return &Panel{
		id:       uuid.NewString(),
		roster:   append([]Student(nil), roster...),
		byID:     ByID(roster),
		selected: make(map[string]bool),
	}
}

// ID returns the panel id.
func (p *Panel) ID() string { return p.id }

// Roster returns the students the panel was created over.
func (p *Panel) Roster() []Student {
	return append([]Student(nil), p.roster...)
}

// ToggleAll selects every student, or clears the selection if the
// all-selected flag was already set.
func (p *Panel) ToggleAll() PanelState {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.allSelected = !p.allSelected
	p.selected = make(map[string]bool)
	if p.allSelected {
		for _, s := range p.roster {
			p.selected[s.ID] = true
		}
	}
	return p.stateLocked()
}

// Toggle flips one student and re-derives the all-selected flag.
func (p *Panel) Toggle(id string) (PanelState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.onRoster(id) {
		return PanelState{}, fmt.Errorf("%w: %q", ErrUnknownStudent, id)
	}
	if p.selected[id] {
		delete(p.selected, id)
	} else {
		p.selected[id] = true
	}
	p.allSelected = len(p.roster) > 0 && len(p.selected) == len(p.roster)
	return p.stateLocked(), nil
}

// Begin opens the input step for an action. Remove also raises the
// confirmation prompt.
func (p *Panel) Begin(a Action) (PanelState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !validAction(a) {
		return PanelState{}, fmt.Errorf("%w: %q", ErrUnknownAction, a)
	}
	if len(p.selected) == 0 {
		return PanelState{}, ErrEmptySelection
	}
	p.pending = a
	p.confirmRemove = a == ActionRemove
	return p.stateLocked(), nil
}

// Perform runs an action against the selection and returns the banner.
// The roster is never modified. Remove without Confirm raises the
// confirmation prompt and returns ErrConfirmRequired.
func (p *Panel) Perform(req ActionRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !validAction(req.Action) {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
	n := len(p.selected)
	if n == 0 {
		return "", ErrEmptySelection
	}

	var banner string
	switch req.Action {
	case ActionEnroll:
		course := req.Course
		if course == "" {
			course = DefaultCourse
		}
		banner = fmt.Sprintf("Enrolled %d students in %s", n, course)
	case ActionEmail:
		banner = fmt.Sprintf("Email sent to %d students", n)
	case ActionRemove:
		if !req.Confirm {
			p.pending = ActionRemove
			p.confirmRemove = true
			return "", ErrConfirmRequired
		}
		banner = fmt.Sprintf("Removed access for %d students", n)
	}

	p.banner = banner
	p.pending = ""
	p.confirmRemove = false
	return banner, nil
}

// CancelAction drops the pending action and any confirmation prompt.
func (p *Panel) CancelAction() PanelState {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = ""
	p.confirmRemove = false
	return p.stateLocked()
}

// DismissBanner clears the banner.
func (p *Panel) DismissBanner() PanelState {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.banner = ""
	return p.stateLocked()
}

// Selected returns the selected students in roster order.
func (p *Panel) Selected() []Student {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selectedLocked()
}

// Export renders the selection, or the whole roster when nothing is selected.
func (p *Panel) Export() string {
	p.mu.Lock()
	students := p.selectedLocked()
	p.mu.Unlock()

	if len(students) == 0 {
		students = p.roster
	}
	return ExportCSV(students)
}

// State returns a snapshot.
func (p *Panel) State() PanelState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

func (p *Panel) selectedLocked() []Student {
	out := make([]Student, 0, len(p.selected))
	for _, s := range p.roster {
		if p.selected[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

func (p *Panel) stateLocked() PanelState {
	ids := make([]string, 0, len(p.selected))
	for _, s := range p.roster {
		if p.selected[s.ID] {
			ids = append(ids, s.ID)
		}
	}
	return PanelState{
		ID:            p.id,
		RosterSize:    len(p.roster),
		SelectedIDs:   ids,
		Count:         len(ids),
		AllSelected:   p.allSelected,
		PendingAction: p.pending,
		ConfirmRemove: p.confirmRemove,
		Banner:        p.banner,
	}
}

func (p *Panel) onRoster(id string) bool {
	_, ok := p.byID[id]
	return ok
}

func validAction(a Action) bool {
	return a == ActionEnroll || a == ActionEmail || a == ActionRemove
}
