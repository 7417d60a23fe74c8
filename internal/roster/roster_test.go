package roster

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/coursedesk/internal/config"
)

func TestSeed(t *testing.T) {
	students := Seed()
	require.Len(t, students, 6)
	assert.Equal(t, "s1", students[0].ID)
	assert.Equal(t, "Alex Johnson", students[0].Name)
	assert.Equal(t, StatusActive, students[0].Status)
	assert.Equal(t, 62, students[0].ProgressPct)
	assert.Equal(t, time.Date(2026, 1, 12, 10, 12, 0, 0, time.UTC), students[0].LastActive.UTC())

	assert.Equal(t, []string{"AI Foundations", "Prompt Engineering", "Data Viz Mastery"}, Courses(students))
	assert.Equal(t, "Maya Singh", ByID(students)["s2"].Name)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"missing id", "students:\n  - name: A\n    status: active\n", "missing id"},
		{"duplicate id", "students:\n  - id: a\n    status: active\n  - id: a\n    status: active\n", "duplicate id"},
		{"bad status", "students:\n  - id: a\n    status: paused\n", "unknown status"},
		{"bad yaml", "students: [", "decode roster"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(t.TempDir() + "/nope.yaml")
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	students := Seed()
	from, err := ParseDate("2026-01-10", false)
	require.NoError(t, err)
	to, err := ParseDate("2026-01-11", true)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty matches all", Filter{}, []string{"s1", "s2", "s3", "s4", "s5", "s6"}},
		{"all keyword", Filter{Course: All, Status: All}, []string{"s1", "s2", "s3", "s4", "s5", "s6"}},
		{"query name case-insensitive", Filter{Query: "  MAYA "}, []string{"s2"}},
		{"query email", Filter{Query: "lia@"}, []string{"s4"}},
		{"course", Filter{Course: "AI Foundations"}, []string{"s1", "s4"}},
		{"status", Filter{Status: "inactive"}, []string{"s3", "s6"}},
		{"course and status", Filter{Course: "Prompt Engineering", Status: "active"}, []string{"s5"}},
		{"date range inclusive whole day", Filter{From: from, To: to}, []string{"s2", "s4"}},
		{"no match", Filter{Query: "zzz"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(students, tt.filter)
			ids := make([]string, 0, len(got))
			for _, s := range got {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestParseDate(t *testing.T) {
	zero, err := ParseDate("", true)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	ts, err := ParseDate("2026-01-10T08:00:00Z", true)
	require.NoError(t, err)
	assert.Equal(t, 8, ts.Hour())

	end, err := ParseDate("2026-01-10", true)
	require.NoError(t, err)
	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, 10, end.Day())

	_, err = ParseDate("10/01/2026", false)
	assert.Error(t, err)
}

func TestDelayed_HonorsContext(t *testing.T) {
	src := &Delayed{Source: NewStatic(Seed()), Delay: time.Hour}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := src.Students(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDelayed_ReturnsRoster(t *testing.T) {
	src := &Delayed{Source: NewStatic(Seed()), Delay: time.Millisecond}
	got, err := src.Students(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 6)
}

func TestStatic_ReturnsCopy(t *testing.T) {
	src := NewStatic(Seed())
	a, _ := src.Students(context.Background())
	a[0].Name = "changed"
	b, _ := src.Students(context.Background())
	assert.Equal(t, "Alex Johnson", b[0].Name)
}

func TestExportCSV(t *testing.T) {
	students := Seed()[:2]
	got := ExportCSV(students)
	want := "name,email,course,status,progressPct,lastActive\n" +
		"Alex Johnson,alex@example.com,AI Foundations,active,62,2026-01-12T10:12:00Z\n" +
		"Maya Singh,maya@example.com,Prompt Engineering,completed,100,2026-01-11T09:30:00Z"
	assert.Equal(t, want, got)
	assert.False(t, strings.HasSuffix(got, "\n"))
}

func TestExportCSV_Empty(t *testing.T) {
	assert.Equal(t, "name,email,course,status,progressPct,lastActive", ExportCSV(nil))
}

func TestRulesMatch(t *testing.T) {
	students := Seed()
	tests := []struct {
		name  string
		rules Rules
		want  []string
	}{
		{"status", Rules{StatusEq: StatusCompleted}, []string{"s2"}},
		{"any course", Rules{Course: AnyCourse}, []string{"s1", "s2", "s3", "s4", "s5", "s6"}},
		{"progress >=", Rules{Progress: &ProgressRule{Op: ">=", Value: 62}}, []string{"s1", "s2", "s5"}},
		{"progress <=", Rules{Progress: &ProgressRule{Op: "<=", Value: 15}}, []string{"s3"}},
		{"course and progress", Rules{Course: "AI Foundations", Progress: &ProgressRule{Op: ">=", Value: 60}}, []string{"s1"}},
		{"last active window", Rules{LastActive: &DateRange{From: "2025-12-01", To: "2025-12-31"}}, []string{"s3", "s6"}},
		{"open-ended window", Rules{LastActive: &DateRange{From: "2026-01-11"}}, []string{"s1", "s2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg := Segment{Rules: tt.rules}
			got := seg.Members(students)
			ids := make([]string, 0, len(got))
			for _, s := range got {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestRulesValidate(t *testing.T) {
	assert.NoError(t, Rules{}.Validate())
	assert.ErrorIs(t, Rules{StatusEq: "paused"}.Validate(), ErrInvalidRules)
	assert.ErrorIs(t, Rules{Progress: &ProgressRule{Op: ">"}}.Validate(), ErrInvalidRules)
	assert.ErrorIs(t, Rules{LastActive: &DateRange{From: "yesterday"}}.Validate(), ErrInvalidRules)
}

func TestPanel_ToggleAllThenOne(t *testing.T) {
	roster := Seed()
	p := NewPanel(roster)

	st := p.ToggleAll()
	assert.True(t, st.AllSelected)
	assert.Equal(t, len(roster), st.Count)

	st, err := p.Toggle("s3")
	require.NoError(t, err)
	assert.False(t, st.AllSelected)
	assert.Equal(t, len(roster)-1, st.Count)
	assert.NotContains(t, st.SelectedIDs, "s3")

	st, err = p.Toggle("s3")
	require.NoError(t, err)
	assert.True(t, st.AllSelected)

	st = p.ToggleAll()
	assert.False(t, st.AllSelected)
	assert.Zero(t, st.Count)
}

func TestPanel_ToggleOneByOneReachesAll(t *testing.T) {
	roster := Seed()[:2]
	p := NewPanel(roster)
	_, err := p.Toggle("s1")
	require.NoError(t, err)
	st, err := p.Toggle("s2")
	require.NoError(t, err)
	assert.True(t, st.AllSelected)
}

func TestPanel_EmptyRosterNeverAllSelected(t *testing.T) {
	p := NewPanel(nil)
	_, err := p.Toggle("s1")
	assert.ErrorIs(t, err, ErrUnknownStudent)
	assert.False(t, p.State().AllSelected)
}

func TestPanel_SelectedInRosterOrder(t *testing.T) {
	p := NewPanel(Seed())
	for _, id := range []string{"s4", "s1", "s2"} {
		_, err := p.Toggle(id)
		require.NoError(t, err)
	}
	var ids []string
	for _, s := range p.Selected() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"s1", "s2", "s4"}, ids)
}

func TestPanel_Perform(t *testing.T) {
	tests := []struct {
		name string
		req  ActionRequest
		want string
	}{
		{"enroll default course", ActionRequest{Action: ActionEnroll}, "Enrolled 2 students in AI Foundations"},
		{"enroll chosen course", ActionRequest{Action: ActionEnroll, Course: "Data Viz Mastery"}, "Enrolled 2 students in Data Viz Mastery"},
		{"email", ActionRequest{Action: ActionEmail, Subject: "Hi", Body: "Welcome"}, "Email sent to 2 students"},
		{"remove confirmed", ActionRequest{Action: ActionRemove, Confirm: true}, "Removed access for 2 students"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPanel(Seed())
			_, _ = p.Toggle("s1")
			_, _ = p.Toggle("s2")
			_, err := p.Begin(tt.req.Action)
			require.NoError(t, err)

			banner, err := p.Perform(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, banner)

			st := p.State()
			assert.Equal(t, tt.want, st.Banner)
			assert.Empty(t, st.PendingAction)
			assert.False(t, st.ConfirmRemove)
			assert.Equal(t, 2, st.Count)
		})
	}
}

func TestPanel_RemoveRequiresConfirm(t *testing.T) {
	p := NewPanel(Seed())
	_, _ = p.Toggle("s1")

	_, err := p.Perform(ActionRequest{Action: ActionRemove})
	assert.ErrorIs(t, err, ErrConfirmRequired)
	st := p.State()
	assert.True(t, st.ConfirmRemove)
	assert.Empty(t, st.Banner)

	st = p.CancelAction()
	assert.False(t, st.ConfirmRemove)
	assert.Empty(t, st.PendingAction)
}

func TestPanel_RejectsEmptySelectionAndUnknownAction(t *testing.T) {
	p := NewPanel(Seed())
	_, err := p.Perform(ActionRequest{Action: ActionEmail})
	assert.ErrorIs(t, err, ErrEmptySelection)
	_, err = p.Begin(ActionEnroll)
	assert.ErrorIs(t, err, ErrEmptySelection)

	_, _ = p.Toggle("s1")
	_, err = p.Perform(ActionRequest{Action: "archive"})
	assert.True(t, errors.Is(err, ErrUnknownAction))
}

func TestPanel_DismissBanner(t *testing.T) {
	p := NewPanel(Seed())
	_, _ = p.Toggle("s1")
	_, err := p.Perform(ActionRequest{Action: ActionEmail})
	require.NoError(t, err)
	assert.Empty(t, p.DismissBanner().Banner)
}

func TestPanel_ExportSelectionOrAll(t *testing.T) {
	roster := Seed()[:3]

	p := NewPanel(roster)
	assert.Len(t, strings.Split(p.Export(), "\n"), 4)

	_, _ = p.Toggle("s3")
	_, _ = p.Toggle("s1")
	lines := strings.Split(p.Export(), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "Alex Johnson,"))
	assert.True(t, strings.HasPrefix(lines[2], "Jon Lee,"))
}

func TestPanel_RosterUnchangedByActions(t *testing.T) {
	roster := Seed()
	p := NewPanel(roster)
	p.ToggleAll()
	_, err := p.Perform(ActionRequest{Action: ActionRemove, Confirm: true})
	require.NoError(t, err)
	assert.Equal(t, roster, p.Roster())
}

func TestPanels_Registry(t *testing.T) {
	r := NewPanels(0)
	assert.Equal(t, DefaultPanelTTL, r.ttl)
	p := r.Create(Seed())

	got, err := r.Get(p.ID())
	require.NoError(t, err)
	assert.Same(t, p, got)

	r.Delete(p.ID())
	_, err = r.Get(p.ID())
	assert.ErrorIs(t, err, ErrPanelNotFound)
}

func TestPanels_Sweep(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := start
	r := NewPanels(10 * time.Minute)
	r.now = func() time.Time { return clock }

	idle := r.Create(Seed())
	used := r.Create(Seed())

	clock = start.Add(8 * time.Minute)
	_, err := r.Get(used.ID())
	require.NoError(t, err)

	assert.Equal(t, 0, r.Sweep(start.Add(9*time.Minute)))
	assert.Equal(t, 1, r.Sweep(start.Add(10*time.Minute)))

	_, err = r.Get(idle.ID())
	assert.ErrorIs(t, err, ErrPanelNotFound)
	_, err = r.Get(used.ID())
	assert.NoError(t, err)
}

func TestPanels_RunJanitorStops(t *testing.T) {
	r := NewPanels(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunJanitor did not stop after cancel")
	}
}

func TestOpen(t *testing.T) {
	src, err := Open(config.RosterConfig{})
	require.NoError(t, err)
	_, isStatic := src.(*Static)
	assert.True(t, isStatic)

	path := filepath.Join(t.TempDir(), "roster.yaml")
	doc := "students:\n  - id: x1\n    name: Only One\n    email: one@example.com\n    course: AI Foundations\n    status: active\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	src, err = Open(config.RosterConfig{SeedFile: path, LoadDelay: time.Millisecond})
	require.NoError(t, err)
	_, isDelayed := src.(*Delayed)
	assert.True(t, isDelayed)

	got, err := src.Students(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Only One", got[0].Name)

	_, err = Open(config.RosterConfig{SeedFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}
