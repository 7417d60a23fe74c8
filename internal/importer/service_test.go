package importer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/coursedesk/internal/kv"
)

const validCSV = "name,email,course\nAna,ana@x.com,AI Foundations\nBo,bo@x.com,Prompt Engineering\n"

func newTestService(t *testing.T, opts Options) (*Service, *kv.Memory) {
	t.Helper()
	if opts.TickInterval == 0 {
		opts.TickInterval = time.Millisecond
	}
	store := kv.NewMemory()
	svc := NewService(opts, store)
	t.Cleanup(func() {
		svc.CancelAll()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, svc.WaitForImports(ctx))
	})
	return svc, store
}

func waitImport(t *testing.T, svc *Service, id string) RunState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := svc.Wait(ctx, id)
	require.NoError(t, err)
	return st
}

func TestService_UploadDerivesMapping(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	view, err := svc.Upload(context.Background(), "students.csv",
		strings.NewReader("fullname,mail,track\nAna,ana@x.com,AI\nBo,not-an-email,AI"))
	require.NoError(t, err)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "students.csv", view.FileName)
	assert.Equal(t, []string{"fullname", "mail", "track"}, view.Headers)
	assert.Equal(t, 2, view.RowCount)
	assert.Equal(t, Mapping{Name: "fullname", Email: "mail", Course: "track"}, view.Mapping)
	assert.True(t, view.MappingComplete)
	assert.Equal(t, StateIdle, view.State)
	assert.Empty(t, view.Errors)

	view, err = svc.Validate(view.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Row 3: invalid email"}, view.Errors)
}

func TestService_UploadEmptyFile(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	view, err := svc.Upload(context.Background(), "blank.csv", strings.NewReader("\n \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{MsgEmptyFile}, view.Errors)
	assert.Empty(t, view.Headers)

	_, err = svc.Start(context.Background(), view.ID)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{MsgNoCSV}, verr.Errors)
}

func TestService_UploadTooLarge(t *testing.T) {
	svc, _ := newTestService(t, Options{MaxFileSize: 10})

	_, err := svc.Upload(context.Background(), "big.csv", strings.NewReader(validCSV))
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, 0, svc.SessionCount())
}

func TestService_StartRejectsHeadersOnly(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	view, err := svc.Upload(context.Background(), "h.csv", strings.NewReader("name,email,course"))
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), view.ID)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{MsgNoCSV}, verr.Errors)

	view, err = svc.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, view.State)
	assert.Nil(t, view.Run)
}

func TestService_StartBlockedByValidation(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	view, err := svc.Upload(context.Background(), "s.csv", strings.NewReader(validCSV))
	require.NoError(t, err)
	_, err = svc.SetMapping(view.ID, FieldCourse, "")
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), view.ID)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"Course column not mapped"}, verr.Errors)

	view, err = svc.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, view.State)
	assert.Equal(t, verr.Errors, view.Errors)
}

func TestService_RunCompletesAndRecordsHistory(t *testing.T) {
	svc, store := newTestService(t, Options{})

	var b strings.Builder
	b.WriteString("name,email,course\n")
	for i := 0; i < 20; i++ {
		b.WriteString("Student,student@example.com,AI Foundations\n")
	}

	view, err := svc.Upload(context.Background(), "twenty.csv", strings.NewReader(b.String()))
	require.NoError(t, err)

	view, err = svc.Start(context.Background(), view.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Run)
	assert.Equal(t, 20, view.Run.Total)

	st := waitImport(t, svc, view.ID)
	assert.Equal(t, StateCompleted, st.State)
	assert.Equal(t, 20, st.Processed)
	assert.Equal(t, 18, st.Succeeded)
	assert.Equal(t, 2, st.Failed)

	view, err = svc.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, "Imported 18 students • 2 failed", view.Summary)

	// History is written before the run slot is released.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.WaitForImports(ctx))

	raw, err := store.Get(context.Background(), kv.ImportKey(view.ID))
	require.NoError(t, err)
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	assert.Equal(t, "twenty.csv", rec.FileName)
	assert.Equal(t, 18, rec.Succeeded)
	assert.Equal(t, 2, rec.Failed)

	rec, err = svc.History(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, rec.State)
}

func TestService_OutcomeOption(t *testing.T) {
	svc, _ := newTestService(t, Options{Outcome: AlwaysSucceed})

	view, err := svc.Upload(context.Background(), "s.csv", strings.NewReader(validCSV))
	require.NoError(t, err)
	_, err = svc.Start(context.Background(), view.ID)
	require.NoError(t, err)

	st := waitImport(t, svc, view.ID)
	assert.Equal(t, 2, st.Succeeded)
	assert.Equal(t, "Imported 2 students", st.Summary())
}

func TestService_AlreadyStartedAndCancel(t *testing.T) {
	svc, _ := newTestService(t, Options{TickInterval: time.Hour})

	view, err := svc.Upload(context.Background(), "s.csv", strings.NewReader(validCSV))
	require.NoError(t, err)
	_, err = svc.Start(context.Background(), view.ID)
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), view.ID)
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	_, err = svc.Replace(context.Background(), view.ID, "other.csv", strings.NewReader(validCSV))
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	require.NoError(t, svc.Cancel(view.ID))
	st := waitImport(t, svc, view.ID)
	assert.Equal(t, StateCancelled, st.State)
	assert.False(t, st.Running)
}

func TestService_TooManyImports(t *testing.T) {
	svc, _ := newTestService(t, Options{
		TickInterval:  time.Hour,
		MaxConcurrent: 1,
		MaxWait:       20 * time.Millisecond,
	})
	ctx := context.Background()

	first, err := svc.Upload(ctx, "a.csv", strings.NewReader(validCSV))
	require.NoError(t, err)
	second, err := svc.Upload(ctx, "b.csv", strings.NewReader(validCSV))
	require.NoError(t, err)

	_, err = svc.Start(ctx, first.ID)
	require.NoError(t, err)

	_, err = svc.Start(ctx, second.ID)
	assert.ErrorIs(t, err, ErrTooManyImports)
	assert.Equal(t, 1, svc.LimiterStatus().Active)

	require.NoError(t, svc.Cancel(first.ID))
	waitImport(t, svc, first.ID)
}

func TestService_StartWaitsForFreedSlot(t *testing.T) {
	svc, _ := newTestService(t, Options{
		TickInterval:  time.Hour,
		MaxConcurrent: 1,
		MaxWait:       5 * time.Second,
	})
	ctx := context.Background()

	first, err := svc.Upload(ctx, "a.csv", strings.NewReader(validCSV))
	require.NoError(t, err)
	second, err := svc.Upload(ctx, "b.csv", strings.NewReader(validCSV))
	require.NoError(t, err)

	_, err = svc.Start(ctx, first.ID)
	require.NoError(t, err)

	started := make(chan error, 1)
	go func() {
		_, err := svc.Start(ctx, second.ID)
		started <- err
	}()

	select {
	case err := <-started:
		t.Fatalf("second Start returned %v while the only slot was held", err)
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, svc.Cancel(first.ID))
	select {
	case err := <-started:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("second Start did not take the freed slot")
	}
	assert.Equal(t, 1, svc.LimiterStatus().Active)
}

func TestService_SubscribeStreamsUntilDone(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	view, err := svc.Upload(context.Background(), "s.csv", strings.NewReader(validCSV))
	require.NoError(t, err)

	idle, err := svc.Subscribe(view.ID)
	require.NoError(t, err)
	st, ok := <-idle
	require.True(t, ok)
	assert.Equal(t, StateIdle, st.State)
	_, ok = <-idle
	assert.False(t, ok, "idle subscription should close after one snapshot")

	_, err = svc.Start(context.Background(), view.ID)
	require.NoError(t, err)
	ch, err := svc.Subscribe(view.ID)
	require.NoError(t, err)

	var last RunState
	for s := range ch {
		last = s
	}
	final := waitImport(t, svc, view.ID)
	assert.LessOrEqual(t, last.Processed, final.Processed)
	assert.Equal(t, StateCompleted, final.State)
}

func TestService_Replace(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	view, err := svc.Upload(ctx, "one.csv", strings.NewReader(validCSV))
	require.NoError(t, err)
	_, err = svc.SetMapping(view.ID, FieldName, "course")
	require.NoError(t, err)

	replaced, err := svc.Replace(ctx, view.ID, "two.csv", strings.NewReader("fullname,mail,track\nCy,cy@x.com,AI"))
	require.NoError(t, err)
	assert.Equal(t, view.ID, replaced.ID)
	assert.Equal(t, "two.csv", replaced.FileName)
	assert.Equal(t, Mapping{Name: "fullname", Email: "mail", Course: "track"}, replaced.Mapping)
	assert.Equal(t, 1, replaced.RowCount)

	_, err = svc.Replace(ctx, "nope", "x.csv", strings.NewReader(validCSV))
	assert.ErrorIs(t, err, ErrImportNotFound)
}

func TestService_NotFound(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.Get("missing")
	assert.ErrorIs(t, err, ErrImportNotFound)
	_, err = svc.SetMapping("missing", FieldName, "x")
	assert.ErrorIs(t, err, ErrImportNotFound)
	_, err = svc.Validate("missing")
	assert.ErrorIs(t, err, ErrImportNotFound)
	_, err = svc.Start(ctx, "missing")
	assert.ErrorIs(t, err, ErrImportNotFound)
	_, err = svc.Subscribe("missing")
	assert.ErrorIs(t, err, ErrImportNotFound)
	assert.ErrorIs(t, svc.Cancel("missing"), ErrImportNotFound)
	_, err = svc.History(ctx, "missing")
	assert.ErrorIs(t, err, ErrImportNotFound)
}

func TestService_SetMappingUnknownField(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	view, err := svc.Upload(context.Background(), "s.csv", strings.NewReader(validCSV))
	require.NoError(t, err)
	_, err = svc.SetMapping(view.ID, Field("phone"), "name")
	assert.True(t, errors.Is(err, ErrUnknownField))
}

func TestService_Sweep(t *testing.T) {
	svc, _ := newTestService(t, Options{Retention: time.Minute, TickInterval: time.Hour})
	ctx := context.Background()

	base := time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	idle, err := svc.Upload(ctx, "idle.csv", strings.NewReader(validCSV))
	require.NoError(t, err)
	running, err := svc.Upload(ctx, "running.csv", strings.NewReader(validCSV))
	require.NoError(t, err)
	_, err = svc.Start(ctx, running.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, svc.Sweep(base.Add(30*time.Second)))
	assert.Equal(t, 1, svc.Sweep(base.Add(2*time.Minute)))

	_, err = svc.Get(idle.ID)
	assert.ErrorIs(t, err, ErrImportNotFound)
	_, err = svc.Get(running.ID)
	assert.NoError(t, err, "running sessions are never swept")

	require.NoError(t, svc.Cancel(running.ID))
	waitImport(t, svc, running.ID)
}

func TestService_RunJanitorStops(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunJanitor did not stop after cancel")
	}
}
