package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/coursedesk/internal/kv"
	"github.com/JonMunkholm/coursedesk/internal/logging"
)

var (
	// ErrImportNotFound is returned for an unknown or evicted session id.
	ErrImportNotFound = errors.New("import not found")

	// ErrAlreadyStarted is returned when a session's run is still ticking.
	ErrAlreadyStarted = errors.New("import already running")
)

// PreviewRows is how many leading rows a View carries.
const PreviewRows = 5

// Options tunes a Service. Zero values take defaults.
type Options struct {
	TickInterval  time.Duration
	Outcome       Outcome
	MaxFileSize   int64
	MaxConcurrent int
	MaxWait       time.Duration
	Retention     time.Duration
}

// Service owns import sessions.
type Service struct {
	opts    Options
	limiter *Limiter
	history kv.Store
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	id        string
	fileName  string
	doc       *Document
	mapping   Mapping
	errors    []string
	run       *Run
	startedAt time.Time
	touched   time.Time
}

// View is the read model of a session.
type View struct {
	ID              string     `json:"id"`
	FileName        string     `json:"fileName"`
	Headers         []string   `json:"headers"`
	RowCount        int        `json:"rowCount"`
	Preview         [][]string `json:"preview"`
	Mapping         Mapping    `json:"mapping"`
	MappingComplete bool       `json:"mappingComplete"`
	Errors          []string   `json:"errors"`
	State           State      `json:"state"`
	Run             *RunState  `json:"run,omitempty"`
	Summary         string     `json:"summary,omitempty"`
}

// Record is the history entry written when a run stops.
type Record struct {
	ID         string    `json:"id"`
	FileName   string    `json:"fileName"`
	State      State     `json:"state"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Summary    string    `json:"summary"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// NewService creates a Service. history may be nil to skip recording runs.
func NewService(opts Options, history kv.Store) *Service {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Outcome == nil {
		opts.Outcome = EveryNth(DefaultFailEvery)
	}
	if opts.Retention <= 0 {
		opts.Retention = 5 * time.Minute
	}

	return &Service{
		opts:     opts,
		limiter:  NewLimiter(opts.MaxConcurrent, opts.MaxWait),
		history:  history,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Upload parses r into a new session. An empty file still creates the
// session, carrying the single error "Empty CSV file".
func (s *Service) Upload(ctx context.Context, fileName string, r io.Reader) (View, error) {
	sess := &session{id: uuid.New().String()}
	if err := s.load(sess, fileName, r); err != nil {
		return View{}, err
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	view := sess.view()
	s.mu.Unlock()

	logging.WithFields(ctx, "import_id", sess.id).Info("csv uploaded",
		"file", fileName,
		"headers", len(view.Headers),
		"rows", view.RowCount,
	)
	return view, nil
}

// Replace swaps the session's document for a new upload, re-deriving the
// mapping and dropping the previous run.
func (s *Service) Replace(ctx context.Context, id, fileName string, r io.Reader) (View, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	running := ok && sess.running()
	s.mu.RUnlock()
	if !ok {
		return View{}, ErrImportNotFound
	}
	if running {
		return View{}, ErrAlreadyStarted
	}

	fresh := &session{id: id}
	if err := s.load(fresh, fileName, r); err != nil {
		return View{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[id]; !ok {
		return View{}, ErrImportNotFound
	} else if cur.running() {
		return View{}, ErrAlreadyStarted
	}
	s.sessions[id] = fresh

	logging.WithFields(ctx, "import_id", id).Info("csv replaced", "file", fileName)
	return fresh.view(), nil
}

func (s *Service) load(sess *session, fileName string, r io.Reader) error {
	doc, err := ParseReader(r, s.opts.MaxFileSize)
	switch {
	case errors.Is(err, ErrEmptyDocument):
		sess.errors = []string{MsgEmptyFile}
	case err != nil:
		return err
	default:
		sess.doc = doc
		sess.mapping = AutoMap(doc.Headers)
	}
	sess.fileName = fileName
	sess.touched = s.now()
	return nil
}

// Get returns the session view.
func (s *Service) Get(id string) (View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return View{}, ErrImportNotFound
	}
	return sess.view(), nil
}

// SetMapping overrides the header for one field.
func (s *Service) SetMapping(id string, f Field, header string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return View{}, ErrImportNotFound
	}
	if err := sess.mapping.Set(f, header); err != nil {
		return View{}, err
	}
	sess.touched = s.now()
	return sess.view(), nil
}

// Validate runs the validator and stores its result on the session.
func (s *Service) Validate(id string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return View{}, ErrImportNotFound
	}
	sess.errors = sess.check()
	sess.touched = s.now()
	return sess.view(), nil
}

// Start moves the session from idle to running. It returns a
// *ValidationError when the document has no rows or fails validation,
// ErrAlreadyStarted while a run is ticking, and ErrTooManyImports when no
// run slot frees up in time.
//
// The run is detached from ctx; use Cancel to stop it.
func (s *Service) Start(ctx context.Context, id string) (View, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return View{}, ErrImportNotFound
	}
	if sess.running() {
		s.mu.Unlock()
		return View{}, ErrAlreadyStarted
	}
	sess.errors = sess.check()
	sess.touched = s.now()
	if len(sess.errors) > 0 {
		errs := append([]string(nil), sess.errors...)
		s.mu.Unlock()
		return View{}, &ValidationError{Errors: errs}
	}
	rows := sess.doc.Rows
	s.mu.Unlock()

	if !s.limiter.TryAcquire() {
		logging.WithFields(ctx, "import_id", id).Debug("waiting for import slot")
		if err := s.limiter.Acquire(ctx); err != nil {
			return View{}, err
		}
	}

	s.mu.Lock()
	if cur, ok := s.sessions[id]; !ok || cur != sess || sess.running() {
		s.mu.Unlock()
		s.limiter.Release()
		if !ok || cur != sess {
			return View{}, ErrImportNotFound
		}
		return View{}, ErrAlreadyStarted
	}
	run := StartRun(context.Background(), rows, s.opts.TickInterval, s.opts.Outcome)
	sess.run = run
	sess.startedAt = s.now()
	view := sess.view()
	s.mu.Unlock()

	log := logging.WithFields(ctx, "import_id", id)
	log.Info("import started", "rows", len(rows))

	go s.finish(sess, run, slog.Default().With("import_id", id))
	return view, nil
}

// finish waits for run to stop, frees its slot and records the outcome.
func (s *Service) finish(sess *session, run *Run, log *slog.Logger) {
	defer s.limiter.Release()
	<-run.Done()

	st := run.State()
	s.mu.Lock()
	sess.touched = s.now()
	rec := Record{
		ID:         sess.id,
		FileName:   sess.fileName,
		State:      st.State,
		Total:      st.Total,
		Succeeded:  st.Succeeded,
		Failed:     st.Failed,
		Summary:    st.Summary(),
		StartedAt:  sess.startedAt,
		FinishedAt: sess.touched,
	}
	s.mu.Unlock()

	log.Info("import finished",
		"state", st.State,
		"succeeded", st.Succeeded,
		"failed", st.Failed,
		"duration_ms", rec.FinishedAt.Sub(rec.StartedAt).Milliseconds(),
	)

	if s.history == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		log.Error("encode import record", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.history.Set(ctx, kv.ImportKey(rec.ID), string(data)); err != nil {
		log.Error("record import history", "error", err)
	}
}

// Subscribe returns progress snapshots for the session's current run.
// The channel is closed when the run stops.
func (s *Service) Subscribe(id string) (<-chan RunState, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	var run *Run
	if ok {
		run = sess.run
	}
	s.mu.RUnlock()

	if !ok {
		return nil, ErrImportNotFound
	}
	if run == nil {
		ch := make(chan RunState, 1)
		ch <- RunState{State: StateIdle}
		close(ch)
		return ch, nil
	}
	return run.Subscribe(), nil
}

// Cancel stops the session's run. Cancelling an idle or finished session is a no-op.
func (s *Service) Cancel(id string) error {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	var run *Run
	if ok {
		run = sess.run
	}
	s.mu.RUnlock()

	if !ok {
		return ErrImportNotFound
	}
	if run != nil {
		run.Cancel()
	}
	return nil
}

// Wait blocks until the session's run stops.
func (s *Service) Wait(ctx context.Context, id string) (RunState, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	var run *Run
	if ok {
		run = sess.run
	}
	s.mu.RUnlock()

	if !ok {
		return RunState{}, ErrImportNotFound
	}
	if run == nil {
		return RunState{State: StateIdle}, nil
	}
	return run.Wait(ctx)
}

// History loads the recorded outcome of a finished run.
func (s *Service) History(ctx context.Context, id string) (Record, error) {
	if s.history == nil {
		return Record{}, ErrImportNotFound
	}
	raw, err := s.history.Get(ctx, kv.ImportKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return Record{}, ErrImportNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, fmt.Errorf("decode import record: %w", err)
	}
	return rec, nil
}

// LimiterStatus exposes the run limiter state.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until no run holds a slot.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// CancelAll stops every running import.
func (s *Service) CancelAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.run != nil {
			sess.run.Cancel()
		}
	}
}

func (sess *session) running() bool {
	return sess.run != nil && sess.run.State().Running
}

func (sess *session) check() []string {
	return Check(sess.doc, sess.mapping)
}

func (sess *session) view() View {
	v := View{
		ID:       sess.id,
		FileName: sess.fileName,
		Mapping:  sess.mapping,
		Errors:   append([]string(nil), sess.errors...),
		State:    StateIdle,
	}
	if sess.doc != nil {
		v.Headers = sess.doc.Headers
		v.RowCount = len(sess.doc.Rows)
		v.Preview = sess.doc.Preview(PreviewRows)
		v.MappingComplete = sess.mapping.Complete(sess.doc)
	}
	if sess.run != nil {
		st := sess.run.State()
		v.Run = &st
		v.State = st.State
		v.Summary = st.Summary()
	}
	return v
}
