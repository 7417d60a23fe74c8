package importer

// simulator.go drives a simulated import run.
//
// A Run processes exactly one row per tick. Each row's outcome comes from an
// Outcome function; failures are counted and never stop the run. Progress is
// fanned out to subscribers with non-blocking sends so a slow reader cannot
// stall the ticker.

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is the lifecycle position of an import.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// DefaultTickInterval is the delay between processed rows.
const DefaultTickInterval = 120 * time.Millisecond

// DefaultFailEvery is the N of the default every-Nth-row failure rule.
const DefaultFailEvery = 7

// Outcome decides whether a row imports successfully. index is the 1-based
// position of the row within the run.
type Outcome func(index int, row []string) bool

// EveryNth fails every nth processed row and accepts the rest.
// n <= 0 accepts every row.
func EveryNth(n int) Outcome {
	return func(index int, _ []string) bool {
		if n <= 0 {
			return true
		}
		return index%n != 0
	}
}

// AlwaysSucceed accepts every row.
func AlwaysSucceed(int, []string) bool { return true }

// RunState is a snapshot of a run. Processed == Succeeded + Failed <= Total,
// and Running is false once Processed == Total or the run was cancelled.
type RunState struct {
	State     State `json:"state"`
	Processed int   `json:"processed"`
	Succeeded int   `json:"succeeded"`
	Failed    int   `json:"failed"`
	Total     int   `json:"total"`
	Running   bool  `json:"running"`
}

// Percent returns the progress as a rounded percentage (0-100).
func (s RunState) Percent() int {
	if s.Total == 0 {
		if s.State == StateCompleted {
			return 100
		}
		return 0
	}
	return (s.Processed*100 + s.Total/2) / s.Total
}

// Summary is the banner shown once the run stops. It is empty while running.
func (s RunState) Summary() string {
	switch s.State {
	case StateCompleted:
		if s.Failed > 0 {
			return fmt.Sprintf("Imported %d students • %d failed", s.Succeeded, s.Failed)
		}
		return fmt.Sprintf("Imported %d students", s.Succeeded)
	case StateCancelled:
		return fmt.Sprintf("Import cancelled after %d of %d rows", s.Processed, s.Total)
	}
	return ""
}

// Run is one simulated import in progress.
type Run struct {
	rows     [][]string
	interval time.Duration
	outcome  Outcome
	cancel   context.CancelFunc
	done     chan struct{}

	mu        sync.Mutex
	state     RunState
	listeners []chan RunState
	stopped   bool
}

// StartRun begins processing rows on its own goroutine. The run stops when
// every row is processed or ctx is cancelled.
func StartRun(ctx context.Context, rows [][]string, interval time.Duration, outcome Outcome) *Run {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if outcome == nil {
		outcome = EveryNth(DefaultFailEvery)
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &Run{
		rows:     rows,
		interval: interval,
		outcome:  outcome,
		cancel:   cancel,
		done:     make(chan struct{}),
		state: RunState{
			State:   StateRunning,
			Total:   len(rows),
			Running: true,
		},
	}

	go r.loop(ctx)
	return r
}

func (r *Run) loop(ctx context.Context) {
	defer func() {
		r.cancel()
		r.closeListeners()
		close(r.done)
	}()

	if len(r.rows) == 0 {
		r.finish(StateCompleted)
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.finish(StateCancelled)
			return
		case <-ticker.C:
			if r.step() {
				return
			}
		}
	}
}

// step processes the next row and reports whether the run is complete.
func (r *Run) step() bool {
	r.mu.Lock()
	idx := r.state.Processed
	ok := r.outcome(idx+1, r.rows[idx])
	r.state.Processed++
	if ok {
		r.state.Succeeded++
	} else {
		r.state.Failed++
	}
	complete := r.state.Processed == r.state.Total
	if complete {
		r.state.Running = false
		r.state.State = StateCompleted
	}
	snapshot := r.state
	r.mu.Unlock()

	r.notify(snapshot)
	return complete
}

func (r *Run) finish(state State) {
	r.mu.Lock()
	r.state.Running = false
	r.state.State = state
	snapshot := r.state
	r.mu.Unlock()

	r.notify(snapshot)
}

// notify sends a snapshot to all listeners without blocking.
func (r *Run) notify(s RunState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.listeners {
		select {
		case ch <- s:
		default:
			// Skip slow listeners
		}
	}
}

func (r *Run) closeListeners() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.listeners {
		close(ch)
	}
	r.listeners = nil
	r.stopped = true
}

// State returns the current snapshot.
func (r *Run) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Subscribe returns a channel receiving progress snapshots, starting with
// the current one. The channel is closed when the run stops.
func (r *Run) Subscribe() <-chan RunState {
	ch := make(chan RunState, 10)

	r.mu.Lock()
	defer r.mu.Unlock()

	ch <- r.state
	if r.stopped {
		close(ch)
	} else {
		r.listeners = append(r.listeners, ch)
	}
	return ch
}

// Cancel stops the run. Rows already processed keep their outcome.
func (r *Run) Cancel() {
	r.cancel()
}

// Done is closed when the run stops.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run stops or ctx is done.
func (r *Run) Wait(ctx context.Context) (RunState, error) {
	select {
	case <-r.done:
		return r.State(), nil
	case <-ctx.Done():
		return r.State(), ctx.Err()
	}
}
