package importer

// limiter.go caps how many import runs tick at once. When every slot is
// taken, Acquire waits up to maxWait before failing with ErrTooManyImports.
// WaitForDrain supports graceful shutdown.

import (
	"context"
	"errors"
	"time"
)

// ErrTooManyImports is returned when no run slot frees up within the wait
// window. Clients should retry after a short delay.
var ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

// DefaultMaxConcurrent is the default limit for parallel runs.
const DefaultMaxConcurrent = 5

// DefaultMaxWait is how long to wait for a slot before rejecting.
const DefaultMaxWait = 5 * time.Second

// Limiter is a counting semaphore over import runs.
type Limiter struct {
	slots   chan struct{}
	maxWait time.Duration
}

// LimiterStatus is a point-in-time view of a Limiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// NewLimiter allows at most maxConcurrent runs. Non-positive arguments take
// the package defaults.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Limiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait. The caller must Release it.
// A cancelled ctx returns ctx.Err() rather than ErrTooManyImports.
func (l *Limiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyImports
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *Limiter) Release() {
	<-l.slots
}

// ActiveCount returns the number of held slots.
func (l *Limiter) ActiveCount() int {
	return len(l.slots)
}

// Status returns the current limiter state.
func (l *Limiter) Status() LimiterStatus {
	active := len(l.slots)
	return LimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
	}
}

// WaitForDrain blocks until no slot is held or ctx is done.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
