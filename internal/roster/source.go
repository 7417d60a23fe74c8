package roster

import (
	"context"
	"time"
)

// Source fetches the roster.
type Source interface {
	Students(ctx context.Context) ([]Student, error)
}

// Static serves a fixed roster.
type Static struct {
	students []Student
}

// NewStatic returns a Source over a copy of students.
func NewStatic(students []Student) *Static {
	return &Static{students: append([]Student(nil), students...)}
}

func (s *Static) Students(context.Context) ([]Student, error) {
	return append([]Student(nil), s.students...), nil
}

// Delayed wraps a Source with a fixed latency before each fetch.
type Delayed struct {
	Source Source
	Delay  time.Duration
}

// Students waits Delay, then fetches. It returns ctx.Err() if ctx ends first.
func (d *Delayed) Students(ctx context.Context) ([]Student, error) {
	if d.Delay > 0 {
		timer := time.NewTimer(d.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return d.Source.Students(ctx)
}
