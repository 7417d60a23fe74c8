package importer

// janitor.go evicts stale import sessions.
//
// A session is stale once it has not been touched for the retention window
// and has no run ticking. Running sessions are never evicted, so a progress
// stream can always find its session.

import (
	"context"
	"log/slog"
	"time"
)

// Sweep evicts sessions idle longer than the retention window as of now and
// returns how many were removed.
func (s *Service) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.running() {
			continue
		}
		if now.Sub(sess.touched) >= s.opts.Retention {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is cancelled. A non-positive
// interval sweeps once a minute.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	slog.Info("import janitor started", "interval", interval, "retention", s.opts.Retention)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("import janitor stopped")
			return
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				slog.Debug("evicted import sessions", "count", n)
			}
		}
	}
}

// SessionCount reports how many sessions are held.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
