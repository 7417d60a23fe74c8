package roster

// panels.go holds the registry of open bulk panels.
//
// Every lookup touches the panel. A panel left untouched for the TTL is
// dropped by Sweep, which RunJanitor calls on a ticker.

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultPanelTTL is the idle lifetime used when NewPanels is given none.
const DefaultPanelTTL = 30 * time.Minute

// Panels is an in-memory registry of bulk panels.
type Panels struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	panels  map[string]*Panel
	touched map[string]time.Time
}

// NewPanels returns an empty registry whose panels expire after ttl of
// inactivity. A non-positive ttl uses DefaultPanelTTL.
func NewPanels(ttl time.Duration) *Panels {
	if ttl <= 0 {
		ttl = DefaultPanelTTL
	}
	return &Panels{
		ttl:     ttl,
		now:     time.Now,
		panels:  make(map[string]*Panel),
		touched: make(map[string]time.Time),
	}
}

// Create registers a new panel over roster.
func (r *Panels) Create(roster []Student) *Panel {
	p := NewPanel(roster)
	r.mu.Lock()
	r.panels[p.id] = p
	r.touched[p.id] = r.now()
	r.mu.Unlock()
	return p
}

// Get looks up a panel and marks it as used.
func (r *Panels) Get(id string) (*Panel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.panels[id]
	if !ok {
		return nil, ErrPanelNotFound
	}
	r.touched[id] = r.now()
	return p, nil
}

// Delete drops a panel.
func (r *Panels) Delete(id string) {
	r.mu.Lock()
	delete(r.panels, id)
	delete(r.touched, id)
	r.mu.Unlock()
}

// Sweep drops panels idle for at least the TTL as of now and returns how
// many were removed.
func (r *Panels) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, at := range r.touched {
		if now.Sub(at) >= r.ttl {
			delete(r.panels, id)
			delete(r.touched, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is cancelled. A non-positive
// interval sweeps once a minute.
func (r *Panels) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	slog.Info("panel janitor started", "interval", interval, "ttl", r.ttl)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("panel janitor stopped")
			return
		case <-ticker.C:
			if n := r.Sweep(r.now()); n > 0 {
				slog.Debug("evicted bulk panels", "count", n)
			}
		}
	}
}
