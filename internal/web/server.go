// Package web provides the HTTP API for the course dashboard: students,
// segments, the bulk action panel, CSV imports with live progress, and the
// learner persistence endpoints of the course player.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/coursedesk/internal/apperr"
	"github.com/JonMunkholm/coursedesk/internal/config"
	"github.com/JonMunkholm/coursedesk/internal/importer"
	"github.com/JonMunkholm/coursedesk/internal/learner"
	"github.com/JonMunkholm/coursedesk/internal/roster"
	mw "github.com/JonMunkholm/coursedesk/internal/web/middleware"
)

// Deps are the services the handlers call into.
type Deps struct {
	Students roster.Source
	Segments *roster.Segments
	Panels   *roster.Panels
	Imports  *importer.Service
	Learner  *learner.Store
}

// Server is the HTTP server.
type Server struct {
	cfg  *config.Config
	deps Deps

	router *chi.Mux
	server *http.Server
}

// NewServer wires middleware and routes.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(s.cfg.Security))

		// Progress streams must outlive the request timeout and skip compression.
		r.Get("/imports/{importID}/progress", s.handleImportProgress)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Compress(5))
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

			r.Get("/students", s.handleListStudents)
			r.Get("/courses", s.handleListCourses)

			r.Get("/segments", s.handleListSegments)
			r.Post("/segments", s.handleCreateSegment)
			r.Put("/segments/{segmentID}", s.handleUpdateSegment)
			r.Delete("/segments/{segmentID}", s.handleDeleteSegment)
			r.Get("/segments/{segmentID}/students", s.handleSegmentStudents)

			r.Post("/bulk", s.handleCreatePanel)
			r.Get("/bulk/{panelID}", s.handleGetPanel)
			r.Delete("/bulk/{panelID}", s.handleDeletePanel)
			r.Post("/bulk/{panelID}/select-all", s.handleToggleAll)
			r.Post("/bulk/{panelID}/students/{studentID}/toggle", s.handleToggleStudent)
			r.Post("/bulk/{panelID}/actions", s.handleBulkAction)
			r.Post("/bulk/{panelID}/actions/cancel", s.handleCancelAction)
			r.Delete("/bulk/{panelID}/banner", s.handleDismissBanner)
			r.Get("/bulk/{panelID}/export", s.handleExport)

			r.Group(func(r chi.Router) {
				if s.cfg.Rate.Enabled {
					r.Use(newRateLimiter(s.cfg.Rate.ImportLimit, time.Minute).middleware)
				}
				r.Post("/imports", s.handleUpload)
				r.Post("/imports/{importID}/start", s.handleStartImport)
			})
			r.Get("/imports/status", s.handleImportStatus)
			r.Get("/imports/{importID}", s.handleGetImport)
			r.Put("/imports/{importID}/file", s.handleReplaceFile)
			r.Put("/imports/{importID}/mapping", s.handleSetMapping)
			r.Post("/imports/{importID}/validate", s.handleValidateImport)
			r.Post("/imports/{importID}/cancel", s.handleCancelImport)
			r.Get("/imports/{importID}/history", s.handleImportHistory)

			r.Get("/players/{playerID}/lessons/{lessonID}/notes", s.handleGetNotes)
			r.Put("/players/{playerID}/lessons/{lessonID}/notes", s.handleSaveNotes)
			r.Get("/players/{playerID}/discussion", s.handleListComments)
			r.Post("/players/{playerID}/discussion", s.handleAddComment)
			r.Get("/players/{playerID}/state", s.handleGetPlayerState)
			r.Put("/players/{playerID}/state", s.handleSavePlayerState)
		})
	})
}

// Start listens on the configured address. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"imports": s.deps.Imports.LimiterStatus(),
	})
}

func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimiter is a fixed-window counter per client address. Stale entries
// are dropped lazily, at most once per window.
type rateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rate      int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > rl.window {
		for k, v := range rl.visitors {
			if now.Sub(v.lastReset) > rl.window*2 {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.visitors[key]
	if !ok || now.Sub(v.lastReset) > rl.window {
		rl.visitors[key] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return rl.rate > 0
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientKey(r)) {
			w.Header().Set("Retry-After", "60")
			respondError(w, r, apperr.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// writeJSON encodes v with the given status. Encoding errors are logged
// since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode", "error", err)
	}
}
