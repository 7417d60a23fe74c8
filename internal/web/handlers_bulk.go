package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/coursedesk/internal/logging"
	"github.com/JonMunkholm/coursedesk/internal/roster"
	"github.com/JonMunkholm/coursedesk/internal/web/views"
)

// handleCreatePanel opens a bulk panel over the current roster.
func (s *Server) handleCreatePanel(w http.ResponseWriter, r *http.Request) {
	students, err := s.deps.Students.Students(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	p := s.deps.Panels.Create(students)
	logging.WithFields(r.Context(), "panel_id", p.ID()).Info("bulk panel opened", "students", len(students))
	writeJSON(w, http.StatusCreated, p.State())
}

func (s *Server) panel(w http.ResponseWriter, r *http.Request) (*roster.Panel, bool) {
	p, err := s.deps.Panels.Get(chi.URLParam(r, "panelID"))
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	return p, true
}

func (s *Server) handleGetPanel(w http.ResponseWriter, r *http.Request) {
	p, ok := s.panel(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p.State())
}

func (s *Server) handleDeletePanel(w http.ResponseWriter, r *http.Request) {
	s.deps.Panels.Delete(chi.URLParam(r, "panelID"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleAll(w http.ResponseWriter, r *http.Request) {
	p, ok := s.panel(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p.ToggleAll())
}

func (s *Server) handleToggleStudent(w http.ResponseWriter, r *http.Request) {
	p, ok := s.panel(w, r)
	if !ok {
		return
	}
	st, err := p.Toggle(chi.URLParam(r, "studentID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleBulkAction begins or performs an action. A remove without confirm
// answers 409 with the confirmation prompt for HTMX callers.
func (s *Server) handleBulkAction(w http.ResponseWriter, r *http.Request) {
	p, ok := s.panel(w, r)
	if !ok {
		return
	}
	req, err := decodeAction(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	action := roster.Action(req.Action)

	if req.Step == "begin" {
		st, err := p.Begin(action)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if isHTMX(r) && st.ConfirmRemove {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_ = views.ConfirmRemove(st).Render(r.Context(), w)
			return
		}
		writeJSON(w, http.StatusOK, st)
		return
	}

	banner, err := p.Perform(roster.ActionRequest{
		Action:  action,
		Course:  req.Course,
		Subject: req.Subject,
		Body:    req.Body,
		Confirm: req.Confirm,
	})
	if errors.Is(err, roster.ErrConfirmRequired) && isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusConflict)
		_ = views.ConfirmRemove(p.State()).Render(r.Context(), w)
		return
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(), "panel_id", p.ID()).Info("bulk action performed",
		"action", action,
		"selected", p.State().Count,
	)

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = views.Banner(p.ID(), banner).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, p.State())
}

func (s *Server) handleCancelAction(w http.ResponseWriter, r *http.Request) {
	p, ok := s.panel(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p.CancelAction())
}

func (s *Server) handleDismissBanner(w http.ResponseWriter, r *http.Request) {
	p, ok := s.panel(w, r)
	if !ok {
		return
	}
	st := p.DismissBanner()
	if isHTMX(r) {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleExport downloads the selection, or the whole roster when nothing
// is selected.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	p, ok := s.panel(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, roster.ExportFileName))
	_, _ = w.Write([]byte(p.Export()))
}
