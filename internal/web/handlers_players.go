package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/coursedesk/internal/learner"
)

func (s *Server) handleGetNotes(w http.ResponseWriter, r *http.Request) {
	text, err := s.deps.Learner.Notes(r.Context(), chi.URLParam(r, "playerID"), chi.URLParam(r, "lessonID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleSaveNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.deps.Learner.SaveNotes(r.Context(), chi.URLParam(r, "playerID"), chi.URLParam(r, "lessonID"), req.Text); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": req.Text})
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	thread, err := s.deps.Learner.Discussion(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]learner.Comment{"comments": thread})
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := s.deps.Learner.AddComment(r.Context(), chi.URLParam(r, "playerID"), req.Text)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// handleGetPlayerState answers 204 when no resume point was saved.
func (s *Server) handleGetPlayerState(w http.ResponseWriter, r *http.Request) {
	st, ok, err := s.deps.Learner.State(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSavePlayerState(w http.ResponseWriter, r *http.Request) {
	var req stateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	st := learner.State{SelectedID: req.SelectedID, Time: req.Time}
	if err := s.deps.Learner.SaveState(r.Context(), chi.URLParam(r, "playerID"), st); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
