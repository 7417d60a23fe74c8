package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/coursedesk/internal/roster"
)

type studentsResponse struct {
	Students []roster.Student `json:"students"`
	Total    int              `json:"total"`
}

// handleListStudents returns the roster narrowed by q, course, status,
// from and to.
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := roster.ParseDate(q.Get("from"), false)
	if err != nil {
		respondError(w, r, err)
		return
	}
	to, err := roster.ParseDate(q.Get("to"), true)
	if err != nil {
		respondError(w, r, err)
		return
	}

	students, err := s.deps.Students.Students(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	filtered := roster.Apply(students, roster.Filter{
		Query:  q.Get("q"),
		Course: q.Get("course"),
		Status: q.Get("status"),
		From:   from,
		To:     to,
	})
	writeJSON(w, http.StatusOK, studentsResponse{Students: filtered, Total: len(students)})
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	students, err := s.deps.Students.Students(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	courses := roster.Courses(students)
	if courses == nil {
		courses = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"courses": courses})
}

func (s *Server) handleListSegments(w http.ResponseWriter, r *http.Request) {
	segs, err := s.deps.Segments.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]roster.Segment{"segments": segs})
}

func (s *Server) handleCreateSegment(w http.ResponseWriter, r *http.Request) {
	var req segmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	seg, err := s.deps.Segments.Create(r.Context(), req.Name, req.Rules)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, seg)
}

func (s *Server) handleUpdateSegment(w http.ResponseWriter, r *http.Request) {
	var req segmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	seg, err := s.deps.Segments.Update(r.Context(), chi.URLParam(r, "segmentID"), req.Name, req.Rules)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, seg)
}

func (s *Server) handleDeleteSegment(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Segments.Delete(r.Context(), chi.URLParam(r, "segmentID")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSegmentStudents(w http.ResponseWriter, r *http.Request) {
	seg, err := s.deps.Segments.Get(r.Context(), chi.URLParam(r, "segmentID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	students, err := s.deps.Students.Students(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	members := seg.Members(students)
	writeJSON(w, http.StatusOK, map[string]any{
		"segment":  seg,
		"students": members,
		"total":    len(members),
	})
}
