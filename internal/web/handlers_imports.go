package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/coursedesk/internal/apperr"
	"github.com/JonMunkholm/coursedesk/internal/importer"
	"github.com/JonMunkholm/coursedesk/internal/web/views"
)

// multipartOverhead is allowed on top of the file size limit for the form
// envelope.
const multipartOverhead = 1 << 20

// progressEvent is the payload of one SSE progress event.
type progressEvent struct {
	importer.RunState
	Percent int    `json:"percent"`
	Summary string `json:"summary,omitempty"`
}

func newProgressEvent(st importer.RunState) progressEvent {
	return progressEvent{RunState: st, Percent: st.Percent(), Summary: st.Summary()}
}

// readUpload extracts the "file" field of a multipart form. Only .csv files
// or text/csv parts are accepted.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (multipart.File, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", importer.ErrFileTooLarge
		}
		return nil, "", fmt.Errorf("%w: %v", apperr.ErrNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", apperr.ErrNoFile
	}
	ct := header.Header.Get("Content-Type")
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") && !strings.HasPrefix(ct, "text/csv") {
		file.Close()
		return nil, "", fmt.Errorf("%w: %s", apperr.ErrNotCSV, header.Filename)
	}
	return file, header.Filename, nil
}

// handleUpload parses an uploaded CSV into a new import session.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, name, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer file.Close()

	view, err := s.deps.Imports.Upload(r.Context(), name, file)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// handleReplaceFile swaps the session's file for a new upload.
func (s *Server) handleReplaceFile(w http.ResponseWriter, r *http.Request) {
	file, name, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer file.Close()

	view, err := s.deps.Imports.Replace(r.Context(), chi.URLParam(r, "importID"), name, file)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Imports.Get(chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSetMapping(w http.ResponseWriter, r *http.Request) {
	var req mappingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	field, err := importer.ParseField(req.Field)
	if err != nil {
		respondError(w, r, err)
		return
	}
	view, err := s.deps.Imports.SetMapping(chi.URLParam(r, "importID"), field, req.Header)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleValidateImport runs the validator. Validation errors are data, so
// the response is 200 either way.
func (s *Server) handleValidateImport(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Imports.Validate(chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = views.ValidationList(view.Errors).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleStartImport moves the session from idle to running. Invalid data
// answers 422 with the errors.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Imports.Start(r.Context(), chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, view)
}

func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "importID")
	if err := s.deps.Imports.Cancel(id); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "id": id})
}

func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Imports.History(r.Context(), chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"limiter":  s.deps.Imports.LimiterStatus(),
		"sessions": s.deps.Imports.SessionCount(),
	})
}

// encodeProgress renders one event payload: JSON by default, or the
// progress bar fragment for ?format=html (htmx sse extension).
func encodeProgress(r *http.Request, st importer.RunState) ([]byte, error) {
	if r.URL.Query().Get("format") == "html" {
		var buf bytes.Buffer
		err := views.ImportProgress(st).Render(r.Context(), &buf)
		return buf.Bytes(), err
	}
	return json.Marshal(newProgressEvent(st))
}

// handleImportProgress streams run snapshots as Server-Sent Events. The
// event id is the percent complete; a reconnecting client passes the last
// one it saw (Last-Event-ID or ?lastEventId) and earlier events are
// skipped. A final "complete" event carries the summary.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	lastEventID := -1
	lastRaw := r.Header.Get("Last-Event-ID")
	if lastRaw == "" {
		lastRaw = r.URL.Query().Get("lastEventId")
	}
	if lastRaw != "" {
		if n, err := strconv.Atoi(lastRaw); err == nil {
			lastEventID = n
		}
	}

	id := chi.URLParam(r, "importID")
	updates, err := s.deps.Imports.Subscribe(id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	rc := http.NewResponseController(w)

	var last importer.RunState
	for {
		select {
		case st, ok := <-updates:
			if !ok {
				// Snapshots can be dropped for slow readers; the final state is authoritative.
				if v, err := s.deps.Imports.Get(id); err == nil && v.Run != nil {
					last = *v.Run
				}
				data, _ := encodeProgress(r, last)
				writeEvent(w, "complete", -1, data)
				_ = rc.Flush()
				return
			}
			last = st
			pct := st.Percent()
			if pct <= lastEventID && st.Running {
				continue
			}
			data, err := encodeProgress(r, st)
			if err != nil {
				return
			}
			writeEvent(w, "progress", pct, data)
			if err := rc.Flush(); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w io.Writer, event string, id int, data []byte) {
	if id >= 0 {
		fmt.Fprintf(w, "id: %d\n", id)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
