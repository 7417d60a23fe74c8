package web

// errors.go turns handler errors into responses. The technical error is
// logged with the request id; the client gets the coded user message from
// apperr, as an HTML fragment for HTMX callers and JSON otherwise.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/coursedesk/internal/apperr"
	"github.com/JonMunkholm/coursedesk/internal/importer"
	"github.com/JonMunkholm/coursedesk/internal/logging"
	"github.com/JonMunkholm/coursedesk/internal/web/views"
)

// ErrorResponse is the JSON body of a failed API call.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Action  string            `json:"action,omitempty"`
	Code    string            `json:"code"`
	Errors  []string          `json:"errors,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// requestError is a rejected request body, keyed by JSON field name.
type requestError struct {
	fields map[string]string
}

func (e *requestError) Error() string {
	return "invalid request"
}

func (e *requestError) Unwrap() error {
	return apperr.ErrInvalidRequest
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := apperr.MapError(err)
	status := msg.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	log := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	}
	if status >= 500 {
		log.Error("request error", args...)
	} else {
		log.Warn("request error", args...)
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		var verr *importer.ValidationError
		if errors.As(err, &verr) {
			_ = views.ValidationList(verr.Errors).Render(r.Context(), w)
			return
		}
		_ = views.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
		return
	}

	body := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var verr *importer.ValidationError
	if errors.As(err, &verr) {
		body.Errors = verr.Errors
	}
	var rerr *requestError
	if errors.As(err, &rerr) {
		body.Fields = rerr.fields
	}
	writeJSON(w, status, body)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
