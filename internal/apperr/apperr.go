// Package apperr turns technical errors into coded, user-facing messages.
//
// # Error Codes Reference
//
// Users can quote the code to support staff. Codes are grouped by category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: the CSV exceeds the upload limit
//	FILE002 - Empty file: the CSV has no header line
//	FILE003 - Not a CSV: the upload is not a .csv / text/csv file
//	FILE004 - No file: the multipart form carried no file field
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Import invalid: mapping incomplete or rows with bad emails
//	VAL002 - Unknown mapping field: only name, email and course can be mapped
//	VAL003 - Invalid request: a request body failed validation
//	VAL004 - Invalid segment rules
//	VAL005 - Empty comment
//	VAL006 - Invalid date
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Import not found: the session expired or never existed
//	IMP002 - Import already running
//	IMP003 - System busy: too many imports in progress
//
// # Bulk Action Errors (BLK001-BLK099)
//
//	BLK001 - No students selected
//	BLK002 - Remove needs confirmation
//	BLK003 - Unknown action
//	BLK004 - Student not on roster
//	BLK005 - Panel not found
//	BLK006 - Segment not found
//	BLK007 - Default segment is read-only
//
// # Storage Errors (STO001-STO099)
//
//	STO001 - Not found in storage
//	STO002 - Storage unavailable (connection refused/reset)
//	STO003 - Storage timeout
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled
//	REQ002 - Request timed out
//	REQ003 - Rate limited
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the logs for the technical error.
//
// # Matching
//
// Sentinel errors are matched first with errors.Is / errors.As, so wrapping
// with %w is preserved. Remaining errors are matched case-insensitively on
// their text; the first matching pattern wins.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/coursedesk/internal/importer"
	"github.com/JonMunkholm/coursedesk/internal/kv"
	"github.com/JonMunkholm/coursedesk/internal/learner"
	"github.com/JonMunkholm/coursedesk/internal/roster"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
	Status  int    `json:"-"`
}

// Sentinels owned by the web layer, declared here so they map like the rest.
var (
	ErrNoFile         = errors.New("no file provided")
	ErrNotCSV         = errors.New("file is not a csv")
	ErrInvalidRequest = errors.New("invalid request")
	ErrRateLimited    = errors.New("rate limit exceeded")
)

type sentinel struct {
	err error
	msg UserMessage
}

var sentinels = []sentinel{
	// File
	{importer.ErrFileTooLarge, UserMessage{"File exceeds the maximum upload size", "Split the file into smaller chunks", "FILE001", http.StatusRequestEntityTooLarge}},
	{importer.ErrEmptyDocument, UserMessage{importer.MsgEmptyFile, "Upload a CSV with a header row and data rows", "FILE002", http.StatusUnprocessableEntity}},
	{ErrNotCSV, UserMessage{"File is not a CSV", "Choose a .csv file", "FILE003", http.StatusUnsupportedMediaType}},
	{ErrNoFile, UserMessage{importer.MsgNoCSV, "Please select a CSV file to upload", "FILE004", http.StatusBadRequest}},

	// Validation
	{importer.ErrUnknownField, UserMessage{"Unknown mapping field", "Map one of name, email or course", "VAL002", http.StatusBadRequest}},
	{ErrInvalidRequest, UserMessage{"The request was not valid", "Check the submitted fields", "VAL003", http.StatusBadRequest}},
	{roster.ErrInvalidRules, UserMessage{"Segment rules are not valid", "Use a known status, >= or <=, and YYYY-MM-DD dates", "VAL004", http.StatusBadRequest}},
	{learner.ErrEmptyComment, UserMessage{"Comment is empty", "Write something before posting", "VAL005", http.StatusBadRequest}},

	// Import
	{importer.ErrImportNotFound, UserMessage{"Import session not found", "The import may have expired. Please upload the file again", "IMP001", http.StatusNotFound}},
	{importer.ErrAlreadyStarted, UserMessage{"Import is already running", "Wait for it to finish or cancel it", "IMP002", http.StatusConflict}},
	{importer.ErrTooManyImports, UserMessage{"System is busy processing other imports", "Please wait a moment and try again", "IMP003", http.StatusServiceUnavailable}},

	// Bulk
	{roster.ErrEmptySelection, UserMessage{"No students selected", "Select at least one student", "BLK001", http.StatusBadRequest}},
	{roster.ErrConfirmRequired, UserMessage{"Removing access needs confirmation", "Confirm to remove access", "BLK002", http.StatusConflict}},
	{roster.ErrUnknownAction, UserMessage{"Unknown bulk action", "Choose enroll, email or remove", "BLK003", http.StatusBadRequest}},
	{roster.ErrUnknownStudent, UserMessage{"Student is not on this roster", "Refresh the list and try again", "BLK004", http.StatusNotFound}},
	{roster.ErrPanelNotFound, UserMessage{"Selection not found", "Reload the students page", "BLK005", http.StatusNotFound}},
	{roster.ErrSegmentNotFound, UserMessage{"Segment not found", "Pick a segment from the list", "BLK006", http.StatusNotFound}},
	{roster.ErrDefaultSegment, UserMessage{"Default segments cannot be changed", "Create a custom segment instead", "BLK007", http.StatusForbidden}},

	// Storage
	{kv.ErrNotFound, UserMessage{"Nothing saved yet", "Save a value first", "STO001", http.StatusNotFound}},

	// Request
	{context.Canceled, UserMessage{"Request was cancelled", "Please try again", "REQ001", http.StatusRequestTimeout}},
	{context.DeadlineExceeded, UserMessage{"Request timed out", "Please try again", "REQ002", http.StatusGatewayTimeout}},
	{ErrRateLimited, UserMessage{"Too many requests", "Please wait a moment before trying again", "REQ003", http.StatusTooManyRequests}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch driver errors that carry no sentinel. Specific
// patterns come before general ones.
var errorPatterns = []errorPattern{
	{"invalid date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD", "VAL006", http.StatusBadRequest}},
	{"connection refused", UserMessage{"Unable to reach storage", "Please try again in a few moments", "STO002", http.StatusServiceUnavailable}},
	{"connection reset", UserMessage{"Storage connection was interrupted", "Please try again", "STO002", http.StatusServiceUnavailable}},
	{"timeout", UserMessage{"Storage operation timed out", "Please try again later", "STO003", http.StatusGatewayTimeout}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "REQ003", http.StatusTooManyRequests}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
	Status:  http.StatusInternalServerError,
}

// MapError converts a technical error to a user-friendly message. An
// *importer.ValidationError maps to VAL001 with its first row error as the
// message. Unknown errors map to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var verr *importer.ValidationError
	if errors.As(err, &verr) {
		msg := "Import data is not valid"
		if len(verr.Errors) > 0 {
			msg = verr.Errors[0]
		}
		return UserMessage{Message: msg, Action: "Fix the mapping or the rows listed and try again", Code: "VAL001", Status: http.StatusUnprocessableEntity}
	}

	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
