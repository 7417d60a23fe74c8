package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/JonMunkholm/coursedesk/internal/importer"
	"github.com/JonMunkholm/coursedesk/internal/roster"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"nil error returns empty", nil, "", 0},
		{"file too large", importer.ErrFileTooLarge, "FILE001", http.StatusRequestEntityTooLarge},
		{"wrapped sentinel", fmt.Errorf("upload: %w", importer.ErrTooManyImports), "IMP003", http.StatusServiceUnavailable},
		{"import not found", importer.ErrImportNotFound, "IMP001", http.StatusNotFound},
		{"already started", importer.ErrAlreadyStarted, "IMP002", http.StatusConflict},
		{"empty selection", roster.ErrEmptySelection, "BLK001", http.StatusBadRequest},
		{"confirm required", roster.ErrConfirmRequired, "BLK002", http.StatusConflict},
		{"default segment", roster.ErrDefaultSegment, "BLK007", http.StatusForbidden},
		{"rules", fmt.Errorf("%w: bad op", roster.ErrInvalidRules), "VAL004", http.StatusBadRequest},
		{"not csv", ErrNotCSV, "FILE003", http.StatusUnsupportedMediaType},
		{"deadline", context.DeadlineExceeded, "REQ002", http.StatusGatewayTimeout},
		{"driver connection refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), "STO002", http.StatusServiceUnavailable},
		{"case insensitive", errors.New("Invalid Date \"x\""), "VAL006", http.StatusBadRequest},
		{"unknown error", errors.New("some random internal error"), "ERR000", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("MapError() status = %d, want %d", got.Status, tt.wantStatus)
			}
		})
	}
}

func TestMapError_ValidationError(t *testing.T) {
	err := fmt.Errorf("start: %w", &importer.ValidationError{Errors: []string{"Row 3: invalid email", "Row 4: invalid email"}})
	got := MapError(err)
	if got.Code != "VAL001" {
		t.Fatalf("code = %q, want VAL001", got.Code)
	}
	if got.Message != "Row 3: invalid email" {
		t.Errorf("message = %q", got.Message)
	}
	if got.Status != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", got.Status)
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(roster.ErrEmptySelection)
	want := "No students selected (Code: BLK001). Select at least one student"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", importer.ErrFileTooLarge, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
