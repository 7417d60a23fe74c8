package roster

import (
	"strconv"
	"strings"
	"time"
)

// ExportFileName is the download name for exported rosters.
const ExportFileName = "students.csv"

// ExportHeader is the fixed column order of an export.
var ExportHeader = []string{"name", "email", "course", "status", "progressPct", "lastActive"}

// ExportCSV renders students as comma-joined lines under ExportHeader.
// Fields are written as-is: no quoting, no trailing newline.
func ExportCSV(students []Student) string {
	lines := make([]string, 0, len(students)+1)
	lines = append(lines, strings.Join(ExportHeader, ","))
	for _, s := range students {
		lines = append(lines, strings.Join([]string{
			s.Name,
			s.Email,
			s.Course,
			string(s.Status),
			strconv.Itoa(s.ProgressPct),
			s.LastActive.UTC().Format(time.RFC3339),
		}, ","))
	}
	return strings.Join(lines, "\n")
}
